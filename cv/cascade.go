// Package cv binds the face pipeline to OpenCV through gocv.
package cv

import (
	"image"
	"sync"

	"github.com/abihf/smartmirror/vision"
	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// DefaultCascadePaths are tried in order when no path is configured.
var DefaultCascadePaths = []string{
	"/usr/share/opencv4/haarcascades/haarcascade_frontalface_default.xml",
	"/usr/share/opencv/haarcascades/haarcascade_frontalface_default.xml",
}

// Cascade is a loaded Haar cascade. gocv classifiers are not safe for
// concurrent use, so detections are serialized.
type Cascade struct {
	mu         sync.Mutex
	classifier gocv.CascadeClassifier
	path       string
}

// LoadCascade loads the first existing cascade in paths.
func LoadCascade(paths []string) (*Cascade, error) {
	if len(paths) == 0 {
		paths = DefaultCascadePaths
	}
	path, err := vision.FirstExisting(paths)
	if err != nil {
		return nil, err
	}

	classifier := gocv.NewCascadeClassifier()
	if !classifier.Load(path) {
		classifier.Close()
		return nil, errors.Wrapf(vision.ErrDetectorUnavailable, "Error reading cascade file: %v", path)
	}
	return &Cascade{classifier: classifier, path: path}, nil
}

func (c *Cascade) Path() string { return c.path }

func (c *Cascade) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.classifier.Close()
}

// WithParams returns a detector sharing this cascade.
func (c *Cascade) WithParams(scale float64, neighbors int, minSize image.Point) *Detector {
	return &Detector{cascade: c, scale: scale, neighbors: neighbors, minSize: minSize}
}

type Detector struct {
	cascade   *Cascade
	scale     float64
	neighbors int
	minSize   image.Point
}

// Detect finds faces in img. A frame with no faces, or one that could not be
// converted, yields an empty result.
func (d *Detector) Detect(img *image.Gray) []vision.Detection {
	if img == nil || img.Bounds().Empty() {
		return nil
	}
	mat, err := gocv.ImageGrayToMatGray(img)
	if err != nil {
		return nil
	}
	defer mat.Close()

	d.cascade.mu.Lock()
	defer d.cascade.mu.Unlock()
	rects := d.cascade.classifier.DetectMultiScaleWithParams(mat, d.scale, d.neighbors, 0, d.minSize, image.Point{})
	// gocv reports rectangles relative to the Mat, which starts at the origin
	off := img.Bounds().Min
	for i := range rects {
		rects[i] = rects[i].Add(off)
	}
	return rects
}
