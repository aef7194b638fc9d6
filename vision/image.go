package vision

import (
	"image"

	"golang.org/x/image/draw"
)

// Detection is a face bounding box in frame coordinates.
type Detection = image.Rectangle

// Gray converts img to 8-bit grayscale. Gray images are returned as is.
func Gray(img image.Image) *image.Gray {
	if g, ok := img.(*image.Gray); ok {
		return g
	}
	b := img.Bounds()
	g := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(g, g.Bounds(), img, b.Min, draw.Src)
	return g
}

// Crop returns the part of img covered by r. The result shares pixels with img.
func Crop(img *image.Gray, r Detection) *image.Gray {
	r = r.Intersect(img.Bounds())
	if r.Empty() {
		return image.NewGray(image.Rectangle{})
	}
	return img.SubImage(r).(*image.Gray)
}

// Resize scales img to w x h with bilinear interpolation.
func Resize(img *image.Gray, w, h int) *image.Gray {
	if b := img.Bounds(); b.Dx() == w && b.Dy() == h && b.Min == (image.Point{}) {
		return img
	}
	dst := image.NewGray(image.Rect(0, 0, w, h))
	draw.BiLinear.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Src, nil)
	return dst
}

// Largest picks the detection with the biggest area.
func Largest(dets []Detection) (Detection, bool) {
	if len(dets) == 0 {
		return Detection{}, false
	}
	best := dets[0]
	for _, d := range dets[1:] {
		if d.Dx()*d.Dy() > best.Dx()*best.Dy() {
			best = d
		}
	}
	return best, true
}
