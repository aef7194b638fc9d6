package vision

import (
	"os"

	"github.com/pkg/errors"
)

// Error kinds shared by the capture, detection and model layers. Callers
// match them with errors.Is.
var (
	ErrCapture             = errors.New("capture failed")
	ErrDetectorUnavailable = errors.New("face detector unavailable")
	ErrModelNotFound       = errors.New("model not found")
	ErrModelNotLoaded      = errors.New("model not loaded")
	ErrEmptyDataset        = errors.New("dataset is empty")
	ErrPrediction          = errors.New("prediction failed")
	ErrPersistence         = errors.New("persistence failed")
)

// FirstExisting returns the first path that exists on disk.
func FirstExisting(paths []string) (string, error) {
	for _, p := range paths {
		if p == "" {
			continue
		}
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", errors.Wrapf(ErrDetectorUnavailable, "none of %v exists", paths)
}
