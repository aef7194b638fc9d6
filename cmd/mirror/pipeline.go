package main

import (
	"fmt"
	"image"
	"log/slog"
	"os"
	"strconv"
	"syscall"

	"github.com/abihf/smartmirror/capture"
	"github.com/abihf/smartmirror/cv"
	"github.com/abihf/smartmirror/model"
	"github.com/pkg/errors"
)

// cameras holds the frame sources for recognition and enrollment. With the
// webcam backend both share one device.
type cameras struct {
	recognition capture.Source
	enrollment  capture.Source
	close       func() error
}

func openCameras(log *slog.Logger) cameras {
	cam := conf.Camera
	retry := capture.Retry{Attempts: cam.Retries, Delay: cam.RetryDelay}
	log = log.With("component", "camera", "backend", cam.Backend)

	if cam.Backend == "webcam" {
		w := capture.NewWebcam(capture.WebcamOption{
			Device:     cam.Device,
			Width:      cam.Width,
			Height:     cam.Height,
			MJPEG:      cam.MJPEG,
			BlackLevel: cam.BlackLevel,
		}, cam.AttemptTimeout, retry, log)
		return cameras{recognition: w, enrollment: w, close: w.Close}
	}

	still := &capture.Still{
		Binary:   cam.Binary,
		Exposure: cam.RecognitionExposure,
		Output:   cam.Scratch,
		Settle:   cam.Settle,
		Timeout:  cam.AttemptTimeout,
		Retry:    retry,
		Run:      capture.ExecRunner,
		Log:      log,
	}
	return cameras{
		recognition: still,
		enrollment:  still.WithExposure(cam.EnrollmentExposure),
		close:       func() error { return nil },
	}
}

type detectors struct {
	cascade     *cv.Cascade
	recognition *cv.Detector
	enrollment  *cv.Detector
}

func loadDetectors() (detectors, error) {
	det := conf.Detector
	cascade, err := cv.LoadCascade(det.CascadePaths)
	if err != nil {
		return detectors{}, errors.Wrap(err, "Can not initialize face detector")
	}
	minSize := image.Pt(det.MinSize, det.MinSize)
	return detectors{
		cascade:     cascade,
		recognition: cascade.WithParams(det.RecognitionScale, det.MinNeighbors, minSize),
		enrollment:  cascade.WithParams(det.EnrollmentScale, det.MinNeighbors, minSize),
	}, nil
}

func newModel(log *slog.Logger) *model.Model {
	log = log.With("component", "model")
	store := model.NewStore(conf.Paths.Model, log)
	return model.New(store, cv.NewLBPH, conf.Enrollment.FaceSize(), log)
}

func isAlreadyRun(path string) bool {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return false
	}

	pidStr, err := os.ReadFile(path)
	if err != nil {
		slog.Warn("Can not read pid file", "error", err)
		return false
	}
	pid, err := strconv.Atoi(string(pidStr))
	if err != nil {
		slog.Warn("Invalid existing pid file", "error", err)
		return false
	}

	proc, err := os.FindProcess(pid)
	if err != nil {
		slog.Warn("Can not find current process", "error", err)
		return false
	}

	err = proc.Signal(syscall.Signal(0))
	return err == nil
}

func writeLockFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}

	fmt.Fprintf(f, "%d", os.Getpid())
	return f.Close()
}
