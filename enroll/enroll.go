// Package enroll implements the interactive workflow that registers a new
// person: collect a name, capture face samples, retrain the model.
package enroll

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"time"

	"github.com/abihf/smartmirror/display"
	"github.com/abihf/smartmirror/vision"
)

type State int

const (
	CollectingName State = iota
	AwaitingStart
	CapturingSamples
	Training
	Complete
	Cancelled
)

var stateNames = [...]string{"collecting_name", "awaiting_start", "capturing_samples", "training", "complete", "cancelled"}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Terminal reports whether the session is over.
func (s State) Terminal() bool { return s == Complete || s == Cancelled }

const (
	msgEnterName   = "Enter Name:"
	msgBlank       = "Name cannot be blank"
	msgTaken       = "%s is already taken, please use another"
	msgPressEnter  = "Press Enter to Start Taking Pictures"
	msgStandBack   = "Please stand ~3 feet away and move slowly to capture angles"
	msgTaking      = "Taking Pictures..."
	msgNoFace      = "No face detected, retrying..."
	msgTraining    = "Training..."
	msgRegistered  = "Successfully Registered!"
	msgError       = "Error registering %s"
	msgCameraBusy  = "Camera is busy, press Enter to try again"
	msgCheckFailed = "Can not check name, please try again"
)

type FrameSource interface {
	Capture(ctx context.Context) (image.Image, error)
}

type Detector interface {
	Detect(img *image.Gray) []vision.Detection
}

type SampleWriter interface {
	SaveSample(name string, index int, face *image.Gray) error
}

type Trainer interface {
	Retrain() error
}

type NameChecker interface {
	Taken(ctx context.Context, name string) (bool, error)
}

type RecordWriter interface {
	Add(ctx context.Context, name string, categories ...string) error
}

// Pauser is the recognition worker as seen by enrollment.
type Pauser interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// AnyTaken reports a name as taken when any checker does.
type AnyTaken []NameChecker

func (a AnyTaken) Taken(ctx context.Context, name string) (bool, error) {
	for _, c := range a {
		taken, err := c.Taken(ctx, name)
		if err != nil || taken {
			return taken, err
		}
	}
	return false, nil
}

type Deps struct {
	Source   FrameSource
	Detector Detector
	Samples  SampleWriter
	Trainer  Trainer
	Names    NameChecker
	Records  RecordWriter
	Worker   Pauser
	Display  display.Sink
	Log      *slog.Logger
}

type Options struct {
	Samples     int
	FaceSize    image.Point
	StopTimeout time.Duration
	// Categories are stored with the new person's record.
	Categories []string
}

// Session describes one enrollment attempt.
type Session struct {
	ID       string
	Name     string
	Captured int
	Target   int
	// Attempts counts every capture, including frames without a face.
	Attempts int
}
