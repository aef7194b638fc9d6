// Package recognize runs the background capture, detect and classify loop.
package recognize

import (
	"context"
	"image"
	"log/slog"
	"runtime"
	"sync"

	"github.com/abihf/smartmirror/presence"
	"github.com/abihf/smartmirror/vision"
	"github.com/pkg/errors"
)

type FrameSource interface {
	Capture(ctx context.Context) (image.Image, error)
}

type Detector interface {
	Detect(img *image.Gray) []vision.Detection
}

// Recognizer is the loaded face model.
type Recognizer interface {
	Load() error
	Predict(roi *image.Gray) (label int, confidence float64, err error)
	Name(label int) (string, bool)
}

type Options struct {
	// Threshold is the recognition threshold; lower confidence is a match.
	Threshold float64
	// Misses is the number of consecutive unmatched frames before absence.
	Misses int
	// OnStart runs on the locked worker thread before the model loads.
	OnStart func()
	Log     *slog.Logger
}

var ErrStopTimeout = errors.New("recognition worker did not stop in time")

// Worker owns the recognition goroutine. Start and Stop may be called from
// any goroutine; at most one loop runs at a time.
type Worker struct {
	source     FrameSource
	detector   Detector
	recognizer Recognizer
	events     chan<- presence.Event
	opt        Options
	log        *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewWorker(source FrameSource, detector Detector, recognizer Recognizer, events chan<- presence.Event, opt Options) *Worker {
	log := opt.Log
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Worker{
		source:     source,
		detector:   detector,
		recognizer: recognizer,
		events:     events,
		opt:        opt,
		log:        log,
	}
}

// Start launches the loop. It is a no-op when already running. If a previous
// loop is still winding down after a timed out Stop, Start waits for it
// until ctx expires.
func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.done != nil {
		if w.cancel != nil && !isClosed(w.done) {
			return nil
		}
		select {
		case <-w.done:
		case <-ctx.Done():
			return errors.Wrap(ctx.Err(), "previous recognition loop still running")
		}
		if w.cancel != nil {
			w.cancel()
		}
	}

	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	done := make(chan struct{})
	w.cancel, w.done = cancel, done
	go w.run(loopCtx, done)
	w.log.Info("Recognition worker started")
	return nil
}

// Stop asks the loop to finish and waits until it does or ctx expires. An
// in-flight capture always completes first.
func (w *Worker) Stop(ctx context.Context) error {
	w.mu.Lock()
	cancel, done := w.cancel, w.done
	w.cancel = nil
	w.mu.Unlock()

	if done == nil {
		return nil
	}
	if cancel != nil {
		cancel()
	}
	select {
	case <-done:
		w.log.Info("Recognition worker stopped")
		return nil
	case <-ctx.Done():
		w.log.Warn("Recognition worker still busy after stop request")
		return ErrStopTimeout
	}
}

// Running reports whether a loop goroutine is alive.
func (w *Worker) Running() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.done != nil && !isClosed(w.done)
}

// Done is closed when the current loop exits.
func (w *Worker) Done() <-chan struct{} {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.done == nil {
		c := make(chan struct{})
		close(c)
		return c
	}
	return w.done
}

func isClosed(c chan struct{}) bool {
	select {
	case <-c:
		return true
	default:
		return false
	}
}

func (w *Worker) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	if w.opt.OnStart != nil {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()
		w.opt.OnStart()
	}

	if err := w.recognizer.Load(); err != nil {
		if errors.Is(err, vision.ErrModelNotFound) {
			w.log.Warn("No trained model, recognition disabled until enrollment", "error", err)
		} else {
			w.log.Error("Can not load model, recognition disabled", "error", err)
		}
		return
	}

	debouncer := presence.NewDebouncer(w.opt.Threshold, w.opt.Misses)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		if !w.step(ctx, debouncer) {
			return
		}
	}
}

// step handles one frame. It returns false when cancelled while publishing.
func (w *Worker) step(ctx context.Context, debouncer *presence.Debouncer) bool {
	frame, err := w.source.Capture(context.WithoutCancel(ctx))
	if err != nil {
		w.log.Warn("Capture failed", "error", err)
		return true
	}

	gray := vision.Gray(frame)
	faces := w.detector.Detect(gray)
	matches := make([]presence.Match, 0, len(faces))
	for _, f := range faces {
		label, conf, err := w.recognizer.Predict(vision.Crop(gray, f))
		if err != nil {
			w.log.Debug("Prediction skipped", "face", f, "error", err)
			continue
		}
		name, ok := w.recognizer.Name(label)
		if !ok {
			w.log.Debug("Unknown label", "label", label)
			continue
		}
		w.log.Debug("Face classified", "name", name, "confidence", conf)
		matches = append(matches, presence.Match{Name: name, Confidence: conf})
	}

	for _, ev := range debouncer.Observe(matches) {
		select {
		case w.events <- ev:
		case <-ctx.Done():
			return false
		}
	}
	return true
}
