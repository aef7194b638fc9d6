package capture

import (
	"context"
	"image"
	"log/slog"
	"sync"
	"time"

	"github.com/abihf/smartmirror/vision"
	"github.com/pkg/errors"
)

type WebcamOption struct {
	Device string
	Width  int
	Height int
	MJPEG  bool
	// BlackLevel rejects badly exposed frames, mostly useful for IR cameras.
	BlackLevel bool
}

// Webcam captures from a V4L2 device. Streaming starts on the first Capture
// and runs until Close.
type Webcam struct {
	opt     WebcamOption
	timeout time.Duration
	retry   Retry
	log     *slog.Logger

	mu  sync.Mutex
	buf *camBuffer
}

func NewWebcam(opt WebcamOption, timeout time.Duration, retry Retry, log *slog.Logger) *Webcam {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &Webcam{opt: opt, timeout: timeout, retry: retry, log: orDiscard(log)}
}

func (w *Webcam) Capture(ctx context.Context) (image.Image, error) {
	return w.retry.Do(ctx, w.log, w.attempt)
}

func (w *Webcam) stream() *camBuffer {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.buf != nil {
		select {
		case <-w.buf.stopChan:
			w.log.Warn("Camera stream ended, reopening", "device", w.opt.Device, "error", w.buf.err)
			w.buf = nil
		default:
		}
	}
	if w.buf == nil {
		w.buf = newCamBuffer(w.log)
		w.buf.start(&w.opt)
	}
	return w.buf
}

func (w *Webcam) attempt(ctx context.Context) (image.Image, error) {
	buf := w.stream()

	t := time.NewTimer(w.timeout)
	defer t.Stop()

	select {
	case f := <-buf.frame:
		img, err := decodeRaw(f)
		if err != nil {
			return nil, err
		}
		if w.opt.BlackLevel && !hasGoodBlackLevel(vision.Gray(img).Pix) {
			return nil, errors.New("Frame rejected by black level check")
		}
		return img, nil
	case <-buf.stopChan:
		if buf.err != nil {
			return nil, buf.err
		}
		return nil, errors.New("Camera stream stopped")
	case <-t.C:
		return nil, errors.Errorf("No frame within %v", w.timeout)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (w *Webcam) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.buf != nil {
		w.buf.stop()
		<-w.buf.stopChan
		w.buf = nil
	}
	return nil
}

func decodeRaw(f rawFrame) (image.Image, error) {
	if f.format == fourccMJPEG {
		return decode(f.buf)
	}
	if len(f.buf) < f.width*f.height {
		return nil, errors.Errorf("short frame: %d bytes for %dx%d", len(f.buf), f.width, f.height)
	}
	return &image.Gray{
		Pix:    f.buf[:f.width*f.height],
		Stride: f.width,
		Rect:   image.Rect(0, 0, f.width, f.height),
	}, nil
}
