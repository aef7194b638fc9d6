// Package capture acquires single still frames from the mirror camera.
//
// Sources share one retry contract: a fixed number of attempts with a fixed
// delay in between, failing with vision.ErrCapture only when the budget is
// exhausted. A Source is meant to have a single caller at a time; the still
// backend writes every frame to the same scratch file.
package capture

import (
	"bytes"
	"context"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"log/slog"
	"time"

	"github.com/abihf/smartmirror/vision"
	"github.com/pkg/errors"
	_ "golang.org/x/image/bmp"
)

type Source interface {
	Capture(ctx context.Context) (image.Image, error)
}

// Retry is the attempt budget of a Source.
type Retry struct {
	Attempts int
	Delay    time.Duration
}

var DefaultRetry = Retry{Attempts: 3, Delay: time.Second}

type attemptFunc func(ctx context.Context) (image.Image, error)

// Do calls attempt until it succeeds or the budget runs out. There is no delay
// after the last failed attempt.
func (r Retry) Do(ctx context.Context, log *slog.Logger, attempt attemptFunc) (image.Image, error) {
	n := r.Attempts
	if n < 1 {
		n = 1
	}
	var last error
	for i := 1; i <= n; i++ {
		img, err := attempt(ctx)
		if err == nil {
			return img, nil
		}
		last = err
		log.Warn("Capture attempt failed", "attempt", i, "of", n, "error", err)
		if i == n {
			break
		}

		t := time.NewTimer(r.Delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, errors.Wrapf(vision.ErrCapture, "interrupted after %d attempts: %v", i, ctx.Err())
		case <-t.C:
		}
	}
	return nil, errors.Wrapf(vision.ErrCapture, "%d attempts: %v", n, last)
}

func decode(buf []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(buf))
	if err != nil {
		return nil, errors.Wrap(err, "Can not decode image")
	}
	return img, nil
}

func orDiscard(log *slog.Logger) *slog.Logger {
	if log != nil {
		return log
	}
	return slog.New(slog.DiscardHandler)
}
