package capture

import (
	"bytes"
	"context"
	"image"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Runner executes an external command and waits for it.
type Runner func(ctx context.Context, name string, args ...string) error

// ExecRunner runs the command with os/exec and attaches its stderr to the
// returned error.
func ExecRunner(ctx context.Context, name string, args ...string) error {
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return errors.Wrapf(err, "%s: %s", name, msg)
		}
		return errors.Wrap(err, name)
	}
	return nil
}

// Still captures by running a still-image utility (rpicam-still) that writes
// a JPEG to Output.
type Still struct {
	Binary   string
	Exposure time.Duration
	Output   string
	// Settle is waited after the utility exits, before the file is read.
	Settle  time.Duration
	Timeout time.Duration
	Retry   Retry
	Run     Runner
	Log     *slog.Logger
}

func (s *Still) Capture(ctx context.Context) (image.Image, error) {
	return s.Retry.Do(ctx, orDiscard(s.Log), s.attempt)
}

// WithExposure returns a copy of s using a different exposure time.
func (s *Still) WithExposure(d time.Duration) *Still {
	c := *s
	c.Exposure = d
	return &c
}

func (s *Still) args() []string {
	return []string{
		"-t", strconv.FormatInt(s.Exposure.Milliseconds(), 10),
		"-n",
		"-o", s.Output,
	}
}

func (s *Still) attempt(ctx context.Context) (image.Image, error) {
	run := s.Run
	if run == nil {
		run = ExecRunner
	}
	binary := s.Binary
	if binary == "" {
		binary = "rpicam-still"
	}

	if s.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.Timeout)
		defer cancel()
	}
	if err := run(ctx, binary, s.args()...); err != nil {
		return nil, err
	}
	if s.Settle > 0 {
		time.Sleep(s.Settle)
	}

	buf, err := os.ReadFile(s.Output)
	if err != nil {
		return nil, errors.Wrap(err, "Can not read captured frame")
	}
	return decode(buf)
}
