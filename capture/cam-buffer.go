package capture

import (
	"log/slog"
	"sync/atomic"

	"github.com/blackjack/webcam"
	"github.com/pkg/errors"
)

const (
	fourccGrey  webcam.PixelFormat = 0x59455247
	fourccMJPEG webcam.PixelFormat = 0x47504A4D
)

type rawFrame struct {
	buf    []byte
	format webcam.PixelFormat
	width  int
	height int
}

// camBuffer streams from a V4L2 device on its own goroutine and keeps only
// the newest frame.
type camBuffer struct {
	frame    chan rawFrame
	stopChan chan struct{}
	err      error

	stopped atomic.Bool
	log     *slog.Logger
}

func newCamBuffer(log *slog.Logger) *camBuffer {
	return &camBuffer{
		frame:    make(chan rawFrame, 1),
		stopChan: make(chan struct{}),
		log:      log,
	}
}

func (c *camBuffer) start(opt *WebcamOption) {
	go func() {
		c.err = c.run(opt)
		close(c.stopChan)
	}()
}

func (c *camBuffer) run(opt *WebcamOption) error {
	cam, err := webcam.Open(opt.Device)
	if err != nil {
		return errors.Wrap(err, "Can not open device")
	}
	defer cam.Close()

	format := fourccGrey
	if opt.MJPEG {
		format = fourccMJPEG
	}
	format, w, h, err := cam.SetImageFormat(format, uint32(opt.Width), uint32(opt.Height))
	if err != nil {
		return errors.Wrap(err, "Can not set image format")
	}

	err = cam.StartStreaming()
	if err != nil {
		return errors.Wrap(err, "Can not start streaming")
	}
	defer cam.StopStreaming()

	for !c.isStopped() {
		err = cam.WaitForFrame(1)
		switch err.(type) {
		case nil:
		case *webcam.Timeout:
			c.log.Debug("Frame wait timed out", "device", opt.Device)
			continue
		default:
			return errors.Wrap(err, "Frame wait failed")
		}

		buf, err := cam.ReadFrame()
		if err != nil {
			return errors.Wrap(err, "Read frame failed")
		}
		if len(buf) == 0 || c.isStopped() {
			continue
		}

		f := rawFrame{
			buf:    append([]byte(nil), buf...),
			format: format,
			width:  int(w),
			height: int(h),
		}
		// drop the stale frame so readers always get the newest one
		select {
		case <-c.frame:
		default:
		}
		c.frame <- f
	}

	return nil
}

func (c *camBuffer) isStopped() bool {
	return c.stopped.Load()
}

func (c *camBuffer) stop() {
	c.stopped.Store(true)
}
