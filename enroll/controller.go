package enroll

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/abihf/smartmirror/display"
	"github.com/abihf/smartmirror/input"
	"github.com/abihf/smartmirror/vision"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Controller runs one enrollment session at a time. It is driven from the
// foreground goroutine only.
type Controller struct {
	deps Deps
	opt  Options
	log  *slog.Logger

	state   State
	name    []rune
	session Session
	paused  bool // a stop was requested and a restart is owed
	stopped bool // the stop was confirmed
	cmds    <-chan input.Command
}

func New(deps Deps, opt Options) *Controller {
	if deps.Log == nil {
		deps.Log = slog.New(slog.DiscardHandler)
	}
	if deps.Display == nil {
		deps.Display = display.Multi{}
	}
	if opt.Samples < 1 {
		opt.Samples = 20
	}
	if opt.StopTimeout <= 0 {
		opt.StopTimeout = time.Second
	}
	return &Controller{deps: deps, opt: opt, log: deps.Log, state: Cancelled}
}

func (c *Controller) State() State { return c.state }

func (c *Controller) Session() Session { return c.session }

// Begin starts a new session in CollectingName.
func (c *Controller) Begin() {
	c.state = CollectingName
	c.name = c.name[:0]
	c.paused, c.stopped = false, false
	c.session = Session{ID: uuid.NewString(), Target: c.opt.Samples}
	c.log.Info("Enrollment started", "session", c.session.ID)
	c.deps.Display.Show(display.Welcome, msgEnterName)
	c.deps.Display.Show(display.Quote, "")
}

// Run begins a session and feeds it commands until it completes, is
// cancelled, cmds closes or ctx ends.
func (c *Controller) Run(ctx context.Context, cmds <-chan input.Command) (Session, State) {
	c.cmds = cmds
	defer func() { c.cmds = nil }()

	c.Begin()
	for !c.state.Terminal() {
		select {
		case <-ctx.Done():
			c.cancel(ctx)
		case cmd, ok := <-cmds:
			if !ok {
				c.cancel(ctx)
				continue
			}
			c.Handle(ctx, cmd)
		}
	}
	return c.session, c.state
}

// Handle applies one command to the current state and returns the new one.
// Confirm in AwaitingStart runs capture and training before returning.
func (c *Controller) Handle(ctx context.Context, cmd input.Command) State {
	switch c.state {
	case CollectingName:
		c.collectName(ctx, cmd)
	case AwaitingStart:
		switch cmd.Kind {
		case input.Confirm:
			c.capture(ctx)
		case input.Cancel:
			c.cancel(ctx)
		}
	}
	return c.state
}

func (c *Controller) collectName(ctx context.Context, cmd input.Command) {
	switch cmd.Kind {
	case input.Char:
		c.name = append(c.name, cmd.Rune)
		c.deps.Display.Show(display.Welcome, msgEnterName+" "+string(c.name))
	case input.Backspace:
		if len(c.name) > 0 {
			c.name = c.name[:len(c.name)-1]
		}
		c.deps.Display.Show(display.Welcome, msgEnterName+" "+string(c.name))
	case input.Cancel:
		c.cancel(ctx)
	case input.Confirm:
		name := string(c.name)
		if name == "" {
			c.deps.Display.Show(display.Quote, msgBlank)
			return
		}
		taken, err := c.deps.Names.Taken(ctx, name)
		if err != nil {
			c.log.Error("Can not check name", "name", name, "error", err)
			c.deps.Display.Show(display.Quote, msgCheckFailed)
			return
		}
		if taken {
			c.deps.Display.Show(display.Quote, fmt.Sprintf(msgTaken, name))
			return
		}
		c.session.Name = name
		c.state = AwaitingStart
		c.deps.Display.Show(display.Welcome, msgPressEnter)
		c.deps.Display.Show(display.Quote, msgStandBack)
	}
}

// pauseWorker stops recognition so the camera has a single user.
func (c *Controller) pauseWorker(ctx context.Context) error {
	if c.deps.Worker == nil || c.stopped {
		return nil
	}
	c.paused = true
	stopCtx, cancel := context.WithTimeout(ctx, c.opt.StopTimeout)
	defer cancel()
	if err := c.deps.Worker.Stop(stopCtx); err != nil {
		return err
	}
	c.stopped = true
	return nil
}

func (c *Controller) resumeWorker(ctx context.Context) {
	if c.deps.Worker == nil || !c.paused {
		return
	}
	c.paused, c.stopped = false, false
	if ctx.Err() != nil {
		return
	}
	if err := c.deps.Worker.Start(ctx); err != nil {
		c.log.Error("Can not restart recognition", "error", err)
	}
}

// cancelRequested drains pending input without blocking and reports whether
// a Cancel was among it.
func (c *Controller) cancelRequested(ctx context.Context) bool {
	if ctx.Err() != nil {
		return true
	}
	for c.cmds != nil {
		select {
		case cmd, ok := <-c.cmds:
			if !ok {
				c.cmds = nil
				return false
			}
			if cmd.Kind == input.Cancel {
				return true
			}
		default:
			return false
		}
	}
	return false
}

func (c *Controller) fail(err error) {
	c.log.Error("Enrollment step failed", "session", c.session.ID, "name", c.session.Name, "state", c.state, "error", err)
	c.state = AwaitingStart
	c.deps.Display.Progress(0, 0)
	c.deps.Display.Show(display.Welcome, msgPressEnter)
	c.deps.Display.Show(display.Quote, fmt.Sprintf(msgError, c.session.Name))
}

func (c *Controller) capture(ctx context.Context) {
	if err := c.pauseWorker(ctx); err != nil {
		c.log.Warn("Recognition did not stop in time", "error", err)
		c.deps.Display.Show(display.Quote, msgCameraBusy)
		return
	}

	c.state = CapturingSamples
	c.session.Captured = 0
	name := c.session.Name
	c.deps.Display.Show(display.Welcome, msgTaking)
	c.deps.Display.Show(display.Quote, "")
	c.deps.Display.Progress(0, c.session.Target)

	for c.session.Captured < c.session.Target {
		if c.cancelRequested(ctx) {
			c.cancel(ctx)
			return
		}

		frame, err := c.deps.Source.Capture(ctx)
		c.session.Attempts++
		if err != nil {
			if ctx.Err() != nil {
				c.cancel(ctx)
				return
			}
			c.fail(err)
			return
		}

		gray := vision.Gray(frame)
		box, ok := vision.Largest(c.deps.Detector.Detect(gray))
		if !ok {
			c.log.Debug("No face in enrollment frame", "index", c.session.Captured)
			c.deps.Display.Show(display.Quote, msgNoFace)
			continue
		}
		face := vision.Resize(vision.Crop(gray, box), c.opt.FaceSize.X, c.opt.FaceSize.Y)
		if err := c.deps.Samples.SaveSample(name, c.session.Captured, face); err != nil {
			c.fail(err)
			return
		}
		c.session.Captured++
		c.deps.Display.Progress(c.session.Captured, c.session.Target)
		c.deps.Display.Show(display.Quote, "")
	}
	c.log.Info("Samples captured", "name", name, "samples", c.session.Captured, "attempts", c.session.Attempts)

	c.train(ctx)
}

func (c *Controller) train(ctx context.Context) {
	c.state = Training
	c.deps.Display.Show(display.Welcome, msgTraining)
	if err := c.deps.Trainer.Retrain(); err != nil {
		c.fail(errors.Wrap(err, "retrain"))
		return
	}

	if c.deps.Records != nil {
		if err := c.deps.Records.Add(context.WithoutCancel(ctx), c.session.Name, c.opt.Categories...); err != nil {
			c.log.Error("Can not store preference record", "name", c.session.Name, "error", err)
		}
	}

	c.state = Complete
	c.deps.Display.Show(display.Welcome, msgRegistered)
	c.deps.Display.Progress(0, 0)
	c.log.Info("Enrollment complete", "session", c.session.ID, "name", c.session.Name)
	c.resumeWorker(ctx)
}

func (c *Controller) cancel(ctx context.Context) {
	if c.state.Terminal() {
		return
	}
	c.log.Info("Enrollment cancelled", "session", c.session.ID, "state", c.state, "captured", c.session.Captured)
	c.state = Cancelled
	c.deps.Display.Progress(0, 0)
	c.resumeWorker(ctx)
}
