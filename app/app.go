// Package app is the foreground loop of the mirror. It turns presence events
// into greetings, keeps the quote of the day fresh and hands the input over
// to enrollment when asked.
package app

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/abihf/smartmirror/display"
	"github.com/abihf/smartmirror/enroll"
	"github.com/abihf/smartmirror/greet"
	"github.com/abihf/smartmirror/input"
	"github.com/abihf/smartmirror/presence"
)

type Worker interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Running() bool
}

type Enroller interface {
	Run(ctx context.Context, cmds <-chan input.Command) (enroll.Session, enroll.State)
}

type Preferences interface {
	Categories(ctx context.Context, name string) ([]string, error)
}

type Options struct {
	PollInterval time.Duration
	Location     *time.Location
	// CompleteHold keeps the success message up after an enrollment.
	CompleteHold time.Duration
	Now          func() time.Time
	Log          *slog.Logger
}

type Status struct {
	Present       string `json:"present"`
	Enrolling     bool   `json:"enrolling"`
	WorkerRunning bool   `json:"worker_running"`
	Quote         string `json:"quote"`
	Enrollments   int    `json:"enrollments"`
}

func (s Status) Map() map[string]any {
	return map[string]any{
		"present":        s.Present,
		"enrolling":      s.Enrolling,
		"worker_running": s.WorkerRunning,
		"quote":          s.Quote,
		"enrollments":    s.Enrollments,
	}
}

type App struct {
	events   <-chan presence.Event
	cmds     <-chan input.Command
	worker   Worker
	enroller Enroller
	prefs    Preferences
	picker   *greet.Picker
	screen   display.Sink
	opt      Options
	log      *slog.Logger

	mu          sync.Mutex
	present     string
	enrolling   bool
	quote       string
	quoteDay    string
	enrollments int
}

func New(events <-chan presence.Event, cmds <-chan input.Command, worker Worker, enroller Enroller, prefs Preferences, picker *greet.Picker, screen display.Sink, opt Options) *App {
	if opt.PollInterval <= 0 {
		opt.PollInterval = 100 * time.Millisecond
	}
	if opt.Location == nil {
		opt.Location = time.Local
	}
	if opt.Now == nil {
		opt.Now = time.Now
	}
	if opt.Log == nil {
		opt.Log = slog.New(slog.DiscardHandler)
	}
	if picker == nil {
		picker = greet.NewPicker(greet.DefaultHistory, greet.DefaultWeight, nil)
	}
	return &App{
		events:   events,
		cmds:     cmds,
		worker:   worker,
		enroller: enroller,
		prefs:    prefs,
		picker:   picker,
		screen:   screen,
		opt:      opt,
		log:      opt.Log,
	}
}

// Run starts recognition and serves the foreground until ctx ends. The
// worker is left running; stopping it is up to the caller.
func (a *App) Run(ctx context.Context) error {
	a.refreshQuote()
	a.screen.Show(display.Welcome, "")

	if err := a.worker.Start(ctx); err != nil {
		a.log.Error("Can not start recognition", "error", err)
	}

	ticker := time.NewTicker(a.opt.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			a.poll(ctx)
		}
	}
}

// poll drains pending events and commands, then checks the date.
func (a *App) poll(ctx context.Context) {
	for {
		select {
		case ev := <-a.events:
			a.HandleEvent(ctx, ev)
			continue
		default:
		}
		select {
		case cmd, ok := <-a.cmds:
			if !ok {
				a.cmds = nil
				continue
			}
			a.HandleCommand(ctx, cmd)
			continue
		default:
		}
		break
	}
	a.refreshQuote()
}

func (a *App) HandleEvent(ctx context.Context, ev presence.Event) {
	switch ev.Kind {
	case presence.Recognized:
		a.mu.Lock()
		same := a.present == ev.Name
		a.present = ev.Name
		a.mu.Unlock()
		if same {
			return
		}
		a.log.Info("Person recognized", "name", ev.Name)
		a.screen.Show(display.Welcome, a.picker.Greeting(ev.Name))
		a.screen.Show(display.Quote, a.picker.Content(a.categories(ctx, ev.Name)))
	case presence.Absence:
		a.mu.Lock()
		was := a.present
		a.present = ""
		quote := a.quote
		a.mu.Unlock()
		if was != "" {
			a.log.Info("Person left", "name", was)
		}
		a.screen.Show(display.Welcome, "")
		a.screen.Show(display.Quote, quote)
	}
}

func (a *App) categories(ctx context.Context, name string) []string {
	if a.prefs == nil {
		return nil
	}
	cats, err := a.prefs.Categories(ctx, name)
	if err != nil {
		a.log.Warn("Can not read preferences", "name", name, "error", err)
		return nil
	}
	return cats
}

// HandleCommand starts enrollment on Confirm. Other keys are ignored while
// no session is active.
func (a *App) HandleCommand(ctx context.Context, cmd input.Command) {
	if cmd.Kind != input.Confirm || a.enroller == nil || a.cmds == nil {
		return
	}

	a.mu.Lock()
	a.enrolling = true
	a.mu.Unlock()

	session, state := a.enroller.Run(ctx, a.cmds)
	a.log.Info("Enrollment finished", "session", session.ID, "name", session.Name, "state", state)
	if n := a.dropEvents(); n > 0 {
		a.log.Debug("Dropped presence events queued during enrollment", "count", n)
	}

	if state == enroll.Complete {
		select {
		case <-time.After(a.opt.CompleteHold):
		case <-ctx.Done():
		}
	}

	a.mu.Lock()
	a.enrolling = false
	a.present = ""
	if state == enroll.Complete {
		a.enrollments++
	}
	quote := a.quote
	a.mu.Unlock()

	a.screen.Progress(0, 0)
	a.screen.Show(display.Welcome, "")
	a.screen.Show(display.Quote, quote)
}

// dropEvents discards pending presence events without blocking.
func (a *App) dropEvents() int {
	n := 0
	for {
		select {
		case <-a.events:
			n++
		default:
			return n
		}
	}
}

// refreshQuote picks a new quote when the date in the configured zone
// changes. The screen is only touched when nobody is being greeted.
func (a *App) refreshQuote() {
	day := a.opt.Now().In(a.opt.Location).Format(time.DateOnly)

	a.mu.Lock()
	if day == a.quoteDay {
		a.mu.Unlock()
		return
	}
	a.quoteDay = day
	a.quote = a.picker.Pick(greet.Quotes)
	quote, idle := a.quote, a.present == "" && !a.enrolling
	a.mu.Unlock()

	a.log.Debug("Quote of the day", "day", day)
	if idle {
		a.screen.Show(display.Quote, quote)
	}
}

// Status is safe to call from any goroutine.
func (a *App) Status() Status {
	a.mu.Lock()
	defer a.mu.Unlock()
	return Status{
		Present:       a.present,
		Enrolling:     a.enrolling,
		WorkerRunning: a.worker.Running(),
		Quote:         a.quote,
		Enrollments:   a.enrollments,
	}
}
