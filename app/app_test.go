package app

import (
	"context"
	"math/rand/v2"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/abihf/smartmirror/display"
	"github.com/abihf/smartmirror/enroll"
	"github.com/abihf/smartmirror/greet"
	"github.com/abihf/smartmirror/input"
	"github.com/abihf/smartmirror/presence"
)

type fakeWorker struct {
	running atomic.Bool
	starts  atomic.Int32
}

func (w *fakeWorker) Start(context.Context) error {
	w.starts.Add(1)
	w.running.Store(true)
	return nil
}

func (w *fakeWorker) Stop(context.Context) error {
	w.running.Store(false)
	return nil
}

func (w *fakeWorker) Running() bool { return w.running.Load() }

type fakeEnroller struct {
	state enroll.State
	runs  int
	// consumed counts commands read from the shared channel
	consumed int
}

func (e *fakeEnroller) Run(ctx context.Context, cmds <-chan input.Command) (enroll.Session, enroll.State) {
	e.runs++
	for {
		select {
		case cmd := <-cmds:
			e.consumed++
			if cmd.Kind == input.Confirm || cmd.Kind == input.Cancel {
				return enroll.Session{Name: "ana"}, e.state
			}
		default:
			return enroll.Session{}, enroll.Cancelled
		}
	}
}

type prefs map[string][]string

func (p prefs) Categories(_ context.Context, name string) ([]string, error) {
	return p[name], nil
}

type clock struct{ now time.Time }

func (c *clock) Now() time.Time { return c.now }

func newApp(events chan presence.Event, cmds chan input.Command, en Enroller, c *clock) (*App, *display.State, *fakeWorker) {
	screen := &display.State{}
	worker := &fakeWorker{}
	picker := greet.NewPicker(greet.DefaultHistory, greet.DefaultWeight, rand.New(rand.NewPCG(1, 2)))
	a := New(events, cmds, worker, en, prefs{"ana": {"dad"}}, picker, screen, Options{
		PollInterval: time.Millisecond,
		Location:     time.UTC,
		Now:          c.Now,
	})
	return a, screen, worker
}

func contains(list []string, s string) bool {
	for _, l := range list {
		if l == s {
			return true
		}
	}
	return false
}

func TestGreetingAndAbsence(t *testing.T) {
	c := &clock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	a, screen, _ := newApp(nil, nil, nil, c)
	ctx := context.Background()
	a.refreshQuote()
	quote := screen.Get(display.Quote)
	if !contains(greet.Quotes, quote) {
		t.Fatalf("quote of the day = %q", quote)
	}

	a.HandleEvent(ctx, presence.Event{Kind: presence.Recognized, Name: "ana"})
	welcome := screen.Get(display.Welcome)
	if !strings.HasSuffix(welcome, ", ana!") {
		t.Errorf("welcome = %q", welcome)
	}
	if got := screen.Get(display.Quote); !contains(greet.DadJokes, got) {
		t.Errorf("content = %q, want a dad joke", got)
	}
	if a.Status().Present != "ana" {
		t.Errorf("status = %+v", a.Status())
	}

	// repeated announcements keep the first greeting
	a.HandleEvent(ctx, presence.Event{Kind: presence.Recognized, Name: "ana"})
	if got := screen.Get(display.Welcome); got != welcome {
		t.Errorf("greeting changed to %q", got)
	}

	a.HandleEvent(ctx, presence.Event{Kind: presence.Absence})
	if got := screen.Get(display.Welcome); got != "" {
		t.Errorf("welcome after absence = %q", got)
	}
	if got := screen.Get(display.Quote); got != quote {
		t.Errorf("quote after absence = %q, want %q", got, quote)
	}
	if a.Status().Present != "" {
		t.Error("still present after absence")
	}
}

func TestQuoteRefreshesOnDateChange(t *testing.T) {
	c := &clock{now: time.Date(2026, 3, 1, 23, 0, 0, 0, time.UTC)}
	a, _, _ := newApp(nil, nil, nil, c)
	a.refreshQuote()
	day := a.quoteDay

	c.now = c.now.Add(30 * time.Minute)
	a.refreshQuote()
	if a.quoteDay != day {
		t.Fatal("refreshed within the same day")
	}

	c.now = c.now.Add(time.Hour)
	a.refreshQuote()
	if a.quoteDay == day || a.quoteDay != "2026-03-02" {
		t.Errorf("quote day = %s", a.quoteDay)
	}
}

func TestQuoteRefreshKeepsGreeting(t *testing.T) {
	c := &clock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	a, screen, _ := newApp(nil, nil, nil, c)
	a.refreshQuote()
	a.HandleEvent(context.Background(), presence.Event{Kind: presence.Recognized, Name: "bob"})
	content := screen.Get(display.Quote)

	c.now = c.now.Add(24 * time.Hour)
	a.refreshQuote()
	if got := screen.Get(display.Quote); got != content {
		t.Errorf("quote replaced while greeting: %q", got)
	}
}

func TestConfirmStartsEnrollment(t *testing.T) {
	cmds := make(chan input.Command, 4)
	en := &fakeEnroller{state: enroll.Complete}
	c := &clock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	a, screen, _ := newApp(nil, cmds, en, c)
	a.refreshQuote()
	ctx := context.Background()

	a.HandleCommand(ctx, input.Command{Kind: input.Cancel})
	a.HandleCommand(ctx, input.Command{Kind: input.Char, Rune: 'x'})
	if en.runs != 0 {
		t.Fatal("enrollment started without confirm")
	}

	cmds <- input.Command{Kind: input.Char, Rune: 'a'}
	cmds <- input.Command{Kind: input.Confirm}
	a.HandleCommand(ctx, input.Command{Kind: input.Confirm})
	if en.runs != 1 || en.consumed != 2 {
		t.Errorf("runs = %d, consumed = %d", en.runs, en.consumed)
	}
	st := a.Status()
	if st.Enrolling || st.Enrollments != 1 {
		t.Errorf("status = %+v", st)
	}
	if screen.Get(display.Welcome) != "" || screen.Get(display.Quote) != st.Quote {
		t.Errorf("display not restored: %v", screen.Fields())
	}
}

func TestRunStartsWorkerAndDrainsEvents(t *testing.T) {
	events := make(chan presence.Event, 4)
	c := &clock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	a, screen, worker := newApp(events, make(chan input.Command), nil, c)
	events <- presence.Event{Kind: presence.Recognized, Name: "ana"}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	deadline := time.After(2 * time.Second)
	for !strings.HasSuffix(screen.Get(display.Welcome), "ana!") {
		select {
		case <-deadline:
			t.Fatalf("greeting never shown: %v", screen.Fields())
		case <-time.After(5 * time.Millisecond):
		}
	}
	if worker.starts.Load() != 1 || !a.Status().WorkerRunning {
		t.Errorf("worker starts = %d", worker.starts.Load())
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Error(err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return")
	}
}

func TestEnrollmentDropsQueuedPresence(t *testing.T) {
	events := make(chan presence.Event, 4)
	cmds := make(chan input.Command, 4)
	en := &fakeEnroller{state: enroll.Cancelled}
	c := &clock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	a, screen, _ := newApp(events, cmds, en, c)
	a.refreshQuote()
	ctx := context.Background()

	// recognized while the name was being typed
	events <- presence.Event{Kind: presence.Recognized, Name: "bob"}
	events <- presence.Event{Kind: presence.Recognized, Name: "bob"}
	cmds <- input.Command{Kind: input.Cancel}
	a.HandleCommand(ctx, input.Command{Kind: input.Confirm})

	if len(events) != 0 {
		t.Errorf("%d stale events left", len(events))
	}
	a.poll(ctx)
	if st := a.Status(); st.Present != "" {
		t.Errorf("greeted from a stale event: %+v", st)
	}
	if got := screen.Get(display.Welcome); got != "" {
		t.Errorf("welcome = %q", got)
	}
}
