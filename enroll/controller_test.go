package enroll

import (
	"context"
	"fmt"
	"image"
	"strings"
	"sync"
	"testing"

	"github.com/abihf/smartmirror/display"
	"github.com/abihf/smartmirror/input"
	"github.com/abihf/smartmirror/vision"
	"github.com/pkg/errors"
)

// journal records the order of side effects across fakes.
type journal struct {
	mu      sync.Mutex
	entries []string
}

func (j *journal) add(format string, args ...any) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries = append(j.entries, fmt.Sprintf(format, args...))
}

func (j *journal) list() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]string(nil), j.entries...)
}

func (j *journal) count(prefix string) int {
	n := 0
	for _, e := range j.list() {
		if strings.HasPrefix(e, prefix) {
			n++
		}
	}
	return n
}

// frames yields gray frames; a zero value means "no face", a missing entry
// means capture failure.
type fakeSource struct {
	j      *journal
	frames []uint8
	i      int
	// onCapture runs before each capture returns
	onCapture func(i int)
}

func (s *fakeSource) Capture(ctx context.Context) (image.Image, error) {
	i := s.i
	s.i++
	s.j.add("capture")
	if s.onCapture != nil {
		s.onCapture(i)
	}
	if i >= len(s.frames) {
		return nil, errors.WithStack(vision.ErrCapture)
	}
	img := image.NewGray(image.Rect(0, 0, 64, 48))
	for p := range img.Pix {
		img.Pix[p] = s.frames[i]
	}
	return img, nil
}

type fakeDetector struct{}

func (fakeDetector) Detect(img *image.Gray) []vision.Detection {
	if img.Pix[0] == 0 {
		return nil
	}
	return []vision.Detection{image.Rect(0, 0, 10, 10), image.Rect(10, 10, 40, 40)}
}

type fakeSamples struct {
	j    *journal
	fail bool
	size image.Rectangle
}

func (s *fakeSamples) SaveSample(name string, index int, face *image.Gray) error {
	if s.fail {
		return errors.WithStack(vision.ErrPersistence)
	}
	s.size = face.Bounds()
	s.j.add("save %s_%d", name, index)
	return nil
}

type fakeTrainer struct {
	j   *journal
	err error
}

func (t *fakeTrainer) Retrain() error {
	t.j.add("train")
	return t.err
}

type takenNames map[string]bool

func (n takenNames) Taken(_ context.Context, name string) (bool, error) {
	return n[name], nil
}

type fakeRecords struct{ j *journal }

func (r fakeRecords) Add(_ context.Context, name string, categories ...string) error {
	r.j.add("record %s %v", name, categories)
	return nil
}

type fakeWorker struct{ j *journal }

func (w fakeWorker) Start(context.Context) error { w.j.add("worker start"); return nil }
func (w fakeWorker) Stop(context.Context) error { w.j.add("worker stop"); return nil }

type harness struct {
	j       *journal
	source  *fakeSource
	samples *fakeSamples
	trainer *fakeTrainer
	screen  *display.State
	ctrl    *Controller
}

func newHarness(frames []uint8) *harness {
	j := &journal{}
	h := &harness{
		j:       j,
		source:  &fakeSource{j: j, frames: frames},
		samples: &fakeSamples{j: j},
		trainer: &fakeTrainer{j: j},
		screen:  &display.State{},
	}
	h.ctrl = New(Deps{
		Source:   h.source,
		Detector: fakeDetector{},
		Samples:  h.samples,
		Trainer:  h.trainer,
		Names:    takenNames{"bob": true},
		Records:  fakeRecords{j: j},
		Worker:   fakeWorker{j: j},
		Display:  h.screen,
	}, Options{Samples: 20, FaceSize: image.Pt(200, 200), Categories: []string{"quotes"}})
	return h
}

func typed(name string, extra ...input.Command) chan input.Command {
	cmds := make(chan input.Command, len(name)+len(extra)+2)
	for _, r := range name {
		cmds <- input.Command{Kind: input.Char, Rune: r}
	}
	for _, c := range extra {
		cmds <- c
	}
	return cmds
}

var confirm = input.Command{Kind: input.Confirm}

func TestEnrollmentSkipsFramesWithoutFace(t *testing.T) {
	frames := make([]uint8, 0, 25)
	for i := 0; i < 25; i++ {
		if i%5 == 2 {
			frames = append(frames, 0)
		} else {
			frames = append(frames, 100)
		}
	}
	h := newHarness(frames)
	cmds := typed("ana", confirm, confirm)
	close(cmds)

	session, state := h.ctrl.Run(context.Background(), cmds)
	if state != Complete {
		t.Fatalf("state = %v", state)
	}
	if session.Captured != 20 || session.Attempts != 25 || session.Name != "ana" || session.ID == "" {
		t.Errorf("session = %+v", session)
	}
	if n := h.j.count("save ana_"); n != 20 {
		t.Errorf("saved %d samples", n)
	}
	if n := h.j.count("capture"); n != 25 {
		t.Errorf("captured %d frames", n)
	}
	if h.samples.size != image.Rect(0, 0, 200, 200) {
		t.Errorf("sample size = %v", h.samples.size)
	}

	entries := h.j.list()
	if entries[0] != "worker stop" {
		t.Errorf("first side effect = %q, want worker stop", entries[0])
	}
	want := []string{"train", "record ana [quotes]", "worker start"}
	if tail := entries[len(entries)-3:]; fmt.Sprint(tail) != fmt.Sprint(want) {
		t.Errorf("tail = %v, want %v", tail, want)
	}
	if got := h.screen.Get(display.Welcome); got != "Successfully Registered!" {
		t.Errorf("welcome = %q", got)
	}
	if _, total := h.screen.Progression(); total != 0 {
		t.Error("progress bar still visible")
	}
}

func TestCollectNameValidation(t *testing.T) {
	h := newHarness(nil)
	ctx := context.Background()
	h.ctrl.Begin()

	if s := h.ctrl.Handle(ctx, confirm); s != CollectingName {
		t.Fatalf("blank name accepted: %v", s)
	}
	if got := h.screen.Get(display.Quote); got != "Name cannot be blank" {
		t.Errorf("quote = %q", got)
	}

	for _, r := range "bobx" {
		h.ctrl.Handle(ctx, input.Command{Kind: input.Char, Rune: r})
	}
	h.ctrl.Handle(ctx, input.Command{Kind: input.Backspace})
	if got := h.screen.Get(display.Welcome); got != "Enter Name: bob" {
		t.Errorf("welcome = %q", got)
	}
	if s := h.ctrl.Handle(ctx, confirm); s != CollectingName {
		t.Fatalf("taken name accepted: %v", s)
	}
	if got := h.screen.Get(display.Quote); got != "bob is already taken, please use another" {
		t.Errorf("quote = %q", got)
	}

	h.ctrl.Handle(ctx, input.Command{Kind: input.Backspace})
	h.ctrl.Handle(ctx, input.Command{Kind: input.Char, Rune: 'o'})
	if s := h.ctrl.Handle(ctx, confirm); s != AwaitingStart {
		t.Fatalf("state = %v", s)
	}
	if got := h.screen.Get(display.Welcome); got != "Press Enter to Start Taking Pictures" {
		t.Errorf("welcome = %q", got)
	}
	if h.j.count("worker") != 0 {
		t.Error("worker touched before capture")
	}
}

func TestCancelBeforeCaptureLeavesWorkerAlone(t *testing.T) {
	h := newHarness(nil)
	cmds := typed("ana", confirm, input.Command{Kind: input.Cancel})
	_, state := h.ctrl.Run(context.Background(), cmds)
	if state != Cancelled {
		t.Fatalf("state = %v", state)
	}
	if n := h.j.count("worker"); n != 0 {
		t.Errorf("worker calls = %v", h.j.list())
	}
}

func TestCancelDuringCapture(t *testing.T) {
	frames := make([]uint8, 20)
	for i := range frames {
		frames[i] = 100
	}
	h := newHarness(frames)
	cmds := typed("ana", confirm, confirm)
	h.source.onCapture = func(i int) {
		if i == 4 {
			cmds <- input.Command{Kind: input.Cancel}
		}
	}

	session, state := h.ctrl.Run(context.Background(), cmds)
	if state != Cancelled {
		t.Fatalf("state = %v", state)
	}
	if session.Captured != 5 {
		t.Errorf("captured = %d, want 5", session.Captured)
	}
	if h.j.count("train") != 0 || h.j.count("record") != 0 {
		t.Errorf("unexpected side effects: %v", h.j.list())
	}
	entries := h.j.list()
	if entries[len(entries)-1] != "worker start" {
		t.Errorf("worker not restarted: %v", entries)
	}
}

func TestCaptureFailureReturnsToAwaitingStart(t *testing.T) {
	h := newHarness([]uint8{100, 100})
	ctx := context.Background()
	h.ctrl.Begin()
	for _, r := range "ana" {
		h.ctrl.Handle(ctx, input.Command{Kind: input.Char, Rune: r})
	}
	h.ctrl.Handle(ctx, confirm)

	if s := h.ctrl.Handle(ctx, confirm); s != AwaitingStart {
		t.Fatalf("state = %v", s)
	}
	if got := h.screen.Get(display.Quote); got != "Error registering ana" {
		t.Errorf("quote = %q", got)
	}
	if h.j.count("save") != 2 {
		t.Errorf("samples kept = %d", h.j.count("save"))
	}

	// worker stays stopped until the session ends
	if h.j.count("worker start") != 0 {
		t.Error("worker restarted mid-session")
	}
	h.ctrl.Handle(ctx, input.Command{Kind: input.Cancel})
	if h.j.count("worker start") != 1 || h.j.count("worker stop") != 1 {
		t.Errorf("worker calls: %v", h.j.list())
	}
}

func TestTrainingFailure(t *testing.T) {
	frames := make([]uint8, 20)
	for i := range frames {
		frames[i] = 100
	}
	h := newHarness(frames)
	h.trainer.err = errors.WithStack(vision.ErrEmptyDataset)
	ctx := context.Background()

	h.ctrl.Begin()
	for _, r := range "ana" {
		h.ctrl.Handle(ctx, input.Command{Kind: input.Char, Rune: r})
	}
	h.ctrl.Handle(ctx, confirm)
	if s := h.ctrl.Handle(ctx, confirm); s != AwaitingStart {
		t.Fatalf("state = %v", s)
	}
	if h.j.count("record") != 0 {
		t.Error("record created after failed training")
	}
	if got := h.screen.Get(display.Quote); got != "Error registering ana" {
		t.Errorf("quote = %q", got)
	}
}

func TestPersistenceFailure(t *testing.T) {
	h := newHarness([]uint8{100})
	h.samples.fail = true
	ctx := context.Background()

	h.ctrl.Begin()
	h.ctrl.Handle(ctx, input.Command{Kind: input.Char, Rune: 'a'})
	h.ctrl.Handle(ctx, confirm)
	if s := h.ctrl.Handle(ctx, confirm); s != AwaitingStart {
		t.Fatalf("state = %v", s)
	}
}

func TestAnyTaken(t *testing.T) {
	checker := AnyTaken{takenNames{"ana": true}, takenNames{"bob": true}}
	for name, want := range map[string]bool{"ana": true, "bob": true, "cid": false} {
		got, err := checker.Taken(context.Background(), name)
		if err != nil || got != want {
			t.Errorf("Taken(%q) = %v, %v", name, got, err)
		}
	}
}
