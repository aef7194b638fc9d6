// Package presence turns noisy per-frame face matches into announcement
// events.
package presence

import "fmt"

type Kind int

const (
	Recognized Kind = iota
	Absence
)

func (k Kind) String() string {
	switch k {
	case Recognized:
		return "recognized"
	case Absence:
		return "absence"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Event is what the recognition loop reports to the foreground. Name is empty
// for Absence.
type Event struct {
	Kind Kind
	Name string
}

func (e Event) String() string {
	if e.Kind == Recognized {
		return "recognized(" + e.Name + ")"
	}
	return e.Kind.String() + "()"
}

// Match is one classified face in a frame. Lower confidence is better.
type Match struct {
	Name       string
	Confidence float64
}

type State int

const (
	Idle State = iota
	Announced
)

// Debouncer holds presence state across frames. It is not safe for
// concurrent use; the recognition loop owns one instance per run.
type Debouncer struct {
	threshold float64
	misses    int

	state    State
	absences int
	last     string
}

// NewDebouncer builds a debouncer. A match with confidence strictly below
// threshold counts as recognized; misses consecutive frames without one
// produce a single Absence.
func NewDebouncer(threshold float64, misses int) *Debouncer {
	if misses < 1 {
		misses = 1
	}
	return &Debouncer{threshold: threshold, misses: misses}
}

// Observe consumes the matches of one frame and returns the events it causes.
func (d *Debouncer) Observe(matches []Match) []Event {
	var events []Event
	for _, m := range matches {
		if m.Confidence < d.threshold {
			events = append(events, Event{Kind: Recognized, Name: m.Name})
			d.last = m.Name
		}
	}
	if len(events) > 0 {
		d.absences = 0
		d.state = Announced
		return events
	}

	d.absences++
	if d.absences >= d.misses {
		d.absences = 0
		d.state = Idle
		d.last = ""
		return []Event{{Kind: Absence}}
	}
	return nil
}

func (d *Debouncer) State() State { return d.state }

// Last is the most recently recognized name while Announced.
func (d *Debouncer) Last() string { return d.last }

func (d *Debouncer) Misses() int { return d.absences }
