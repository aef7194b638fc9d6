package presence

import (
	"reflect"
	"testing"
)

func TestObserveThreshold(t *testing.T) {
	tests := []struct {
		name       string
		confidence float64
		want       []Event
	}{
		{"below", 119.9, []Event{{Kind: Recognized, Name: "ana"}}},
		{"equal", 120, nil},
		{"above", 150, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewDebouncer(120, 5)
			got := d.Observe([]Match{{Name: "ana", Confidence: tt.confidence}})
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Observe() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestObserveEveryQualifyingMatch(t *testing.T) {
	d := NewDebouncer(120, 5)
	got := d.Observe([]Match{
		{Name: "ana", Confidence: 40},
		{Name: "bob", Confidence: 200},
		{Name: "cid", Confidence: 80},
	})
	want := []Event{{Kind: Recognized, Name: "ana"}, {Kind: Recognized, Name: "cid"}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Observe() = %v, want %v", got, want)
	}
	if d.State() != Announced || d.Last() != "cid" {
		t.Errorf("state = %v last = %q", d.State(), d.Last())
	}

	// repeats are not suppressed
	again := d.Observe([]Match{{Name: "ana", Confidence: 10}})
	if len(again) != 1 {
		t.Errorf("repeat recognition produced %v", again)
	}
}

func TestAbsenceFiresOncePerWindow(t *testing.T) {
	d := NewDebouncer(120, 5)
	d.Observe([]Match{{Name: "ana", Confidence: 10}})

	var absences []int
	for frame := 1; frame <= 12; frame++ {
		for _, e := range d.Observe(nil) {
			if e.Kind == Absence {
				absences = append(absences, frame)
			}
		}
	}
	if want := []int{5, 10}; !reflect.DeepEqual(absences, want) {
		t.Fatalf("absence at frames %v, want %v", absences, want)
	}
	if d.State() != Idle || d.Misses() != 2 {
		t.Errorf("state = %v misses = %d", d.State(), d.Misses())
	}
}

func TestMatchResetsMissCounter(t *testing.T) {
	d := NewDebouncer(120, 3)
	d.Observe(nil)
	d.Observe(nil)
	d.Observe([]Match{{Name: "ana", Confidence: 1}})
	if d.Misses() != 0 {
		t.Fatalf("misses = %d after match", d.Misses())
	}
	d.Observe([]Match{{Name: "ana", Confidence: 500}})
	if evs := d.Observe(nil); evs != nil {
		t.Errorf("absence fired early: %v", evs)
	}
	if evs := d.Observe(nil); len(evs) != 1 || evs[0].Kind != Absence {
		t.Errorf("expected absence, got %v", evs)
	}
}
