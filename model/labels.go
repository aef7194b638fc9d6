package model

import (
	"encoding/json"
	"image"

	"github.com/pkg/errors"
)

// LabelMap maps the dense integer labels used by the classifier to person
// names. Label i belongs to Names()[i].
type LabelMap struct {
	names []string
}

func NewLabelMap(names []string) LabelMap {
	return LabelMap{names: append([]string(nil), names...)}
}

func (m LabelMap) Name(label int) (string, bool) {
	if label < 0 || label >= len(m.names) {
		return "", false
	}
	return m.names[label], true
}

func (m LabelMap) Len() int { return len(m.names) }

func (m LabelMap) Names() []string { return append([]string(nil), m.names...) }

type labelEntry struct {
	Label int    `json:"label"`
	Name  string `json:"name"`
}

func (m LabelMap) MarshalJSON() ([]byte, error) {
	entries := make([]labelEntry, len(m.names))
	for i, n := range m.names {
		entries[i] = labelEntry{Label: i, Name: n}
	}
	return json.Marshal(entries)
}

func (m *LabelMap) UnmarshalJSON(b []byte) error {
	var entries []labelEntry
	if err := json.Unmarshal(b, &entries); err != nil {
		return err
	}
	names := make([]string, len(entries))
	seen := make([]bool, len(entries))
	for _, e := range entries {
		if e.Label < 0 || e.Label >= len(entries) || seen[e.Label] {
			return errors.Errorf("label map is not dense: label %d", e.Label)
		}
		seen[e.Label] = true
		names[e.Label] = e.Name
	}
	m.names = names
	return nil
}

// Sample is one labeled grayscale face.
type Sample struct {
	Image *image.Gray
	Label int
}

type TrainingSet struct {
	Samples []Sample
	Labels  LabelMap
}
