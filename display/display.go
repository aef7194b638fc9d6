// Package display carries text updates to whatever renders the mirror.
package display

import (
	"log/slog"
	"sync"
)

// Field names a text slot on the mirror.
type Field string

const (
	Welcome Field = "welcome_message"
	Quote   Field = "quote_of_day"
)

// Sink receives display updates. Progress(0, 0) hides the progress bar.
type Sink interface {
	Show(field Field, text string)
	Progress(done, total int)
}

// Multi fans every update out to all sinks.
type Multi []Sink

func (m Multi) Show(field Field, text string) {
	for _, s := range m {
		s.Show(field, text)
	}
}

func (m Multi) Progress(done, total int) {
	for _, s := range m {
		s.Progress(done, total)
	}
}

// Log writes updates to a structured logger.
type Log struct {
	Logger *slog.Logger
}

func (l Log) Show(field Field, text string) {
	l.Logger.Info("Display", "field", field, "text", text)
}

func (l Log) Progress(done, total int) {
	l.Logger.Debug("Progress", "done", done, "total", total)
}

// State remembers the latest value of every field.
type State struct {
	mu     sync.RWMutex
	fields map[Field]string
	done   int
	total  int
}

func (s *State) Show(field Field, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fields == nil {
		s.fields = map[Field]string{}
	}
	s.fields[field] = text
}

func (s *State) Progress(done, total int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.done, s.total = done, total
}

func (s *State) Get(field Field) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.fields[field]
}

func (s *State) Fields() map[Field]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[Field]string, len(s.fields))
	for k, v := range s.fields {
		out[k] = v
	}
	return out
}

func (s *State) Progression() (done, total int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.done, s.total
}
