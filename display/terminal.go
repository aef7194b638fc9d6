package display

import (
	"fmt"
	"io"
	"sync"

	"github.com/schollz/progressbar/v3"
)

// Terminal prints field updates as lines and renders progress with a bar.
type Terminal struct {
	w io.Writer

	mu  sync.Mutex
	bar *progressbar.ProgressBar
}

func NewTerminal(w io.Writer) *Terminal {
	return &Terminal{w: w}
}

func (t *Terminal) Show(field Field, text string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.bar != nil {
		t.bar.Clear()
	}
	if text == "" {
		return
	}
	fmt.Fprintf(t.w, "[%s] %s\n", field, text)
}

func (t *Terminal) Progress(done, total int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if total <= 0 {
		if t.bar != nil {
			t.bar.Finish()
			fmt.Fprintln(t.w)
			t.bar = nil
		}
		return
	}
	if t.bar == nil || t.bar.GetMax() != total {
		t.bar = progressbar.NewOptions(total,
			progressbar.OptionSetDescription("Capturing"),
			progressbar.OptionSetWriter(t.w),
			progressbar.OptionShowCount(),
		)
	}
	t.bar.Set(done)
}
