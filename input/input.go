// Package input translates raw key events and terminal lines into the
// command set understood by the enrollment workflow.
package input

import (
	"bufio"
	"context"
	"io"
	"strings"
	"unicode"
	"unicode/utf8"
)

type Kind int

const (
	Char Kind = iota
	Backspace
	Confirm
	Cancel
)

func (k Kind) String() string {
	switch k {
	case Char:
		return "char"
	case Backspace:
		return "backspace"
	case Confirm:
		return "confirm"
	case Cancel:
		return "cancel"
	}
	return "unknown"
}

// Command is one user intent. Rune is set for Char only.
type Command struct {
	Kind Kind
	Rune rune
}

func (c Command) String() string {
	if c.Kind == Char {
		return "char(" + string(c.Rune) + ")"
	}
	return c.Kind.String()
}

// Translate maps a keyboard event name to a command. Names may carry a
// keycode suffix, as in "a:38" or "BackSpace:22". Only letters are accepted
// as name characters.
func Translate(key string) (Command, bool) {
	if i := strings.LastIndexByte(key, ':'); i > 0 {
		key = key[:i]
	}
	switch key {
	case "BackSpace", "Backspace", "Delete":
		return Command{Kind: Backspace}, true
	case "Return", "KP_Enter", "Enter":
		return Command{Kind: Confirm}, true
	case "Escape":
		return Command{Kind: Cancel}, true
	}
	r, size := utf8.DecodeRuneInString(key)
	if size == len(key) && size > 0 && unicode.IsLetter(r) {
		return Command{Kind: Char, Rune: r}, true
	}
	return Command{}, false
}

// Line maps one line of terminal input to commands. Text becomes its letters
// followed by Confirm; "/back" and "/cancel" are the control keys.
func Line(line string) []Command {
	line = strings.TrimSpace(line)
	switch line {
	case "":
		return []Command{{Kind: Confirm}}
	case "/back":
		return []Command{{Kind: Backspace}}
	case "/cancel":
		return []Command{{Kind: Cancel}}
	}
	var cmds []Command
	for _, r := range line {
		if unicode.IsLetter(r) {
			cmds = append(cmds, Command{Kind: Char, Rune: r})
		}
	}
	return append(cmds, Command{Kind: Confirm})
}

// ReadLines feeds commands parsed from r into out until r ends or ctx is
// done. It does not close out.
func ReadLines(ctx context.Context, r io.Reader, out chan<- Command) error {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		for _, c := range Line(sc.Text()) {
			select {
			case out <- c:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	return sc.Err()
}
