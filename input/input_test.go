package input

import (
	"context"
	"reflect"
	"strings"
	"testing"
)

func TestTranslate(t *testing.T) {
	tests := []struct {
		key  string
		want Command
		ok   bool
	}{
		{"a", Command{Kind: Char, Rune: 'a'}, true},
		{"J:44", Command{Kind: Char, Rune: 'J'}, true},
		{"é", Command{Kind: Char, Rune: 'é'}, true},
		{"BackSpace:22", Command{Kind: Backspace}, true},
		{"Delete", Command{Kind: Backspace}, true},
		{"Return:36", Command{Kind: Confirm}, true},
		{"KP_Enter", Command{Kind: Confirm}, true},
		{"Escape:9", Command{Kind: Cancel}, true},
		{"1", Command{}, false},
		{"Shift_L:50", Command{}, false},
		{"", Command{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			got, ok := Translate(tt.key)
			if ok != tt.ok || got != tt.want {
				t.Errorf("Translate(%q) = %v, %v; want %v, %v", tt.key, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestReadLines(t *testing.T) {
	out := make(chan Command, 16)
	err := ReadLines(context.Background(), strings.NewReader("Al 2\n/back\n\n/cancel\n"), out)
	if err != nil {
		t.Fatal(err)
	}
	close(out)

	var got []Command
	for c := range out {
		got = append(got, c)
	}
	want := []Command{
		{Kind: Char, Rune: 'A'},
		{Kind: Char, Rune: 'l'},
		{Kind: Confirm},
		{Kind: Backspace},
		{Kind: Confirm},
		{Kind: Cancel},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("commands = %v, want %v", got, want)
	}
}
