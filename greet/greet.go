// Package greet picks greetings and display content without repeating
// itself too often.
package greet

import (
	"math/rand/v2"
	"sync"
)

const (
	DefaultHistory = 20
	DefaultWeight  = 0.3
)

// Picker chooses list indices, down-weighting the ones picked recently.
type Picker struct {
	mu      sync.Mutex
	rnd     *rand.Rand
	history []int
	size    int
	weight  float64
}

func NewPicker(size int, weight float64, rnd *rand.Rand) *Picker {
	if rnd == nil {
		rnd = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Picker{rnd: rnd, size: size, weight: weight}
}

// Index returns an index in [0, n). Each time an index appears in the
// recent history its weight is multiplied by the picker weight.
func (p *Picker) Index(n int) int {
	p.mu.Lock()
	defer p.mu.Unlock()

	if n < 1 {
		n = 1
	}
	weights := make([]float64, n)
	for i := range weights {
		weights[i] = 1
	}
	for _, h := range p.history {
		if h >= 0 && h < n {
			weights[h] *= p.weight
		}
	}
	total := 0.0
	for _, w := range weights {
		total += w
	}

	r := p.rnd.Float64() * total
	idx := n - 1
	for i, w := range weights {
		if r < w {
			idx = i
			break
		}
		r -= w
	}

	p.history = append(p.history, idx)
	if len(p.history) > p.size {
		p.history = p.history[len(p.history)-p.size:]
	}
	return idx
}

// Pick returns an element of list, or "" for an empty list.
func (p *Picker) Pick(list []string) string {
	if len(list) == 0 {
		return ""
	}
	return list[p.Index(len(list))]
}

// History returns a copy of the recent picks, oldest first.
func (p *Picker) History() []int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]int(nil), p.history...)
}

// Greeting builds the welcome line for name.
func (p *Picker) Greeting(name string) string {
	return p.Pick(Greetings) + ", " + name + "!"
}

// Content picks a line from the first known category, falling back to
// quotes.
func (p *Picker) Content(categories []string) string {
	for _, c := range categories {
		if list, ok := Lists[c]; ok && len(list) > 0 {
			return p.Pick(list)
		}
	}
	return p.Pick(Quotes)
}
