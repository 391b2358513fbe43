// Package console renders operation results the way the demo's on-page
// console does: the argument list pretty-printed as indented JSON.
package console

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"
)

type Display struct {
	mu   sync.RWMutex
	out  io.Writer
	last string
}

// New returns a Display that also echoes every rendering to out when out is
// not nil.
func New(out io.Writer) *Display {
	return &Display{out: out}
}

// Show replaces the displayed text with args rendered as a JSON array.
// Values that cannot be encoded are shown through fmt.
func (d *Display) Show(args ...any) string {
	if args == nil {
		args = []any{}
	}
	raw, err := json.MarshalIndent(args, "", "  ")
	text := string(raw)
	if err != nil {
		text = fmt.Sprint(args...)
	}

	d.mu.Lock()
	d.last = text
	out := d.out
	d.mu.Unlock()
	if out != nil {
		_, _ = fmt.Fprintln(out, text)
	}
	return text
}

func (d *Display) Last() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.last
}
