package cli

import (
	"fmt"
	"io"
	"os"
)

// Status writes operator-facing step reports with ✓/✗/⚠ prefixes.
// Commands report progress through Status and leave diagnostics to
// structured logging.
type Status struct {
	w io.Writer
}

// NewStatus creates a Status writing to w. If w is nil, it defaults to
// os.Stdout.
func NewStatus(w io.Writer) *Status {
	if w == nil {
		w = os.Stdout
	}
	return &Status{w: w}
}

// Successf prints a ✓-prefixed line.
func (s *Status) Successf(format string, args ...interface{}) {
	fmt.Fprintf(s.w, "✓ "+format+"\n", args...)
}

// Failf prints a ✗-prefixed line.
func (s *Status) Failf(format string, args ...interface{}) {
	fmt.Fprintf(s.w, "✗ "+format+"\n", args...)
}

// Warnf prints a ⚠-prefixed line.
func (s *Status) Warnf(format string, args ...interface{}) {
	fmt.Fprintf(s.w, "⚠  "+format+"\n", args...)
}

// Infof prints an unprefixed line.
func (s *Status) Infof(format string, args ...interface{}) {
	fmt.Fprintf(s.w, format+"\n", args...)
}

// Blank prints an empty line.
func (s *Status) Blank() {
	fmt.Fprintln(s.w)
}
