// Package obslog wires the ambient structured-logging concern onto the
// runtime, grounded on the teacher's zerolog adapter
// (_examples/joeycumines-go-utilpkg/logiface/zerolog/zerolog.go,
// logiface-zerolog/zerolog.go): both wrap github.com/rs/zerolog as their
// concrete backend. This package uses zerolog directly rather than the
// generic logiface facade (see DESIGN.md for the tradeoff) since logiface's
// generic Event/Logger[E] plumbing has enough subtle type-level contracts
// that reproducing it correctly without compiling it is too risky for a
// purely ambient concern.
package obslog

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

// New returns a timestamped zerolog.Logger writing to w (os.Stderr if w is
// nil) at the given level. A Runtime built without WithLogger does not use
// New; it falls back to Disabled.
func New(w io.Writer, level zerolog.Level) zerolog.Logger {
	if w == nil {
		w = os.Stderr
	}
	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}

// Disabled returns a Logger that discards everything, used when the caller
// does not configure a logger at Init time.
func Disabled() zerolog.Logger {
	return zerolog.Nop()
}
