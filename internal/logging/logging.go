// Package logging constructs the structured logger used for worker
// lifecycle and transport fallback events. Grounded on
// cristian1one-virtual-vectorfs/vvfs/globals.go's GetLogger.
package logging

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

// New returns a zerolog.Logger writing to w with a timestamp and a
// "component=pageviz" field. The hot aggregation loop never logs; the
// coordinator logs per-worker recovery and transport-fallback events, and
// the pipeline and CLI log seed-list and fatal-error events.
func New(w io.Writer) zerolog.Logger {
	if w == nil {
		w = os.Stderr
	}
	return zerolog.New(w).With().Timestamp().Str("component", "pageviz").Logger()
}
