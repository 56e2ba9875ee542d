// Package logging is the single structured-logging entry point for L1NE.
// It wraps github.com/joeycumines/logiface with the stumpy backend, the
// same pairing used throughout the upstream examples this module is
// modeled on.
package logging

import (
	"io"
	"os"

	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
)

// Logger is the concrete logger type threaded through every component
// constructor. Components never reach for an ambient/global logger; one
// instance is built in cmd/l1ne and passed down explicitly.
type Logger = *logiface.Logger[*stumpy.Event]

// New builds a Logger writing JSON lines to w.
func New(w io.Writer) Logger {
	if w == nil {
		w = os.Stderr
	}
	return logiface.New[*stumpy.Event](
		stumpy.L.WithStumpy(stumpy.L.WithWriter(w)),
		logiface.WithLevel[*stumpy.Event](logiface.LevelInformational),
	)
}

// Nop returns a Logger that discards all output, for use in tests and in
// any component constructed without an explicit logger.
func Nop() Logger {
	return New(io.Discard)
}
