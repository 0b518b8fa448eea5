package dispatch

import (
	"log/slog"
	"sync/atomic"
)

// silent is the package logger until SetLogger installs another one. Its
// handler reports every level as disabled, so log calls on the dispatch hot
// path return before formatting any attribute.
var silent = slog.New(slog.DiscardHandler)

// active holds the package logger. SetLogger may run concurrently with
// dispatches on other goroutines.
var active atomic.Pointer[slog.Logger]

func init() {
	active.Store(silent)
}

// SetLogger routes the log output of dispatch and its sub-packages to l.
// Nothing is logged until SetLogger is called; passing nil silences the
// package again. It is safe to call while dispatches are in flight.
//
// Records emitted:
//   - [slog.LevelDebug] "dispatch: loader compiled" once per shape, with the
//     resource count and constant buffer size
//   - [slog.LevelDebug] "dispatch: rejected" for every failed Assemble
//   - [slog.LevelDebug] "bindgroup: bound" for every bind group created
//   - [slog.LevelWarn] "dispatch: shape cannot be dispatched" once per shape
//     with an invalid member
//
// A Dispatcher created with [WithLogger], and the loader cache it creates,
// ignore the package logger.
//
//	dispatch.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
//	    Level: slog.LevelDebug,
//	})))
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = silent
	}
	active.Store(l)
}

// Logger returns the package logger. Sub-packages such as bindgroup log
// through it so a single SetLogger call configures them all.
func Logger() *slog.Logger {
	return active.Load()
}

// loggerOr returns override when set and the package logger otherwise.
func loggerOr(override *slog.Logger) *slog.Logger {
	if override != nil {
		return override
	}
	return Logger()
}
