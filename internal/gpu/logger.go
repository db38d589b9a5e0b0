package gpu

import (
	"log/slog"
	"sync/atomic"
)

var (
	discard   = slog.New(slog.DiscardHandler)
	loggerPtr atomic.Pointer[slog.Logger]
)

// slogger returns the logger installed by SetLogger, or one that discards
// everything.
func slogger() *slog.Logger {
	if l := loggerPtr.Load(); l != nil {
		return l
	}
	return discard
}

// SetLogger replaces the package logger. Called by glimmer.SetLogger.
// A nil logger disables logging.
func SetLogger(l *slog.Logger) {
	loggerPtr.Store(l)
}
