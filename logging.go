package cachedb

import charmlog "github.com/charmbracelet/log"

// Logger is the minimal leveled-logging surface the cache instruments
// internally: eviction batches and maxused decay steps. It defaults to a
// no-op
// implementation, mirroring the reference implementation's internal
// debug!/trace! calls being compiled out unless a "logging" feature is
// enabled. Pass WithLogger to observe them.
type Logger interface {
	Debugw(msg string, keyvals ...any)
}

type noopLogger struct{}

func (noopLogger) Debugw(string, ...any) {}

// charmLogger adapts *charmlog.Logger (github.com/charmbracelet/log) to
// Logger.
type charmLogger struct {
	l *charmlog.Logger
}

// NewCharmLogger wraps an existing *log.Logger from
// github.com/charmbracelet/log as a cachedb Logger.
func NewCharmLogger(l *charmlog.Logger) Logger {
	return &charmLogger{l: l}
}

func (c *charmLogger) Debugw(msg string, keyvals ...any) {
	c.l.Debug(msg, keyvals...)
}
