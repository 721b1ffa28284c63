// Package boltlog is a thin structured-logging facade over logrus, used by
// connection and pool to report lifecycle events (a connection turning
// defunct or failed, an idle connection reaped) without binding those
// packages directly to a concrete logging backend.
package boltlog

import "github.com/sirupsen/logrus"

// Logger is satisfied by *logrus.Entry and *logrus.Logger alike, so callers
// can hand in either a bare logger or one already carrying fields.
type Logger interface {
	WithField(key string, value any) *logrus.Entry
	WithFields(fields logrus.Fields) *logrus.Entry
	Debugf(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}

// Default is the package-wide logger used when a caller does not supply its
// own. It logs at Warn level by default, matching the teacher's preference
// for quiet-unless-something-is-wrong CLI output.
var Default Logger = newDefault()

func newDefault() Logger {
	l := logrus.New()
	l.SetLevel(logrus.WarnLevel)
	return l
}

// For returns a Logger scoped to a single connection or pool worker,
// carrying its correlation id on every subsequent line.
func For(logger Logger, correlationID string) *logrus.Entry {
	if logger == nil {
		logger = Default
	}
	return logger.WithField("conn", correlationID)
}
