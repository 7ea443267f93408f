package nvdbseg

import (
	"go.uber.org/zap"
)

var logger = zap.NewNop()

// SetLogger replaces the logger used for non-fatal diagnostics
// (unparseable chainage text, degenerate geometries and so on). Nil restores the no-op logger.
func SetLogger(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	logger = l
}

// Logger returns the logger currently in use
func Logger() *zap.Logger {
	return logger
}
