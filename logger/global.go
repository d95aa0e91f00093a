package logger

import "sync"

var (
	defaultMu     sync.RWMutex
	defaultLogger Logger = NewNullLogger()
)

// Default returns the package-level logger used by components that are not
// handed one explicitly. It discards everything until SetDefault installs a
// real logger.
func Default() Logger {
	defaultMu.RLock()
	defer defaultMu.RUnlock()
	return defaultLogger
}

// SetDefault replaces the package-level logger
func SetDefault(l Logger) {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	defaultLogger = l
}

// Package-level convenience functions forwarding to the default logger.

func Debug(format string, args ...any) {
	Default().Debug(format, args...)
}

func Info(format string, args ...any) {
	Default().Info(format, args...)
}

func Warn(format string, args ...any) {
	Default().Warn(format, args...)
}

func Error(format string, args ...any) {
	Default().Error(format, args...)
}
