package logger

import "io"

// NullLogger discards every message. It still remembers the level it was
// given, so callers that gate expensive formatting on GetLevel behave the
// same whether logging is enabled or not.
type NullLogger struct {
	level LogLevel
}

// NewNullLogger creates a logger that discards all output
func NewNullLogger() *NullLogger {
	return &NullLogger{}
}

func (l *NullLogger) SetLevel(level LogLevel) { l.level = level }
func (l *NullLogger) GetLevel() LogLevel      { return l.level }
func (l *NullLogger) SetOutput(w io.Writer)   {}

func (l *NullLogger) Debug(format string, args ...any) {}
func (l *NullLogger) Info(format string, args ...any)  {}
func (l *NullLogger) Warn(format string, args ...any)  {}
func (l *NullLogger) Error(format string, args ...any) {}
