package arm

import "log/slog"

// Logger provides structured logging for the mapper.
// The args follow slog conventions: alternating key/value pairs.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// NopLogger is a Logger that discards all output. Use in tests.
type NopLogger struct{}

func NewNopLogger() *NopLogger { return &NopLogger{} }

func (*NopLogger) Debug(string, ...any) {}
func (*NopLogger) Info(string, ...any)  {}
func (*NopLogger) Warn(string, ...any)  {}
func (*NopLogger) Error(string, ...any) {}

// SlogLogger adapts a *slog.Logger to the Logger interface.
type SlogLogger struct {
	l *slog.Logger
}

func NewSlogLogger(l *slog.Logger) *SlogLogger { return &SlogLogger{l: l} }

func (s *SlogLogger) Debug(msg string, args ...any) { s.l.Debug(msg, args...) }
func (s *SlogLogger) Info(msg string, args ...any)  { s.l.Info(msg, args...) }
func (s *SlogLogger) Warn(msg string, args ...any)  { s.l.Warn(msg, args...) }
func (s *SlogLogger) Error(msg string, args ...any) { s.l.Error(msg, args...) }
