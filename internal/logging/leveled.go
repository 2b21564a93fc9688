package logging

import "log/slog"

// Leveled adapts a *slog.Logger to the key/value leveled logger interface used
// by retrying HTTP clients. Errors are logged at warn level since the client
// reports every failed attempt, including ones it later retries.
type Leveled struct {
	Logger *slog.Logger
}

func (l Leveled) Error(msg string, keysAndValues ...any) {
	l.Logger.Warn(msg, keysAndValues...)
}

func (l Leveled) Warn(msg string, keysAndValues ...any) {
	l.Logger.Warn(msg, keysAndValues...)
}

func (l Leveled) Info(msg string, keysAndValues ...any) {
	l.Logger.Info(msg, keysAndValues...)
}

func (l Leveled) Debug(msg string, keysAndValues ...any) {
	l.Logger.Debug(msg, keysAndValues...)
}
