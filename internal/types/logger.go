package types

import "log/slog"

// slogAdapter wraps *slog.Logger to implement the Logger interface.
// slog.Logger satisfies Info, Error and Warn but With returns *slog.Logger,
// not Logger, so an adapter is necessary.
type slogAdapter struct {
	logger *slog.Logger
}

// NewSlogLogger adapts l to the Logger interface. A nil l uses slog.Default().
func NewSlogLogger(l *slog.Logger) Logger {
	if l == nil {
		l = slog.Default()
	}
	return &slogAdapter{logger: l}
}

func (a *slogAdapter) Info(msg string, args ...any)  { a.logger.Info(msg, args...) }
func (a *slogAdapter) Error(msg string, args ...any) { a.logger.Error(msg, args...) }
func (a *slogAdapter) Warn(msg string, args ...any)  { a.logger.Warn(msg, args...) }
func (a *slogAdapter) With(args ...any) Logger {
	return &slogAdapter{logger: a.logger.With(args...)}
}

var _ Logger = (*slogAdapter)(nil)
