package types

// Logger defines the structured logging interface used throughout the service.
// *slog.Logger does not satisfy it directly because With returns *slog.Logger;
// use NewSlogLogger to adapt one.
type Logger interface {
	Info(msg string, args ...any)
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
	With(args ...any) Logger
}
