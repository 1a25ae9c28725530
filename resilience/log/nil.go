package log

// NoneLogger is a wrapper that discards all logs. Useful on tests
// and as a default when no logger is configured.
type NoneLogger struct{}

// Info implements the Info Logger interface function.
func (l *NoneLogger) Info(args ...any) {}

// Infof implements the Infof Logger interface function.
func (l *NoneLogger) Infof(format string, args ...any) {}

// Warn implements the Warn Logger interface function.
func (l *NoneLogger) Warn(args ...any) {}

// Warnf implements the Warnf Logger interface function.
func (l *NoneLogger) Warnf(format string, args ...any) {}

// Error implements the Error Logger interface function.
func (l *NoneLogger) Error(args ...any) {}

// Errorf implements the Errorf Logger interface function.
func (l *NoneLogger) Errorf(format string, args ...any) {}

// Debug implements the Debug Logger interface function.
func (l *NoneLogger) Debug(args ...any) {}

// Debugf implements the Debugf Logger interface function.
func (l *NoneLogger) Debugf(format string, args ...any) {}

// WithFields implements the WithFields Logger interface function.
//
//nolint:ireturn
func (l *NoneLogger) WithFields(fields ...any) Logger { return l }

// Sync implements the Sync Logger interface function.
func (l *NoneLogger) Sync() error { return nil }
