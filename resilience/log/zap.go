package log

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ZapLogger adapts a zap.SugaredLogger to the Logger interface.
type ZapLogger struct {
	sugared     *zap.SugaredLogger
	atomicLevel zap.AtomicLevel
}

// Compile-time assertion: *ZapLogger implements Logger.
var _ Logger = (*ZapLogger)(nil)

// NewZapLogger builds a production zap logger at the given level. The returned
// logger writes JSON to stderr and carries a runtime-adjustable level handle.
func NewZapLogger(level LogLevel) *ZapLogger {
	atomicLevel := zap.NewAtomicLevelAt(levelToZap(level))

	cfg := zap.NewProductionConfig()
	cfg.Level = atomicLevel

	logger, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		logger = zap.NewNop()
	}

	return &ZapLogger{
		sugared:     logger.Sugar(),
		atomicLevel: atomicLevel,
	}
}

// NewZapLoggerFrom wraps an existing zap logger. The level handle on the
// returned logger only works when the caller built the logger with one.
func NewZapLoggerFrom(logger *zap.Logger, atomicLevel zap.AtomicLevel) *ZapLogger {
	return &ZapLogger{
		sugared:     logger.Sugar(),
		atomicLevel: atomicLevel,
	}
}

func (l *ZapLogger) must() *zap.SugaredLogger {
	if l == nil || l.sugared == nil {
		return zap.NewNop().Sugar()
	}

	return l.sugared
}

// Info implements the Info Logger interface function.
func (l *ZapLogger) Info(args ...any) { l.must().Info(args...) }

// Infof implements the Infof Logger interface function.
func (l *ZapLogger) Infof(format string, args ...any) { l.must().Infof(format, args...) }

// Warn implements the Warn Logger interface function.
func (l *ZapLogger) Warn(args ...any) { l.must().Warn(args...) }

// Warnf implements the Warnf Logger interface function.
func (l *ZapLogger) Warnf(format string, args ...any) { l.must().Warnf(format, args...) }

// Error implements the Error Logger interface function.
func (l *ZapLogger) Error(args ...any) { l.must().Error(args...) }

// Errorf implements the Errorf Logger interface function.
func (l *ZapLogger) Errorf(format string, args ...any) { l.must().Errorf(format, args...) }

// Debug implements the Debug Logger interface function.
func (l *ZapLogger) Debug(args ...any) { l.must().Debug(args...) }

// Debugf implements the Debugf Logger interface function.
func (l *ZapLogger) Debugf(format string, args ...any) { l.must().Debugf(format, args...) }

// WithFields implements the WithFields Logger interface function. Fields are
// key/value pairs, zap style.
//
//nolint:ireturn
func (l *ZapLogger) WithFields(fields ...any) Logger {
	return &ZapLogger{
		sugared:     l.must().With(fields...),
		atomicLevel: l.atomicLevel,
	}
}

// Sync implements the Sync Logger interface function.
func (l *ZapLogger) Sync() error {
	return l.must().Sync()
}

// SetLevel adjusts the logger level at runtime.
func (l *ZapLogger) SetLevel(level LogLevel) {
	l.atomicLevel.SetLevel(levelToZap(level))
}

func levelToZap(level LogLevel) zapcore.Level {
	switch level {
	case DebugLevel:
		return zapcore.DebugLevel
	case InfoLevel:
		return zapcore.InfoLevel
	case WarnLevel:
		return zapcore.WarnLevel
	case ErrorLevel:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}
