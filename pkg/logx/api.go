package logx

import (
	"context"
	"fmt"
)

// defaultLogger is configured from the environment at start-up.
var defaultLogger = NewLogger(LoadFromEnv())

func SetDefaultLogger(logger *Logger) {
	defaultLogger = logger
}

func GetDefaultLogger() *Logger {
	return defaultLogger
}

func SetLevel(level Level) {
	defaultLogger.SetLevel(level)
}

// std builds an entry on the default logger. Every package-level helper
// goes through it so caller reporting sees the same stack depth.
func std() *Entry {
	return newEntry(defaultLogger)
}

func Debug(msg string) { std().emit(LevelDebug, msg) }
func Info(msg string)  { std().emit(LevelInfo, msg) }
func Warn(msg string)  { std().emit(LevelWarn, msg) }
func Error(msg string) { std().emit(LevelError, msg) }

func Infof(format string, args ...interface{})  { std().emit(LevelInfo, fmt.Sprintf(format, args...)) }
func Warnf(format string, args ...interface{})  { std().emit(LevelWarn, fmt.Sprintf(format, args...)) }
func Errorf(format string, args ...interface{}) { std().emit(LevelError, fmt.Sprintf(format, args...)) }

// Fatalf logs at fatal level and exits the process.
func Fatalf(format string, args ...interface{}) {
	e := std()
	e.emit(LevelFatal, fmt.Sprintf(format, args...))
	e.logger.exit(1)
}

func WithFields(fields Fields) *Entry {
	return std().WithFields(fields)
}

func WithField(key string, value interface{}) *Entry {
	return std().WithField(key, value)
}

// WithContext starts an entry carrying the fields stored in ctx.
func WithContext(ctx context.Context) *Entry {
	return std().WithContext(ctx)
}

func WithError(err error) *Entry {
	return std().WithError(err)
}
