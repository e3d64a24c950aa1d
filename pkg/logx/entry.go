package logx

import (
	"context"
	"fmt"
)

// Entry accumulates fields for a single log line. Every With method
// mutates and returns the same entry.
type Entry struct {
	logger *Logger
	fields Fields
	data   interface{}
	err    error
}

func newEntry(logger *Logger) *Entry {
	return &Entry{logger: logger, fields: make(Fields)}
}

func (e *Entry) WithField(key string, value interface{}) *Entry {
	e.fields[key] = value
	return e
}

func (e *Entry) WithFields(fields Fields) *Entry {
	for k, v := range fields {
		e.fields[k] = v
	}
	return e
}

func (e *Entry) WithError(err error) *Entry {
	e.err = err
	return e
}

// WithContext adds the fields attached to ctx by ContextWithFields. Fields
// already set on the entry win.
func (e *Entry) WithContext(ctx context.Context) *Entry {
	for k, v := range FieldsFromContext(ctx) {
		if _, exists := e.fields[k]; !exists {
			e.fields[k] = v
		}
	}
	return e
}

// WithStruct attaches a value rendered as indented JSON below the line.
func (e *Entry) WithStruct(data interface{}) *Entry {
	e.data = data
	return e
}

func (e *Entry) emit(level Level, msg string) {
	e.logger.log(level, msg, e.fields, e.data, e.err)
}

func (e *Entry) Debug(msg string) { e.emit(LevelDebug, msg) }
func (e *Entry) Info(msg string)  { e.emit(LevelInfo, msg) }
func (e *Entry) Warn(msg string)  { e.emit(LevelWarn, msg) }
func (e *Entry) Error(msg string) { e.emit(LevelError, msg) }

func (e *Entry) Debugf(format string, args ...interface{}) {
	e.emit(LevelDebug, fmt.Sprintf(format, args...))
}
func (e *Entry) Infof(format string, args ...interface{}) {
	e.emit(LevelInfo, fmt.Sprintf(format, args...))
}
func (e *Entry) Warnf(format string, args ...interface{}) {
	e.emit(LevelWarn, fmt.Sprintf(format, args...))
}
func (e *Entry) Errorf(format string, args ...interface{}) {
	e.emit(LevelError, fmt.Sprintf(format, args...))
}

// Fatalf logs at fatal level and exits the process.
func (e *Entry) Fatalf(format string, args ...interface{}) {
	e.emit(LevelFatal, fmt.Sprintf(format, args...))
	e.logger.exit(1)
}
