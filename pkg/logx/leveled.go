package logx

// LeveledLogger adapts a Logger to the key/value leveled interface used by
// HTTP client libraries such as go-retryablehttp.
type LeveledLogger struct {
	logger *Logger
	fields Fields
}

// NewLeveledLogger wraps logger; fields are added to every line.
func NewLeveledLogger(logger *Logger, fields Fields) *LeveledLogger {
	if logger == nil {
		logger = GetDefaultLogger()
	}
	return &LeveledLogger{logger: logger, fields: fields}
}

func (l *LeveledLogger) Error(msg string, keysAndValues ...interface{}) {
	l.entry(keysAndValues).Error(msg)
}

func (l *LeveledLogger) Info(msg string, keysAndValues ...interface{}) {
	l.entry(keysAndValues).Info(msg)
}

// Debug keeps per-attempt chatter below the default level.
func (l *LeveledLogger) Debug(msg string, keysAndValues ...interface{}) {
	l.entry(keysAndValues).Debug(msg)
}

func (l *LeveledLogger) Warn(msg string, keysAndValues ...interface{}) {
	l.entry(keysAndValues).Warn(msg)
}

func (l *LeveledLogger) entry(keysAndValues []interface{}) *Entry {
	e := l.logger.WithFields(l.fields)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		key, ok := keysAndValues[i].(string)
		if !ok {
			continue
		}
		e.WithField(key, keysAndValues[i+1])
	}
	return e
}
