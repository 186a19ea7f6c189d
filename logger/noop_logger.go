package logger

import "github.com/jathurchan/casecoord/types"

// NoOpLogger discards every message. Tests may set Hook to observe what
// would have been logged; context added with With* is not retained.
type NoOpLogger struct {
	// Hook, when set, receives each message with its level name
	// ("debug", "info", "warn", "error", "fatal").
	Hook func(level, msg string, keysAndValues ...any)
}

// NewNoOpLogger returns a Logger that discards all log messages.
// Can be type-asserted to *NoOpLogger to install a Hook.
func NewNoOpLogger() Logger {
	return &NoOpLogger{}
}

func (l *NoOpLogger) emit(level, msg string, kvs []any) {
	if l.Hook != nil {
		l.Hook(level, msg, kvs...)
	}
}

func (l *NoOpLogger) Debugw(msg string, kvs ...any) { l.emit("debug", msg, kvs) }
func (l *NoOpLogger) Infow(msg string, kvs ...any)  { l.emit("info", msg, kvs) }
func (l *NoOpLogger) Warnw(msg string, kvs ...any)  { l.emit("warn", msg, kvs) }
func (l *NoOpLogger) Errorw(msg string, kvs ...any) { l.emit("error", msg, kvs) }

// Fatalw never exits.
func (l *NoOpLogger) Fatalw(msg string, kvs ...any) { l.emit("fatal", msg, kvs) }

func (l *NoOpLogger) With(keysAndValues ...any) Logger            { return l }
func (l *NoOpLogger) WithCategory(category types.Category) Logger { return l }
func (l *NoOpLogger) WithPath(path string) Logger                 { return l }
func (l *NoOpLogger) WithSession(id types.SessionID) Logger       { return l }
func (l *NoOpLogger) WithComponent(name string) Logger            { return l }
