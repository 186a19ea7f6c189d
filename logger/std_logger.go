package logger

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"sort"
	"strings"

	"github.com/jathurchan/casecoord/types"
)

// LogLevel represents the severity of a log message.
type LogLevel int

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelFatal
)

// Output formats accepted by NewStdLoggerWithFormat.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// parseLogLevel maps a string to a LogLevel. Defaults to LevelInfo on unknown input.
func parseLogLevel(levelStr string) LogLevel {
	switch strings.ToLower(levelStr) {
	case "debug":
		return LevelDebug
	case "info":
		return LevelInfo
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	case "fatal":
		return LevelFatal
	default:
		return LevelInfo
	}
}

// StdLogger logs messages using Go's standard library log package.
type StdLogger struct {
	context  map[string]any
	minLevel LogLevel
	json     bool
}

// NewStdLogger returns a new text StdLogger with a minimum log level filter.
func NewStdLogger(minLevelStr string) Logger {
	return NewStdLoggerWithFormat(minLevelStr, FormatText)
}

// NewStdLoggerWithFormat returns a StdLogger writing either key=value text or one JSON object per line.
// Unknown formats fall back to text.
func NewStdLoggerWithFormat(minLevelStr, format string) Logger {
	return &StdLogger{
		context:  make(map[string]any),
		minLevel: parseLogLevel(minLevelStr),
		json:     strings.EqualFold(format, FormatJSON),
	}
}

// log outputs a structured log entry if the level meets the threshold.
func (l *StdLogger) log(level LogLevel, levelStr string, msg string, kvs ...any) {
	if level < l.minLevel {
		return
	}

	fields := make(map[string]any, len(l.context)+len(kvs)/2)
	for k, v := range l.context {
		fields[k] = v
	}
	collectPairs(fields, kvs)

	if l.json {
		log.Println(l.formatJSON(levelStr, msg, fields))
	} else {
		log.Println(l.formatText(levelStr, msg, fields))
	}

	if level == LevelFatal {
		os.Exit(1)
	}
}

func (l *StdLogger) formatText(levelStr, msg string, fields map[string]any) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("[%s] %s", strings.ToUpper(levelStr), msg))
	for _, k := range sortedKeys(fields) {
		b.WriteString(fmt.Sprintf(" %s=%v", k, fields[k]))
	}
	return b.String()
}

func (l *StdLogger) formatJSON(levelStr, msg string, fields map[string]any) string {
	entry := make(map[string]any, len(fields)+2)
	for k, v := range fields {
		if err, ok := v.(error); ok {
			v = err.Error()
		}
		entry[k] = v
	}
	entry["level"] = levelStr
	entry["msg"] = msg

	data, err := json.Marshal(entry)
	if err != nil {
		return l.formatText(levelStr, msg, fields)
	}
	return string(data)
}

func (l *StdLogger) Debugw(msg string, kvs ...any) { l.log(LevelDebug, "debug", msg, kvs...) }
func (l *StdLogger) Infow(msg string, kvs ...any)  { l.log(LevelInfo, "info", msg, kvs...) }
func (l *StdLogger) Warnw(msg string, kvs ...any)  { l.log(LevelWarn, "warn", msg, kvs...) }
func (l *StdLogger) Errorw(msg string, kvs ...any) { l.log(LevelError, "error", msg, kvs...) }
func (l *StdLogger) Fatalw(msg string, kvs ...any) { l.log(LevelFatal, "fatal", msg, kvs...) }

// cloneWithContext returns a copy of the logger with merged context.
func (l *StdLogger) cloneWithContext(extra map[string]any) *StdLogger {
	newCtx := make(map[string]any, len(l.context)+len(extra))
	for k, v := range l.context {
		newCtx[k] = v
	}
	for k, v := range extra {
		newCtx[k] = v
	}
	return &StdLogger{context: newCtx, minLevel: l.minLevel, json: l.json}
}

// With adds key-value pairs to the logger's context.
func (l *StdLogger) With(kvs ...any) Logger {
	ctx := make(map[string]any)
	collectPairs(ctx, kvs)
	return l.cloneWithContext(ctx)
}

// WithCategory returns a logger with a namespace category added to the context.
func (l *StdLogger) WithCategory(category types.Category) Logger {
	return l.cloneWithContext(map[string]any{"category": category.String()})
}

// WithPath returns a logger with a node path added to the context.
func (l *StdLogger) WithPath(path string) Logger {
	return l.cloneWithContext(map[string]any{"path": path})
}

// WithSession returns a logger with a session identifier added to the context.
func (l *StdLogger) WithSession(id types.SessionID) Logger {
	return l.cloneWithContext(map[string]any{"session": id})
}

// WithComponent returns a logger with a component name added to the context.
func (l *StdLogger) WithComponent(name string) Logger {
	return l.cloneWithContext(map[string]any{"component": name})
}

// collectPairs copies alternating key/value pairs into dst, skipping non-string keys
// and a trailing unpaired key.
func collectPairs(dst map[string]any, kvs []any) {
	for i := 0; i < len(kvs); i += 2 {
		if i+1 >= len(kvs) {
			break
		}
		key, ok := kvs[i].(string)
		if !ok {
			continue
		}
		dst[key] = kvs[i+1]
	}
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
