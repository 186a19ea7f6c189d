package logger

import "github.com/jathurchan/casecoord/types"

// Logger defines an interface for structured, context-aware logging.
//
// All logging methods accept a message and a variadic list of key-value pairs.
// Keys must be strings and must alternate with values in the form: key1, val1, key2, val2, ...
type Logger interface {
	// Debugw logs a debug-level message with optional structured context.
	Debugw(msg string, keysAndValues ...any)

	// Infow logs an info-level message with optional structured context.
	Infow(msg string, keysAndValues ...any)

	// Warnw logs a warning-level message with optional structured context.
	Warnw(msg string, keysAndValues ...any)

	// Errorw logs an error-level message with optional structured context.
	Errorw(msg string, keysAndValues ...any)

	// Fatalw logs a fatal-level message with optional structured context and then terminates the application.
	Fatalw(msg string, keysAndValues ...any)

	// Context enrichment methods return a new logger instance with additional persistent context.

	// With adds arbitrary key-value pairs to the logger's context.
	With(keysAndValues ...any) Logger

	// WithCategory adds a namespace category to the logger's context.
	WithCategory(category types.Category) Logger

	// WithPath adds a coordination node path to the logger's context.
	WithPath(path string) Logger

	// WithSession adds a remote session identifier to the logger's context.
	WithSession(id types.SessionID) Logger

	// WithComponent adds a component label (e.g., "coordination", "server") to categorize log output.
	WithComponent(name string) Logger
}
