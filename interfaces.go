package scriptport

import (
	"fmt"
	"log"
	"time"
)

// Field represents a structured log field
type Field struct {
	Key   string
	Value interface{}
}

// Logger interface for custom logging implementations
type Logger interface {
	// Debug logs a debug message with optional fields
	Debug(msg string, fields ...Field)

	// Info logs an info message with optional fields
	Info(msg string, fields ...Field)

	// Error logs an error message with optional fields
	Error(msg string, fields ...Field)
}

// MetricsCollector interface for metrics collection
type MetricsCollector interface {
	// RecordConnection records an accepted command connection
	RecordConnection()

	// RecordCommandProcessed records a processed command with its duration
	RecordCommandProcessed(kind string, duration time.Duration)

	// RecordScriptExecuted records a drained script execution with its duration
	RecordScriptExecuted(duration time.Duration)

	// RecordRestart records a completed restart cycle
	RecordRestart()

	// RecordError records an error event
	RecordError(errorType string)
}

// Executor runs queued script files. The default executor is the server's
// own script engine; tests and embedders may substitute their own.
type Executor interface {
	ExecuteFile(path string) error
}

// TickToken identifies a callback registered with a TickDriver
type TickToken uint64

// TickDriver invokes registered callbacks periodically. The server drains
// its script queue on every invocation.
//
// The default driver fires on a fixed interval. Host applications with their
// own frame or event loop can supply a driver that ties draining to it.
type TickDriver interface {
	// Register adds fn to the tick cycle and returns a token for removal
	Register(fn func()) TickToken

	// Unregister removes a previously registered callback
	Unregister(token TickToken)
}

// defaultLogger is a simple logger implementation using the standard log package
type defaultLogger struct{}

func (l *defaultLogger) Debug(msg string, fields ...Field) {
	l.logWithFields("DEBUG", msg, fields...)
}

func (l *defaultLogger) Info(msg string, fields ...Field) {
	l.logWithFields("INFO", msg, fields...)
}

func (l *defaultLogger) Error(msg string, fields ...Field) {
	l.logWithFields("ERROR", msg, fields...)
}

func (l *defaultLogger) logWithFields(level, msg string, fields ...Field) {
	logMsg := level + ": " + msg
	for _, field := range fields {
		logMsg += " " + field.Key + "=" + formatValue(field.Value)
	}
	log.Println(logMsg)
}

func formatValue(v interface{}) string {
	switch val := v.(type) {
	case string:
		return val
	case error:
		return val.Error()
	default:
		return fmt.Sprintf("%v", val)
	}
}
