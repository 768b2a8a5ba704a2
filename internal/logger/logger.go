package logger

import (
	"sync"
)

// Log levels used across the application.
const (
	DebugLevel = "debug"
	InfoLevel  = "info"
	WarnLevel  = "warn"
	ErrorLevel = "error"
)

var (
	// globalLogger holds the singleton logger instance.
	globalLogger *Logger
	once         sync.Once
)

// Get returns a singleton logger configured with the provided level and
// optional rotated log file (empty path logs to stdout only). The first
// call initializes the logger; subsequent calls ignore the arguments
// and return the already initialized instance.
func Get(level, file string) *Logger {
	once.Do(func() {
		globalLogger = newZapLogger(level, file)
	})
	return globalLogger
}
