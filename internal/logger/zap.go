package logger

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger wraps zap's SugaredLogger.
type Logger struct {
	*zap.SugaredLogger
}

// defaultZapLevel is the fallback when an unknown level string is provided.
const defaultZapLevel = zapcore.DebugLevel

// Rotation limits for the optional file sink.
const (
	logMaxSizeMB  = 50
	logMaxBackups = 5
	logMaxAgeDays = 28
)

// toZapLevel converts a textual level to zapcore.Level.
func toZapLevel(levelStr string) zapcore.Level {
	switch levelStr {
	case InfoLevel:
		return zapcore.InfoLevel
	case WarnLevel:
		return zapcore.WarnLevel
	case ErrorLevel:
		return zapcore.ErrorLevel
	default:
		return defaultZapLevel
	}
}

func encoderConfig() zapcore.EncoderConfig {
	cfg := zap.NewProductionEncoderConfig()
	cfg.EncodeTime = zapcore.RFC3339TimeEncoder
	cfg.EncodeLevel = zapcore.CapitalLevelEncoder
	return cfg
}

// newConsoleCore builds a core with a console encoder targeting stdout.
func newConsoleCore(level zapcore.Level) zapcore.Core {
	encoder := zapcore.NewConsoleEncoder(encoderConfig())
	ws := zapcore.Lock(os.Stdout) // thread-safe writer
	return zapcore.NewCore(encoder, zapcore.AddSync(ws), zap.NewAtomicLevelAt(level))
}

// newFileCore builds a JSON core writing to a lumberjack-rotated file.
func newFileCore(level zapcore.Level, path string) zapcore.Core {
	w := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    logMaxSizeMB,
		MaxBackups: logMaxBackups,
		MaxAge:     logMaxAgeDays,
		Compress:   true,
	}
	encoder := zapcore.NewJSONEncoder(encoderConfig())
	return zapcore.NewCore(encoder, zapcore.AddSync(w), zap.NewAtomicLevelAt(level))
}

// newZapLogger constructs a sugared zap logger with the provided level,
// teeing to a rotated file when a path is configured.
func newZapLogger(levelStr, file string) *Logger {
	level := toZapLevel(levelStr)
	core := newConsoleCore(level)
	if file != "" {
		core = zapcore.NewTee(core, newFileCore(level, file))
	}
	return &Logger{
		SugaredLogger: zap.New(core).Sugar(),
	}
}

// Nop returns a logger that discards everything; used in tests.
func Nop() *Logger {
	return &Logger{SugaredLogger: zap.NewNop().Sugar()}
}
