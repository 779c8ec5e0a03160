package log

import (
	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	logger logr.Logger
)

func init() {
	logger = newZapLogger(zapcore.WarnLevel)
}

// newZapLogger builds a development-style zap logger writing to stderr so
// log lines never interleave with command output on stdout.
func newZapLogger(level zapcore.Level) logr.Logger {
	cfg := zap.NewDevelopmentConfig()
	cfg.Level = zap.NewAtomicLevelAt(level)
	zapLog, err := cfg.Build()
	if err != nil {
		panic(err)
	}
	return zapr.NewLogger(zapLog)
}

// SetVerbose lowers the global logger threshold to debug output.
func SetVerbose() {
	logger = newZapLogger(zapcore.DebugLevel)
}

// Logger returns the global logger
func Logger() logr.Logger {
	return logger
}

// SetLogger sets the global logger
func SetLogger(l logr.Logger) {
	logger = l
}

// Info logs a non-error message with the given key/value pairs as context
func Info(msg string, keysAndValues ...interface{}) {
	logger.Info(msg, keysAndValues...)
}

// Debug logs a debug message with the given key/value pairs as context
func Debug(msg string, keysAndValues ...interface{}) {
	logger.V(1).Info(msg, keysAndValues...)
}

// Error logs an error message with the given key/value pairs as context
func Error(err error, msg string, keysAndValues ...interface{}) {
	logger.Error(err, msg, keysAndValues...)
}

// WithName adds a new element to the logger's name
func WithName(name string) logr.Logger {
	return logger.WithName(name)
}

// WithValues adds some key-value pairs of context to a logger
func WithValues(keysAndValues ...interface{}) logr.Logger {
	return logger.WithValues(keysAndValues...)
}
