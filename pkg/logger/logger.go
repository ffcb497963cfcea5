package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger wraps zap's sugared logger with key/value style methods used
// throughout the service.
type Logger struct {
	sugar *zap.SugaredLogger
}

// NewLogger creates a logger for the given environment. "production" emits
// JSON to stdout; anything else uses the console encoder at debug level.
func NewLogger(environment string) *Logger {
	var cfg zap.Config
	if environment == "production" {
		cfg = zap.NewProductionConfig()
	} else {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	cfg.OutputPaths = []string{"stdout"}

	base, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		// Fall back to a bare logger rather than refusing to start.
		base = zap.NewExample()
		base.Warn("failed to build configured logger", zap.Error(err))
	}

	return &Logger{sugar: base.Sugar()}
}

// NewNop returns a logger that discards everything. Used in tests.
func NewNop() *Logger {
	return &Logger{sugar: zap.NewNop().Sugar()}
}

// Named returns a child logger with the given name segment.
func (l *Logger) Named(name string) *Logger {
	return &Logger{sugar: l.sugar.Named(name)}
}

// ForRequest returns a child logger annotated with request metadata.
func (l *Logger) ForRequest(requestID, method, path string) *Logger {
	return &Logger{sugar: l.sugar.With(
		"request_id", requestID,
		"method", method,
		"path", path,
	)}
}

func (l *Logger) Debug(msg string, keysAndValues ...interface{}) {
	l.sugar.Debugw(msg, keysAndValues...)
}

func (l *Logger) Info(msg string, keysAndValues ...interface{}) {
	l.sugar.Infow(msg, keysAndValues...)
}

func (l *Logger) Warn(msg string, keysAndValues ...interface{}) {
	l.sugar.Warnw(msg, keysAndValues...)
}

func (l *Logger) Error(msg string, keysAndValues ...interface{}) {
	l.sugar.Errorw(msg, keysAndValues...)
}

func (l *Logger) Fatal(msg string, keysAndValues ...interface{}) {
	l.sugar.Fatalw(msg, keysAndValues...)
}

// Infow and friends keep the explicit sugared names available for callers
// that prefer them.
func (l *Logger) Infow(msg string, keysAndValues ...interface{})  { l.sugar.Infow(msg, keysAndValues...) }
func (l *Logger) Errorw(msg string, keysAndValues ...interface{}) { l.sugar.Errorw(msg, keysAndValues...) }

// Sync flushes buffered log entries.
func (l *Logger) Sync() error {
	return l.sugar.Sync()
}
