package logging

import (
	"context"
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options configures the global logger.
type Options struct {
	Level      string // debug, info, warn, error
	FilePath   string // optional rotated log file, in addition to stdout
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	JSON       bool
}

var (
	mu       sync.RWMutex
	disabled = false
	logger   = newSugar(Options{Level: "info"})
)

// Setup replaces the global logger. Safe to call more than once.
func Setup(opts Options) error {
	level, err := zapcore.ParseLevel(levelOrDefault(opts.Level))
	if err != nil {
		return err
	}
	opts.Level = level.String()

	mu.Lock()
	old := logger
	logger = newSugar(opts)
	mu.Unlock()

	_ = old.Sync()
	return nil
}

func levelOrDefault(level string) string {
	if level == "" {
		return "info"
	}
	return level
}

func newSugar(opts Options) *zap.SugaredLogger {
	level, err := zapcore.ParseLevel(levelOrDefault(opts.Level))
	if err != nil {
		level = zapcore.InfoLevel
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "ts"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var enc zapcore.Encoder
	if opts.JSON {
		enc = zapcore.NewJSONEncoder(encCfg)
	} else {
		encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		enc = zapcore.NewConsoleEncoder(encCfg)
	}

	cores := []zapcore.Core{
		zapcore.NewCore(enc, zapcore.Lock(os.Stdout), level),
	}

	if opts.FilePath != "" {
		rotator := &lumberjack.Logger{
			Filename:   opts.FilePath,
			MaxSize:    opts.MaxSizeMB,
			MaxBackups: opts.MaxBackups,
			MaxAge:     opts.MaxAgeDays,
			Compress:   true,
		}
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), zapcore.AddSync(rotator), level))
	}

	return zap.New(zapcore.NewTee(cores...)).Sugar()
}

func get() *zap.SugaredLogger {
	mu.RLock()
	defer mu.RUnlock()
	if disabled {
		return nil
	}
	return logger
}

// Disable turns off all logging
func Disable() {
	mu.Lock()
	disabled = true
	mu.Unlock()
}

// Enable turns logging back on
func Enable() {
	mu.Lock()
	disabled = false
	mu.Unlock()
}

// Sync flushes buffered log entries.
func Sync() {
	mu.RLock()
	l := logger
	mu.RUnlock()
	_ = l.Sync()
}

// Info logs an info message
func Info(v ...any) {
	if l := get(); l != nil {
		l.Info(v...)
	}
}

// Infof logs a formatted info message
func Infof(format string, v ...any) {
	if l := get(); l != nil {
		l.Infof(format, v...)
	}
}

// Errorf logs a formatted error message
func Errorf(format string, v ...any) {
	if l := get(); l != nil {
		l.Errorf(format, v...)
	}
}

// Warnf logs a formatted warning message
func Warnf(format string, v ...any) {
	if l := get(); l != nil {
		l.Warnf(format, v...)
	}
}

// Debugf logs a formatted debug message
func Debugf(format string, v ...any) {
	if l := get(); l != nil {
		l.Debugf(format, v...)
	}
}

type ctxKey struct{}

// Logger is a small logger that can be embedded in structs and carries
// key/value fields attached through the context.
type Logger struct {
	fields []any
}

// WithFields returns a context whose Logger carries the given key/value pairs.
func WithFields(ctx context.Context, kv ...any) context.Context {
	prev, _ := ctx.Value(ctxKey{}).([]any)
	fields := make([]any, 0, len(prev)+len(kv))
	fields = append(fields, prev...)
	fields = append(fields, kv...)
	return context.WithValue(ctx, ctxKey{}, fields)
}

// WithContext creates a Logger carrying the fields stored in ctx.
func WithContext(ctx context.Context) Logger {
	fields, _ := ctx.Value(ctxKey{}).([]any)
	return Logger{fields: fields}
}

func (l Logger) sugar() *zap.SugaredLogger {
	s := get()
	if s == nil || len(l.fields) == 0 {
		return s
	}
	return s.With(l.fields...)
}

// Infof logs a formatted info message
func (l Logger) Infof(format string, v ...any) {
	if s := l.sugar(); s != nil {
		s.Infof(format, v...)
	}
}

// Warnf logs a formatted warning message
func (l Logger) Warnf(format string, v ...any) {
	if s := l.sugar(); s != nil {
		s.Warnf(format, v...)
	}
}

// Debugf logs a formatted debug message
func (l Logger) Debugf(format string, v ...any) {
	if s := l.sugar(); s != nil {
		s.Debugf(format, v...)
	}
}
