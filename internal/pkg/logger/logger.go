// Package logger builds the zap loggers used by twinctl and the stores.
//
// JSON output for scripted use, console output for people. The level is an
// AtomicLevel so it can be changed after start-up.
package logger

import (
	"fmt"
	"io"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	mu          sync.Mutex
	global      *zap.Logger
	atomicLevel = zap.NewAtomicLevel()
)

// New builds a logger writing to w.
// level: debug, info, warn, error
// format: json or console
func New(level, format string, w io.Writer) (*zap.Logger, zap.AtomicLevel, error) {
	lvl := zap.NewAtomicLevel()
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, lvl, fmt.Errorf("parse log level %q: %w", level, err)
	}
	var enc zapcore.Encoder
	switch format {
	case "console":
		cfg := zap.NewDevelopmentEncoderConfig()
		cfg.EncodeLevel = zapcore.CapitalLevelEncoder
		enc = zapcore.NewConsoleEncoder(cfg)
	case "json", "":
		enc = zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	default:
		return nil, lvl, fmt.Errorf("unknown log format %q", format)
	}
	core := zapcore.NewCore(enc, zapcore.AddSync(w), lvl)
	return zap.New(core), lvl, nil
}

// Init replaces the global logger. Unlike New it may be called again, e.g.
// once flags are parsed.
func Init(level, format string, w io.Writer) error {
	l, lvl, err := New(level, format, w)
	if err != nil {
		return err
	}
	mu.Lock()
	defer mu.Unlock()
	global = l
	atomicLevel = lvl
	return nil
}

// SetLevel changes the level of the global logger.
func SetLevel(level string) error {
	mu.Lock()
	defer mu.Unlock()
	return atomicLevel.UnmarshalText([]byte(level))
}

// GetLevel returns the current global level.
func GetLevel() zapcore.Level {
	mu.Lock()
	defer mu.Unlock()
	return atomicLevel.Level()
}

// L returns the global logger, or a no-op logger before Init.
func L() *zap.Logger {
	mu.Lock()
	defer mu.Unlock()
	if global == nil {
		return zap.NewNop()
	}
	return global
}

// Sync flushes any buffered log entries.
func Sync() error {
	mu.Lock()
	l := global
	mu.Unlock()
	if l == nil {
		return nil
	}
	return l.Sync()
}
