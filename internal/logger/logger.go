package logger

import (
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options configures the process logger
type Options struct {
	Level  string // debug, info, warn, error
	Format string // console or json
	File   string // optional path; rotated with lumberjack

	MaxSizeMB  int
	MaxBackups int
}

// DefaultLogger is the logger used by packages that are not handed one
var DefaultLogger = zap.NewNop()

// SetLogger sets the default logger
func SetLogger(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	DefaultLogger = l
}

// L returns the default logger
func L() *zap.Logger {
	return DefaultLogger
}

// New builds a zap logger from options
func New(opts Options) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(strings.ToLower(strings.TrimSpace(opts.Level)))
	if opts.Level == "" {
		level, err = zapcore.InfoLevel, nil
	}
	if err != nil {
		return nil, fmt.Errorf("parsing log level: %w", err)
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var enc zapcore.Encoder
	switch opts.Format {
	case "", "console":
		encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		enc = zapcore.NewConsoleEncoder(encCfg)
	case "json":
		enc = zapcore.NewJSONEncoder(encCfg)
	default:
		return nil, fmt.Errorf("unknown log format: %s", opts.Format)
	}

	var sink zapcore.WriteSyncer
	if opts.File != "" {
		sink = zapcore.AddSync(&lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    orDefault(opts.MaxSizeMB, 10),
			MaxBackups: orDefault(opts.MaxBackups, 3),
			Compress:   true,
		})
	} else {
		sink = zapcore.Lock(os.Stderr)
	}

	return zap.New(zapcore.NewCore(enc, sink, level)), nil
}

func orDefault(v, d int) int {
	if v <= 0 {
		return d
	}
	return v
}
