package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options selects the logging backend.
//
//   - Format: "json" (slog JSON handler, default), "text" (slog text handler)
//     or "zap" (zap production encoder).
//   - Level: debug, info, warn or error.
//   - File: when set, output goes to a rotated file instead of stdout.
type Options struct {
	Format string
	Level  string
	File   string
}

// New builds a Logger from opts.
func New(opts Options) (Logger, error) {
	var w io.Writer = os.Stdout
	if opts.File != "" {
		w = &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    50,
			MaxBackups: 5,
			MaxAge:     30,
			Compress:   true,
		}
	}

	level, err := parseLevel(opts.Level)
	if err != nil {
		return nil, err
	}

	switch strings.ToLower(opts.Format) {
	case "", "json":
		h := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
		return NewSlogLogger(slog.New(h)), nil
	case "text":
		h := slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
		return NewSlogLogger(slog.New(h)), nil
	case "zap":
		enc := zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
		core := zapcore.NewCore(enc, zapcore.AddSync(w), zapLevel(level))
		return NewZapLogger(zap.New(core)), nil
	default:
		return nil, fmt.Errorf("unknown log format %q", opts.Format)
	}
}

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
}

func zapLevel(l slog.Level) zapcore.Level {
	switch {
	case l <= slog.LevelDebug:
		return zapcore.DebugLevel
	case l <= slog.LevelInfo:
		return zapcore.InfoLevel
	case l <= slog.LevelWarn:
		return zapcore.WarnLevel
	default:
		return zapcore.ErrorLevel
	}
}
