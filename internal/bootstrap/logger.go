package bootstrap

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"go.uber.org/fx"
	"gopkg.in/natefinch/lumberjack.v2"
)

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func newLogWriter(cfg *Config) (io.Writer, io.Closer) {
	if cfg.LogFile == "" {
		return os.Stdout, nil
	}

	file := &lumberjack.Logger{
		Filename:   cfg.LogFile,
		LocalTime:  true,
		Compress:   true,
		MaxSize:    100,
		MaxAge:     7,
		MaxBackups: 3,
	}
	return io.MultiWriter(os.Stdout, file), file
}

// ProvideLogger builds the process logger and installs it as the slog
// default so packages that fall back to slog.Default share it.
func ProvideLogger(lc fx.Lifecycle, cfg *Config) *slog.Logger {
	writer, closer := newLogWriter(cfg)

	logger := slog.New(slog.NewJSONHandler(writer, &slog.HandlerOptions{
		Level: parseLevel(cfg.LogLevel),
	}))
	slog.SetDefault(logger)

	if closer != nil {
		lc.Append(fx.StopHook(closer.Close))
	}
	return logger
}
