package main

import (
	"io"
	"log/slog"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/MrWong99/medscribe/internal/config"
)

// slogLevel maps a configured level to its slog value.
func slogLevel(level config.LogLevel) slog.Level {
	switch level {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// newLogger builds the process logger. Its level lives in the returned
// LevelVar so a config reload can change it. When file is set, output goes
// to a size-rotated file; the returned closer flushes it.
func newLogger(level config.LogLevel, file string) (*slog.Logger, *slog.LevelVar, io.Closer) {
	lv := new(slog.LevelVar)
	lv.Set(slogLevel(level))

	var (
		w      io.Writer = os.Stderr
		closer io.Closer = nopCloser{}
	)
	if file != "" {
		lj := &lumberjack.Logger{
			Filename:   file,
			MaxSize:    100, // megabytes
			MaxBackups: 5,
			MaxAge:     30, // days
			Compress:   true,
		}
		w, closer = lj, lj
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lv})), lv, closer
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
