package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	lj "gopkg.in/natefinch/lumberjack.v2"
)

// Default logging configuration constants
const (
	DefaultMaxSizeMB  = 10 // MB
	DefaultMaxBackups = 3  // number of backup files
	DefaultMaxAgeDays = 7  // days
)

// Config describes where the launcher log goes.
// The file at Path is truncated on Open so every run starts with a clean log.
// Rotation parameters follow lumberjack semantics.
type Config struct {
	Path       string    // log file; empty disables the file sink
	Level      string    // debug|info|warn|error (default info)
	Console    io.Writer // colored console sink; nil disables it
	ShowTime   bool      // include timestamps on the console
	MaxSizeMB  int       // megabytes before rotation (default 10)
	MaxBackups int       // number of backups to keep (default 3)
	MaxAgeDays int       // days to keep (default 7)
	Compress   bool      // Gzip rotated files
}

// Sink is an opened logging setup. Close flushes and releases the log file.
type Sink struct {
	Logger *slog.Logger
	Path   string
	file   io.WriteCloser
}

func (s *Sink) Close() error {
	if s == nil || s.file == nil {
		return nil
	}
	return s.file.Close()
}

// Open truncates the log file and builds a logger writing "[LEVEL] message"
// lines to it, plus colored lines to the console when configured.
func Open(c Config) (*Sink, error) {
	level, err := ParseLevel(c.Level)
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}

	var handlers []slog.Handler
	sink := &Sink{Path: c.Path}
	if c.Path != "" {
		w, err := c.fileWriter()
		if err != nil {
			return nil, err
		}
		sink.file = w
		handlers = append(handlers, NewLineHandler(w, opts))
	}
	if c.Console != nil {
		handlers = append(handlers, NewColorTextHandler(c.Console, opts, c.ShowTime))
	}

	switch len(handlers) {
	case 0:
		sink.Logger = slog.New(NewLineHandler(io.Discard, opts))
	case 1:
		sink.Logger = slog.New(handlers[0])
	default:
		sink.Logger = slog.New(NewMultiHandler(handlers...))
	}
	return sink, nil
}

func (c Config) fileWriter() (io.WriteCloser, error) {
	if err := os.MkdirAll(filepath.Dir(c.Path), 0o750); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	// truncate; lumberjack only ever appends
	f, err := os.OpenFile(c.Path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o640)
	if err != nil {
		return nil, fmt.Errorf("truncate log file: %w", err)
	}
	_ = f.Close()
	return &lj.Logger{
		Filename:   c.Path,
		MaxSize:    valOr(c.MaxSizeMB, DefaultMaxSizeMB),
		MaxBackups: valOr(c.MaxBackups, DefaultMaxBackups),
		MaxAge:     valOr(c.MaxAgeDays, DefaultMaxAgeDays),
		Compress:   c.Compress,
	}, nil
}

// ParseLevel maps a level name to a slog.Level. Empty means info.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}

func valOr(v int, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
