package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"

	"github.com/loykin/waitforme"
	"github.com/loykin/waitforme/internal/config"
	"github.com/loykin/waitforme/internal/logger"
)

// Run starts the launcher and blocks until komorebi is confirmed running or
// the launcher is closed. A failed outcome becomes exit code 1.
func (c *command) Run(ctx context.Context, f RunFlags) error {
	configPath := f.ConfigPath
	if configPath == "" {
		p, err := config.DefaultPath()
		if err != nil {
			return fmt.Errorf("resolve config path: %w", err)
		}
		configPath = p
	}
	logPath := filepath.Join(filepath.Dir(configPath), "logs", "waitforme.log")

	// The splash renders on stdout and reads typed commands from stdin;
	// colored log lines go to stderr.
	var console, logConsole io.Writer
	var input io.Reader
	if !f.NoConsole {
		console, logConsole, input = c.out, c.errOut, c.in
	}
	sink, err := logger.Open(logger.Config{
		Path:    logPath,
		Level:   f.LogLevel,
		Console: logConsole,
	})
	if err != nil {
		return fmt.Errorf("open log: %w", err)
	}
	defer func() { _ = sink.Close() }()
	slog.SetDefault(sink.Logger)

	l, err := waitforme.New(waitforme.Options{
		ConfigPath:    configPath,
		LogPath:       logPath,
		Logger:        sink.Logger,
		Binary:        f.Command,
		Images:        waitforme.Images{Primary: f.PrimaryImage, Bar: f.CompanionImage},
		MaxAttempts:   f.MaxAttempts,
		SettleDelay:   f.Settle,
		FadeDuration:  f.Fade,
		InspectorKind: f.Inspector,
		Listen:        f.Listen,
		BasePath:      f.BasePath,
		Metrics:       f.Metrics,
		Console:       console,
		Input:         input,
	})
	if err != nil {
		return err
	}

	runErr := l.Run(ctx)
	code := l.ExitCode(runErr)
	if runErr != nil && !isShutdown(runErr) {
		sink.Logger.Error("launcher stopped", "error", runErr)
		return runErr
	}
	if code != 0 {
		return &exitCodeError{code: code}
	}
	return nil
}

func isShutdown(err error) bool {
	return errors.Is(err, waitforme.ErrClosed) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}
