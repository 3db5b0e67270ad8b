package ui

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// Command is a UI request, named as the UI channel names it.
type Command string

const (
	CmdRetry    Command = "retry"
	CmdShowLogs Command = "showLogs"
	CmdMinimize Command = "minimizeWindow"
	CmdClose    Command = "closeWindow"
)

// Commands is what UI requests act on.
type Commands interface {
	Retry()
	ShowLogs() error
	Minimize() error
	Close() error
}

var commandAliases = map[string]Command{
	"retry":          CmdRetry,
	"r":              CmdRetry,
	"showlogs":       CmdShowLogs,
	"logs":           CmdShowLogs,
	"l":              CmdShowLogs,
	"minimizewindow": CmdMinimize,
	"minimize":       CmdMinimize,
	"m":              CmdMinimize,
	"closewindow":    CmdClose,
	"close":          CmdClose,
	"quit":           CmdClose,
	"q":              CmdClose,
}

// ParseCommand resolves a command name or alias, ignoring case.
func ParseCommand(s string) (Command, bool) {
	c, ok := commandAliases[strings.ToLower(strings.TrimSpace(s))]
	return c, ok
}

// Dispatch runs c against cmds.
func Dispatch(cmds Commands, c Command) error {
	switch c {
	case CmdRetry:
		cmds.Retry()
		return nil
	case CmdShowLogs:
		return cmds.ShowLogs()
	case CmdMinimize:
		return cmds.Minimize()
	case CmdClose:
		return cmds.Close()
	default:
		return fmt.Errorf("unknown command %q", c)
	}
}

// CommandReader turns lines typed on a terminal into Commands.
type CommandReader struct {
	In       io.Reader
	Commands Commands
	Logger   *slog.Logger
}

// Run reads until EOF or ctx is done. Command errors are logged, never fatal.
func (r *CommandReader) Run(ctx context.Context) error {
	logger := r.Logger
	if logger == nil {
		logger = slog.Default()
	}
	lines := make(chan string)
	errc := make(chan error, 1)
	go func() {
		sc := bufio.NewScanner(r.In)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
		errc <- sc.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-errc:
			return err
		case line := <-lines:
			if strings.TrimSpace(line) == "" {
				continue
			}
			c, ok := ParseCommand(line)
			if !ok {
				logger.Warn("unknown command", "input", strings.TrimSpace(line))
				continue
			}
			if err := Dispatch(r.Commands, c); err != nil {
				logger.Error("command failed", "command", string(c), "error", err)
			}
		}
	}
}
