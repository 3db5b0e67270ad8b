package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/loykin/waitforme/internal/config"
	"github.com/loykin/waitforme/pkg/client"
)

type command struct {
	out    io.Writer
	errOut io.Writer
	in     io.Reader
}

// apiClient returns a client for the launcher at f.APIUrl, failing early when
// nothing answers there.
func (c *command) apiClient(ctx context.Context, f ClientFlags) (*client.Client, error) {
	cl := client.New(client.Config{BaseURL: f.APIUrl, Timeout: f.APITimeout})
	if !cl.IsReachable(ctx) {
		return nil, fmt.Errorf("launcher not reachable at %s - start it first with 'waitforme run'", cl.BaseURL())
	}
	return cl, nil
}

func (c *command) Retry(ctx context.Context, f ClientFlags) error {
	cl, err := c.apiClient(ctx, f)
	if err != nil {
		return err
	}
	if err := cl.Retry(ctx); err != nil {
		return err
	}
	_, _ = fmt.Fprintln(c.out, "retry requested")
	return nil
}

// statusView is what "status" prints.
type statusView struct {
	client.Status
	Processes []client.ProcessSample `json:"processes,omitempty"`
}

func (c *command) Status(ctx context.Context, f ClientFlags, withProcesses bool) error {
	cl, err := c.apiClient(ctx, f)
	if err != nil {
		return err
	}
	st, err := cl.Status(ctx)
	if err != nil {
		return err
	}
	view := statusView{Status: st}
	if withProcesses {
		if view.Processes, err = cl.Processes(ctx); err != nil {
			return err
		}
	}
	printJSON(c.out, view)
	return nil
}

func (c *command) ShowLogs(ctx context.Context, f ClientFlags) error {
	cl, err := c.apiClient(ctx, f)
	if err != nil {
		return err
	}
	return cl.ShowLogs(ctx)
}

func (c *command) Close(ctx context.Context, f ClientFlags) error {
	cl, err := c.apiClient(ctx, f)
	if err != nil {
		return err
	}
	if err := cl.Close(ctx); err != nil {
		return err
	}
	_, _ = fmt.Fprintln(c.out, "launcher closed")
	return nil
}

func resolveConfigPath(path string) (string, error) {
	if path != "" {
		return path, nil
	}
	return config.DefaultPath()
}

func (c *command) ConfigPath(path string) error {
	p, err := resolveConfigPath(path)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintln(c.out, p)
	return nil
}

// ConfigShow prints the config the next launch would use. Like a launch, it
// writes defaults for missing keys back to the file.
func (c *command) ConfigShow(path string) error {
	p, err := resolveConfigPath(path)
	if err != nil {
		return err
	}
	cfg, err := config.Load(p)
	if err != nil {
		return err
	}
	printJSON(c.out, cfg)
	return nil
}

func (c *command) ConfigInit(f ConfigInitFlags) error {
	p, err := resolveConfigPath(f.ConfigPath)
	if err != nil {
		return err
	}
	if _, err := os.Stat(p); err == nil && !f.Force {
		return fmt.Errorf("config %s already exists (use --force to overwrite)", p)
	} else if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	if err := config.Write(p, config.Defaults()); err != nil {
		return err
	}
	_, _ = fmt.Fprintln(c.out, p)
	return nil
}
