package waitforme

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/loykin/waitforme/internal/config"
	"github.com/loykin/waitforme/internal/env"
	"github.com/loykin/waitforme/internal/events"
	"github.com/loykin/waitforme/internal/inspector"
	"github.com/loykin/waitforme/internal/launch"
	"github.com/loykin/waitforme/internal/liveness"
	"github.com/loykin/waitforme/internal/metrics"
	"github.com/loykin/waitforme/internal/server"
	"github.com/loykin/waitforme/internal/supervisor"
	"github.com/loykin/waitforme/internal/ui"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"
)

// Re-export core types for external consumers.
// These are aliases so conversions are zero-cost.

type AppConfig = config.AppConfig

type LaunchOptions = config.LaunchOptions

type Snapshot = supervisor.Snapshot

type StatusEvent = events.StatusEvent

type Event = events.Event

type Images = liveness.Images

type Spawner = launch.Spawner

type Handle = launch.Handle

type Result = launch.Result

type Inspector = inspector.Inspector

var (
	// ErrClosed is returned by Run when the splash was closed before komorebi
	// was confirmed running.
	ErrClosed = errors.New("launcher closed")
	// ErrAlreadyRunning is returned by a second call to Run.
	ErrAlreadyRunning = errors.New("launcher already running")
)

// Options configure a Launcher. Zero values select the defaults.
type Options struct {
	// ConfigPath is the JSON config file (default: user config dir).
	ConfigPath string
	// LogPath is shown to the user on failure and opened by ShowLogs.
	// Defaults to logs/waitforme.log next to the config file.
	LogPath string
	Logger  *slog.Logger

	Binary       string
	Images       Images
	MaxAttempts  int
	SettleDelay  time.Duration
	FadeDuration time.Duration
	FadeSteps    int
	// InspectorKind selects the process inspector ("tasklist" or "process").
	InspectorKind   string
	LoadingInterval time.Duration
	// ConfigDebounce delays config reload after a file event.
	ConfigDebounce time.Duration

	// Listen is the control API address; empty disables the API.
	Listen   string
	BasePath string
	// Metrics registers Prometheus collectors and mounts /metrics.
	Metrics bool

	// Console receives the splash rendering; nil renders nothing.
	Console io.Writer
	// Input is read for typed commands; nil disables the reader.
	Input io.Reader

	// Spawner and Inspector override the OS-backed implementations.
	Spawner   Spawner
	Inspector Inspector
	// OpenPath overrides how the log file is opened.
	OpenPath func(path string) error
}

// Launcher wires the supervisor to the config file, the splash surface and
// the control API.
type Launcher struct {
	opts   Options
	logger *slog.Logger
	bus    *events.Bus
	source *config.Source
	sup    *supervisor.Supervisor
	window *ui.ConsoleWindow

	started atomic.Bool
	closed  atomic.Bool

	mu     sync.Mutex
	cancel context.CancelFunc
	addr   string
}

func New(opts Options) (*Launcher, error) {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.ConfigPath == "" {
		p, err := config.DefaultPath()
		if err != nil {
			return nil, fmt.Errorf("resolve config path: %w", err)
		}
		opts.ConfigPath = p
	}
	if opts.LogPath == "" {
		opts.LogPath = filepath.Join(filepath.Dir(opts.ConfigPath), "logs", "waitforme.log")
	}
	if opts.Binary == "" {
		opts.Binary = launch.DefaultBinary
	}
	if opts.Images.Primary == "" {
		opts.Images.Primary = liveness.DefaultPrimary
	}
	if opts.Images.Bar == "" {
		opts.Images.Bar = liveness.DefaultBar
	}
	if opts.FadeDuration <= 0 {
		opts.FadeDuration = ui.DefaultFadeDuration
	}
	if opts.FadeSteps <= 0 {
		opts.FadeSteps = ui.DefaultFadeSteps
	}
	if opts.OpenPath == nil {
		opts.OpenPath = ui.OpenPath
	}

	insp := opts.Inspector
	if insp == nil {
		var err error
		if insp, err = inspector.New(opts.InspectorKind); err != nil {
			return nil, err
		}
	}
	spawner := opts.Spawner
	if spawner == nil {
		spawner = &launch.ExecSpawner{Logger: opts.Logger}
	}

	l := &Launcher{
		opts:   opts,
		logger: opts.Logger,
		bus:    events.New(),
		source: config.NewSource(opts.ConfigPath, opts.Logger),
	}
	l.window = ui.NewConsoleWindow(opts.Console, l.bus, l.stop)
	l.sup = supervisor.New(supervisor.Options{
		Binary:      opts.Binary,
		Images:      opts.Images,
		MaxAttempts: opts.MaxAttempts,
		SettleDelay: opts.SettleDelay,
		LogPath:     opts.LogPath,
		Env:         env.New(),
		Fade: func(ctx context.Context) error {
			return ui.Fade(ctx, l.window, opts.FadeDuration, opts.FadeSteps)
		},
		Logger: opts.Logger,
	}, l.source, spawner, liveness.NewChecker(insp, opts.Logger), l.bus)
	l.logger.Debug("launcher configured",
		"config", opts.ConfigPath, "log", opts.LogPath, "inspector", insp.Describe())
	return l, nil
}

// Run starts the startup sequence and blocks until komorebi is confirmed
// running (nil), the splash is closed (ErrClosed) or ctx is done (ctx.Err()).
// A bind failure on the control API is returned before anything is spawned.
func (l *Launcher) Run(ctx context.Context) error {
	if !l.started.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}

	var ln net.Listener
	if l.opts.Listen != "" {
		var err error
		if ln, err = net.Listen("tcp", l.opts.Listen); err != nil {
			return fmt.Errorf("listen %s: %w", l.opts.Listen, err)
		}
		l.mu.Lock()
		l.addr = ln.Addr().String()
		l.mu.Unlock()
	}
	if err := os.MkdirAll(filepath.Dir(l.opts.ConfigPath), 0o750); err != nil {
		l.logger.Warn("config dir unavailable", "path", l.opts.ConfigPath, "error", err)
	}
	if l.opts.Metrics {
		if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
			l.logger.Warn("metrics registration failed", "error", err)
		}
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	l.mu.Lock()
	l.cancel = cancel
	l.mu.Unlock()
	if l.closed.Load() {
		if ln != nil {
			_ = ln.Close()
		}
		return ErrClosed
	}

	if l.opts.Console != nil {
		defer ui.NewConsoleRenderer(l.opts.Console).Attach(l.bus)()
	}

	g, gctx := errgroup.WithContext(runCtx)
	bgCtx, stopBg := context.WithCancel(gctx)
	defer stopBg()

	g.Go(func() error {
		defer stopBg()
		return l.sup.Run(gctx)
	})
	g.Go(func() error {
		t := &ui.LoadingTicker{Interval: l.opts.LoadingInterval, Notify: l.bus}
		return t.Run(bgCtx)
	})
	g.Go(func() error {
		w := config.NewWatcher(l.source, l.opts.ConfigDebounce, l.logger)
		w.OnReload(func(cfg config.AppConfig) {
			l.bus.Emit(events.ConfigDataEvent{Config: cfg})
		})
		if err := w.Run(bgCtx); err != nil {
			l.logger.Warn("config watcher stopped", "error", err)
		}
		return nil
	})
	if l.opts.Input != nil {
		g.Go(func() error {
			r := &ui.CommandReader{In: l.opts.Input, Commands: l, Logger: l.logger}
			if err := r.Run(bgCtx); err != nil {
				l.logger.Warn("command input stopped", "error", err)
			}
			return nil
		})
	}
	if ln != nil {
		router := server.NewRouter(l, l.bus, server.Options{
			BasePath: l.opts.BasePath,
			Metrics:  l.opts.Metrics,
			Images:   []string{l.opts.Images.Primary, l.opts.Images.Bar},
			Logger:   l.logger,
		})
		srv := server.NewServer(ln.Addr().String(), router.Handler())
		g.Go(func() error {
			l.logger.Info("control API listening", "addr", ln.Addr().String(), "base", l.opts.BasePath)
			if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("control API: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-bgCtx.Done()
			sctx, scancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer scancel()
			return srv.Shutdown(sctx)
		})
	}

	err := g.Wait()
	switch {
	case err == nil:
		return nil
	case l.closed.Load() && errors.Is(err, context.Canceled):
		return ErrClosed
	case ctx.Err() != nil:
		return ctx.Err()
	default:
		return err
	}
}

// ExitCode maps the result of Run to a process exit code: 0 when komorebi
// started, or when the splash was closed without a recorded failure.
func (l *Launcher) ExitCode(runErr error) int {
	if runErr == nil {
		return 0
	}
	if errors.Is(runErr, ErrClosed) || errors.Is(runErr, context.Canceled) {
		if st := l.sup.Snapshot().LastStatus; st == nil || st.Status {
			return 0
		}
	}
	return 1
}

// Addr returns the bound control API address, or "" when the API is disabled
// or Run has not started.
func (l *Launcher) Addr() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.addr
}

// Retry starts a new attempt. It is a no-op once Run has returned.
func (l *Launcher) Retry() {
	if err := l.sup.Retry(); err != nil {
		l.logger.Warn("retry ignored", "error", err)
	}
}

// ShowLogs opens the log file with the OS default handler.
func (l *Launcher) ShowLogs() error {
	if err := l.opts.OpenPath(l.opts.LogPath); err != nil {
		l.logger.Error("open log failed", "path", l.opts.LogPath, "error", err)
		return err
	}
	return nil
}

func (l *Launcher) Minimize() error { return l.window.Minimize() }

// Close closes the splash and stops Run.
func (l *Launcher) Close() error { return l.window.Close() }

func (l *Launcher) Snapshot() Snapshot { return l.sup.Snapshot() }

// Config returns the most recently loaded config.
func (l *Launcher) Config() AppConfig { return l.source.Current() }

// ConfigPath returns the config file in use.
func (l *Launcher) ConfigPath() string { return l.opts.ConfigPath }

// LogPath returns the log file shown on failure.
func (l *Launcher) LogPath() string { return l.opts.LogPath }

// Subscribe receives every event published by the launcher until the returned
// function is called.
func (l *Launcher) Subscribe(handler func(Event)) func() {
	return l.bus.SubscribeAll(handler)
}

func (l *Launcher) stop() {
	l.closed.Store(true)
	l.mu.Lock()
	cancel := l.cancel
	l.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Metrics helpers (public facade)

func RegisterMetrics(r prometheus.Registerer) error { return metrics.Register(r) }
func RegisterMetricsDefault() error                 { return metrics.Register(prometheus.DefaultRegisterer) }

// LoadConfig reads path, backfilling and persisting any missing keys.
func LoadConfig(path string) (AppConfig, error) { return config.Load(path) }

// DefaultConfig returns the config written on first run.
func DefaultConfig() AppConfig { return config.Defaults() }
