package supervisor

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/loykin/waitforme/internal/config"
	"github.com/loykin/waitforme/internal/env"
	"github.com/loykin/waitforme/internal/events"
	"github.com/loykin/waitforme/internal/launch"
	"github.com/loykin/waitforme/internal/liveness"
	"github.com/loykin/waitforme/internal/metrics"
)

const (
	DefaultMaxAttempts = 8
	DefaultSettleDelay = 2 * time.Second
)

// Spawn triggers, used as metric labels.
const (
	triggerInitial = "initial"
	triggerRetry   = "retry"
	triggerManual  = "manual"
)

// ConfigSource yields the launch config. It is called at the start of every
// attempt and must not fail.
type ConfigSource interface {
	Load() config.AppConfig
}

// Verifier decides whether komorebi is actually running.
type Verifier interface {
	Check(ctx context.Context, req liveness.Requirement) bool
}

// Notifier receives status and state events.
type Notifier interface {
	Emit(events.Event)
}

// Options tune a Supervisor. Zero values select the defaults.
type Options struct {
	Binary      string
	Images      liveness.Images
	MaxAttempts int
	SettleDelay time.Duration
	// LogPath is attached to failure events so the UI can offer it.
	LogPath string
	// Env expands ${VAR} and %VAR% in the config path and custom args.
	// Nil leaves them verbatim.
	Env *env.Env
	// Fade runs after the settle delay on success.
	Fade   func(ctx context.Context) error
	Logger *slog.Logger
}

// Snapshot is a read-only view of the supervisor.
type Snapshot struct {
	State        string              `json:"state"`
	AttemptsMade int                 `json:"attempts_made"`
	MaxAttempts  int                 `json:"max_attempts"`
	Sequence     string              `json:"sequence"`
	Outstanding  int                 `json:"outstanding"`
	LastStatus   *events.StatusEvent `json:"last_status,omitempty"`
	LastError    string              `json:"last_error,omitempty"`
}

type command struct {
	action   commandAction
	sequence string
	pid      int
	req      liveness.Requirement
	result   launch.Result
}

type commandAction int

const (
	actionRetry commandAction = iota
	actionExited
)

// Supervisor runs one bounded startup sequence at a time: spawn komorebic,
// wait for it to exit, verify komorebi is live, then succeed, retry or fail.
//
// A single goroutine (Run) owns all state. Attempt waiters and Retry only post
// commands to it.
type Supervisor struct {
	opts     Options
	config   ConfigSource
	spawner  launch.Spawner
	verifier Verifier
	notify   Notifier
	logger   *slog.Logger

	cmdCh   chan command
	doneCh  chan struct{}
	started atomic.Bool

	mu          sync.RWMutex
	state       State
	attempts    int
	sequence    string
	outstanding int
	lastStatus  *events.StatusEvent
	lastErr     error
}

func New(opts Options, cfg ConfigSource, spawner launch.Spawner, verifier Verifier, notify Notifier) *Supervisor {
	if opts.Binary == "" {
		opts.Binary = launch.DefaultBinary
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultMaxAttempts
	}
	if opts.SettleDelay <= 0 {
		opts.SettleDelay = DefaultSettleDelay
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Supervisor{
		opts:     opts,
		config:   cfg,
		spawner:  spawner,
		verifier: verifier,
		notify:   notify,
		logger:   opts.Logger,
		cmdCh:    make(chan command, 16), // Buffered to prevent blocking
		doneCh:   make(chan struct{}),
		state:    StateIdle,
		sequence: uuid.NewString(),
	}
}

// Run launches komorebi and drives the state machine until komorebi is
// confirmed running (returns nil) or ctx is done (returns ctx.Err()).
// A failed sequence does not end Run: the supervisor waits for a manual retry.
func (s *Supervisor) Run(ctx context.Context) error {
	if !s.started.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer close(s.doneCh)

	s.launch(ctx, triggerInitial)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case cmd := <-s.cmdCh:
			switch cmd.action {
			case actionRetry:
				s.logger.Info("manual retry requested", "state", s.State().String())
				s.launch(ctx, triggerManual)
			case actionExited:
				if s.handleExit(ctx, cmd) {
					s.finish(ctx)
					return nil
				}
			}
		}
	}
}

// Retry asks for a new attempt regardless of the attempt budget. It does not
// cancel an attempt that is still outstanding.
func (s *Supervisor) Retry() error {
	select {
	case s.cmdCh <- command{action: actionRetry}:
		return nil
	case <-s.doneCh:
		return ErrStopped
	}
}

// Done is closed when Run returns.
func (s *Supervisor) Done() <-chan struct{} { return s.doneCh }

func (s *Supervisor) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *Supervisor) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := Snapshot{
		State:        s.state.String(),
		AttemptsMade: s.attempts,
		MaxAttempts:  s.opts.MaxAttempts,
		Sequence:     s.sequence,
		Outstanding:  s.outstanding,
	}
	if s.lastStatus != nil {
		st := *s.lastStatus
		snap.LastStatus = &st
	}
	if s.lastErr != nil {
		snap.LastError = s.lastErr.Error()
	}
	return snap
}

// launch starts one attempt with a freshly loaded config.
func (s *Supervisor) launch(ctx context.Context, trigger string) {
	s.setState(StateLaunching)

	cfg := s.config.Load()
	s.emit(events.ConfigDataEvent{Config: cfg})
	lc := cfg.LaunchConfig()
	if s.opts.Env != nil {
		lc = s.opts.Env.ExpandLaunch(lc)
	}
	argv := launch.Command(lc)
	req := liveness.RequirementFor(lc.Options, s.opts.Images)

	s.mu.RLock()
	seq, attempts := s.sequence, s.attempts
	s.mu.RUnlock()

	s.logger.Info("Starting komorebi",
		"command", launch.CommandLine(s.opts.Binary, argv),
		"trigger", trigger,
		"attempt", attempts,
		"sequence", seq)
	metrics.IncSpawn(trigger)

	h, err := s.spawner.Spawn(ctx, s.opts.Binary, argv)
	if err != nil {
		s.logger.Error("Komorebi failed to start", "error", err, "sequence", seq)
		s.fail(err.Error(), err)
		return
	}

	s.mu.Lock()
	s.outstanding++
	s.mu.Unlock()
	s.setState(StateAwaitingExit)

	go func() {
		res := h.Wait()
		select {
		case s.cmdCh <- command{action: actionExited, sequence: seq, pid: h.PID(), req: req, result: res}:
		case <-s.doneCh:
		}
	}()
}

// handleExit applies the exit rules and reports whether the sequence succeeded.
func (s *Supervisor) handleExit(ctx context.Context, cmd command) bool {
	s.mu.Lock()
	s.outstanding--
	s.mu.Unlock()

	if err := cmd.result.Failure(); err != nil {
		s.logger.Error("Komorebi failed to start", "error", err, "pid", cmd.pid, "sequence", cmd.sequence)
		var errValue any = err.Error()
		var nz *launch.NonZeroExitError
		if errors.As(err, &nz) && nz.Signal == "" {
			errValue = nz.Code
		}
		s.fail(errValue, err)
		return false
	}

	s.setState(StateVerifying)
	if s.verifier.Check(ctx, cmd.req) {
		s.logger.Info("Komorebi started successfully", "pid", cmd.pid, "sequence", cmd.sequence)
		st := events.Succeeded()
		s.mu.Lock()
		s.lastStatus = &st
		s.lastErr = nil
		s.mu.Unlock()
		s.setState(StateSucceeded)
		metrics.IncAttempt("succeeded")
		s.emit(st)
		return true
	}

	s.mu.Lock()
	exhausted := s.attempts >= s.opts.MaxAttempts
	if !exhausted {
		s.attempts++
	}
	attempts := s.attempts
	s.mu.Unlock()

	if exhausted {
		s.logger.Error(MaxAttemptsMessage, "max_attempts", s.opts.MaxAttempts, "sequence", cmd.sequence)
		metrics.IncAttempt("exhausted")
		s.fail(MaxAttemptsMessage, ErrMaxAttempts)
		s.mu.Lock()
		s.attempts = 0
		s.sequence = uuid.NewString()
		s.mu.Unlock()
		metrics.SetAttemptsMade(0)
		return false
	}

	s.logger.Warn("Komorebi claimed to start but did not. Retrying.",
		"attempt", attempts, "max_attempts", s.opts.MaxAttempts, "sequence", cmd.sequence)
	metrics.IncAttempt("retried")
	metrics.SetAttemptsMade(attempts)
	s.setState(StateRetrying)
	s.launch(ctx, triggerRetry)
	return false
}

func (s *Supervisor) fail(errValue any, err error) {
	st := events.Failed(errValue, s.opts.LogPath)
	s.mu.Lock()
	s.lastStatus = &st
	s.lastErr = err
	s.mu.Unlock()
	s.setState(StateFailed)
	if !errors.Is(err, ErrMaxAttempts) {
		metrics.IncAttempt("failed")
	}
	s.emit(st)
}

// finish waits the settle delay and fades out. Closing the window meanwhile
// cuts it short; the start still counts as a success.
func (s *Supervisor) finish(ctx context.Context) {
	t := time.NewTimer(s.opts.SettleDelay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return
	case <-t.C:
	}
	if s.opts.Fade == nil {
		return
	}
	if err := s.opts.Fade(ctx); err != nil && ctx.Err() == nil {
		s.logger.Warn("fade out failed", "error", err)
	}
}

// setState updates state, records metrics and publishes the transition.
func (s *Supervisor) setState(next State) {
	s.mu.Lock()
	prev := s.state
	s.state = next
	ev := events.StateChangedEvent{
		From:         prev.String(),
		To:           next.String(),
		AttemptsMade: s.attempts,
		MaxAttempts:  s.opts.MaxAttempts,
		Sequence:     s.sequence,
	}
	s.mu.Unlock()

	metrics.RecordStateTransition(ev.From, ev.To)
	s.logger.Debug("state transition", "from", ev.From, "to", ev.To, "attempts_made", ev.AttemptsMade)
	s.emit(ev)
}

func (s *Supervisor) emit(ev events.Event) {
	if s.notify != nil {
		s.notify.Emit(ev)
	}
}
