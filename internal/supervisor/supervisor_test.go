package supervisor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/loykin/waitforme/internal/config"
	"github.com/loykin/waitforme/internal/env"
	"github.com/loykin/waitforme/internal/events"
	"github.com/loykin/waitforme/internal/launch"
	"github.com/loykin/waitforme/internal/liveness"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeHandle finishes with result once release is closed (immediately when nil).
type fakeHandle struct {
	pid     int
	result  launch.Result
	release chan struct{}
}

func (h *fakeHandle) PID() int { return h.pid }
func (h *fakeHandle) Wait() launch.Result {
	if h.release != nil {
		<-h.release
	}
	return h.result
}

type fakeSpawner struct {
	mu      sync.Mutex
	argvs   [][]string
	next    func(n int) (*fakeHandle, error)
	spawned chan int
}

func newFakeSpawner(next func(n int) (*fakeHandle, error)) *fakeSpawner {
	return &fakeSpawner{next: next, spawned: make(chan int, 64)}
}

func (f *fakeSpawner) Spawn(_ context.Context, _ string, argv []string) (launch.Handle, error) {
	f.mu.Lock()
	f.argvs = append(f.argvs, argv)
	n := len(f.argvs)
	f.mu.Unlock()
	f.spawned <- n
	h, err := f.next(n)
	if err != nil {
		return nil, err
	}
	return h, nil
}

func (f *fakeSpawner) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.argvs)
}

func (f *fakeSpawner) argv(i int) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.argvs[i]
}

type fakeVerifier struct {
	mu    sync.Mutex
	live  func(n int) bool
	calls int
	reqs  []liveness.Requirement
}

func (v *fakeVerifier) Check(_ context.Context, req liveness.Requirement) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.calls++
	v.reqs = append(v.reqs, req)
	return v.live(v.calls)
}

type staticConfig struct {
	mu    sync.Mutex
	cfgs  []config.AppConfig
	loads int
}

func (c *staticConfig) Load() config.AppConfig {
	c.mu.Lock()
	defer c.mu.Unlock()
	i := c.loads
	if i >= len(c.cfgs) {
		i = len(c.cfgs) - 1
	}
	c.loads++
	return c.cfgs[i]
}

type recorder struct {
	mu  sync.Mutex
	evs []events.Event
}

func (r *recorder) Emit(ev events.Event) {
	r.mu.Lock()
	r.evs = append(r.evs, ev)
	r.mu.Unlock()
}

func (r *recorder) statuses() []events.StatusEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []events.StatusEvent
	for _, ev := range r.evs {
		if st, ok := ev.(events.StatusEvent); ok {
			out = append(out, st)
		}
	}
	return out
}

func (r *recorder) states() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, ev := range r.evs {
		if st, ok := ev.(events.StateChangedEvent); ok {
			out = append(out, st.To)
		}
	}
	return out
}

func exited(code int) func(int) (*fakeHandle, error) {
	return func(n int) (*fakeHandle, error) {
		return &fakeHandle{pid: 100 + n, result: launch.Exited(code)}, nil
	}
}

func always(v bool) func(int) bool { return func(int) bool { return v } }

type harness struct {
	sup      *Supervisor
	spawner  *fakeSpawner
	verifier *fakeVerifier
	cfg      *staticConfig
	rec      *recorder
	fades    *int
}

func newHarness(t *testing.T, next func(int) (*fakeHandle, error), live func(int) bool, cfgs ...config.AppConfig) *harness {
	t.Helper()
	if len(cfgs) == 0 {
		cfgs = []config.AppConfig{config.Defaults()}
	}
	h := &harness{
		spawner:  newFakeSpawner(next),
		verifier: &fakeVerifier{live: live},
		cfg:      &staticConfig{cfgs: cfgs},
		rec:      &recorder{},
		fades:    new(int),
	}
	h.sup = New(Options{
		SettleDelay: time.Millisecond,
		LogPath:     "/tmp/waitforme.log",
		Fade: func(context.Context) error {
			*h.fades++
			return nil
		},
	}, h.cfg, h.spawner, h.verifier, h.rec)
	return h
}

// start runs the supervisor in the background; the returned func cancels it
// and returns Run's error.
func (h *harness) start(t *testing.T) (<-chan error, context.CancelFunc) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- h.sup.Run(ctx) }()
	t.Cleanup(cancel)
	return errc, cancel
}

func waitStatus(t *testing.T, r *recorder, n int) []events.StatusEvent {
	t.Helper()
	require.Eventually(t, func() bool { return len(r.statuses()) >= n }, 2*time.Second, time.Millisecond)
	return r.statuses()
}

// Scenario A: clean exit and live on first check.
func TestRun_SucceedsFirstTry(t *testing.T) {
	h := newHarness(t, exited(0), always(true))

	err := h.sup.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, h.spawner.count())
	assert.Equal(t, []string{"start", "--bar", "--whkd"}, h.spawner.argv(0))
	assert.Equal(t, 1, *h.fades)
	st := h.rec.statuses()
	require.Len(t, st, 1)
	assert.True(t, st[0].Status)
	assert.Nil(t, st[0].Error)

	snap := h.sup.Snapshot()
	assert.Equal(t, "succeeded", snap.State)
	assert.Equal(t, 0, snap.AttemptsMade)
	assert.Equal(t, []string{"launching", "awaiting_exit", "verifying", "succeeded"}, h.rec.states())

	require.Len(t, h.verifier.reqs, 1)
	assert.Equal(t, liveness.Requirement{Primary: "komorebi.exe", Companions: []string{"komorebi-bar.exe"}}, h.verifier.reqs[0])
}

// Scenario B: exits cleanly but is never live.
func TestRun_GivesUpAfterMaxAttempts(t *testing.T) {
	h := newHarness(t, exited(0), always(false))
	errc, cancel := h.start(t)

	st := waitStatus(t, h.rec, 1)
	require.Len(t, st, 1)
	assert.False(t, st[0].Status)
	assert.Equal(t, MaxAttemptsMessage, st[0].Error)
	require.NotNil(t, st[0].LogPath)
	assert.Equal(t, "/tmp/waitforme.log", *st[0].LogPath)

	// one initial spawn plus eight retries
	assert.Equal(t, DefaultMaxAttempts+1, h.spawner.count())
	snap := h.sup.Snapshot()
	assert.Equal(t, "failed", snap.State)
	assert.Equal(t, 0, snap.AttemptsMade)
	assert.Equal(t, MaxAttemptsMessage, snap.LastError)

	cancel()
	assert.ErrorIs(t, <-errc, context.Canceled)
	assert.Equal(t, 0, *h.fades)
}

func TestRun_SequenceTokenRotatesAfterExhaustion(t *testing.T) {
	h := newHarness(t, exited(0), always(false))
	before := h.sup.Snapshot().Sequence
	h.start(t)
	waitStatus(t, h.rec, 1)
	assert.NotEqual(t, before, h.sup.Snapshot().Sequence)
}

func TestRun_SucceedsAfterRetries(t *testing.T) {
	h := newHarness(t, exited(0), func(n int) bool { return n == 4 })
	require.NoError(t, h.sup.Run(context.Background()))
	assert.Equal(t, 4, h.spawner.count())
	assert.Equal(t, 3, h.sup.Snapshot().AttemptsMade)
	assert.Contains(t, h.rec.states(), "retrying")
}

// Scenario C: non-zero exit reports the code and leaves the counter alone.
func TestRun_NonZeroExit(t *testing.T) {
	h := newHarness(t, exited(1), always(true))
	h.start(t)

	st := waitStatus(t, h.rec, 1)
	assert.False(t, st[0].Status)
	assert.Equal(t, 1, st[0].Error)
	assert.Equal(t, 1, h.spawner.count())
	assert.Equal(t, 0, h.verifier.calls)
	snap := h.sup.Snapshot()
	assert.Equal(t, "failed", snap.State)
	assert.Equal(t, 0, snap.AttemptsMade)
}

func TestRun_NonZeroExitKeepsCounter(t *testing.T) {
	h := newHarness(t, func(n int) (*fakeHandle, error) {
		code := 0
		if n == 3 {
			code = 2
		}
		return &fakeHandle{result: launch.Exited(code)}, nil
	}, always(false))
	h.start(t)

	st := waitStatus(t, h.rec, 1)
	assert.Equal(t, 2, st[0].Error)
	assert.Equal(t, 2, h.sup.Snapshot().AttemptsMade)
}

func TestRun_SpawnError(t *testing.T) {
	boom := &launch.SpawnError{Binary: "komorebic", Err: errors.New("executable file not found")}
	h := newHarness(t, func(int) (*fakeHandle, error) { return nil, boom }, always(true))
	h.start(t)

	st := waitStatus(t, h.rec, 1)
	assert.False(t, st[0].Status)
	assert.Equal(t, boom.Error(), st[0].Error)
	assert.Equal(t, "failed", h.sup.Snapshot().State)
}

func TestRun_SignaledExitReportsMessage(t *testing.T) {
	h := newHarness(t, func(int) (*fakeHandle, error) {
		return &fakeHandle{result: launch.Result{Signaled: true, Signal: "killed"}}, nil
	}, always(true))
	h.start(t)

	st := waitStatus(t, h.rec, 1)
	assert.Equal(t, "process terminated by signal killed", st[0].Error)
}

// Manual retry after exhaustion starts a fresh sequence from zero.
func TestRetry_AfterExhaustion(t *testing.T) {
	h := newHarness(t, exited(0), func(n int) bool { return n > DefaultMaxAttempts+1 })
	errc, _ := h.start(t)
	waitStatus(t, h.rec, 1)

	require.NoError(t, h.sup.Retry())
	require.NoError(t, <-errc)
	assert.Equal(t, DefaultMaxAttempts+2, h.spawner.count())
	assert.Equal(t, 0, h.sup.Snapshot().AttemptsMade)
	assert.Equal(t, 1, *h.fades)
}

// Scenario D: a manual retry while an attempt is outstanding spawns anyway.
func TestRetry_WhileOutstanding(t *testing.T) {
	release := make(chan struct{})
	h := newHarness(t, func(n int) (*fakeHandle, error) {
		return &fakeHandle{pid: n, result: launch.Exited(0), release: release}, nil
	}, always(true))
	errc, _ := h.start(t)

	<-h.spawner.spawned
	require.NoError(t, h.sup.Retry())
	<-h.spawner.spawned
	require.Eventually(t, func() bool { return h.sup.Snapshot().Outstanding == 2 }, time.Second, time.Millisecond)

	close(release)
	require.NoError(t, <-errc)
	assert.Equal(t, 2, h.spawner.count())
}

func TestRun_ReadsConfigPerAttempt(t *testing.T) {
	noBar := config.Defaults()
	noBar.LaunchOptions.Bar = false
	noBar.CustomArgs = []string{"--ffm"}
	h := newHarness(t, exited(0), func(n int) bool { return n == 2 }, config.Defaults(), noBar)

	require.NoError(t, h.sup.Run(context.Background()))
	assert.Equal(t, []string{"start", "--bar", "--whkd"}, h.spawner.argv(0))
	assert.Equal(t, []string{"start", "--whkd", "--ffm"}, h.spawner.argv(1))
	assert.Empty(t, h.verifier.reqs[1].Companions)
	assert.Equal(t, 2, h.cfg.loads)
}

func TestRun_ExpandsEnvInLaunchArgs(t *testing.T) {
	cfg := config.Defaults()
	p := "${KHOME}/komorebi.json"
	cfg.LaunchOptions.ConfigFilePath = &p
	cfg.CustomArgs = []string{"--log=%KHOME%\\k.log"}

	e := env.New()
	e.Set("KHOME", "/k")
	sp := newFakeSpawner(exited(0))
	sup := New(Options{SettleDelay: time.Millisecond, Env: e},
		&staticConfig{cfgs: []config.AppConfig{cfg}}, sp, &fakeVerifier{live: always(true)}, &recorder{})

	require.NoError(t, sup.Run(context.Background()))
	assert.Equal(t, []string{"start", "--bar", "--whkd", "--config=/k/komorebi.json", "--log=/k\\k.log"}, sp.argv(0))
	assert.Equal(t, "${KHOME}/komorebi.json", *cfg.LaunchOptions.ConfigFilePath)
}

func TestRun_OnlyOnce(t *testing.T) {
	h := newHarness(t, exited(0), always(true))
	require.NoError(t, h.sup.Run(context.Background()))
	assert.ErrorIs(t, h.sup.Run(context.Background()), ErrAlreadyRunning)
	assert.ErrorIs(t, h.sup.Retry(), ErrStopped)
	select {
	case <-h.sup.Done():
	default:
		t.Fatal("Done not closed")
	}
}

func TestRun_CloseDuringSettleStillSucceeds(t *testing.T) {
	h := newHarness(t, exited(0), always(true))
	h.sup.opts.SettleDelay = time.Hour
	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- h.sup.Run(ctx) }()

	waitStatus(t, h.rec, 1)
	cancel()
	require.NoError(t, <-errc)
	assert.Equal(t, 0, *h.fades)
}

func TestNew_Defaults(t *testing.T) {
	s := New(Options{}, &staticConfig{cfgs: []config.AppConfig{config.Defaults()}}, nil, nil, nil)
	assert.Equal(t, launch.DefaultBinary, s.opts.Binary)
	assert.Equal(t, DefaultMaxAttempts, s.opts.MaxAttempts)
	assert.Equal(t, DefaultSettleDelay, s.opts.SettleDelay)
	snap := s.Snapshot()
	assert.Equal(t, "idle", snap.State)
	assert.NotEmpty(t, snap.Sequence)
	assert.Nil(t, snap.LastStatus)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "awaiting_exit", StateAwaitingExit.String())
	assert.Equal(t, "unknown", State(99).String())
}
