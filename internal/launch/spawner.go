package launch

import (
	"bufio"
	"context"
	"errors"
	"io"
	"log/slog"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/loykin/waitforme/internal/env"
)

// Handle is a running attempt.
type Handle interface {
	PID() int
	// Wait blocks until the process ends. It is safe to call more than once.
	Wait() Result
}

// Spawner creates attempt subprocesses.
type Spawner interface {
	Spawn(ctx context.Context, bin string, argv []string) (Handle, error)
}

// ExecSpawner runs attempts with os/exec and logs their output line by line.
type ExecSpawner struct {
	Logger *slog.Logger
	Env    []string // extra KEY=VALUE entries over the parent env; ${VAR} is expanded
	Dir    string
	// WaitDelay bounds how long Wait keeps reading output after the process
	// exits; komorebic leaves long-lived children holding the pipes.
	WaitDelay time.Duration
}

const defaultWaitDelay = 2 * time.Second

// Spawn starts bin with argv. ctx only bounds the start itself: once running,
// the attempt is not killed when the caller goes away.
func (s *ExecSpawner) Spawn(ctx context.Context, bin string, argv []string) (Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, &SpawnError{Binary: bin, Err: err}
	}
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}

	cmd := exec.Command(bin, argv...)
	cmd.Dir = s.Dir
	if len(s.Env) > 0 {
		cmd.Env = env.New().Merge(s.Env)
	}
	configureSysProcAttr(cmd)
	cmd.WaitDelay = s.WaitDelay
	if cmd.WaitDelay <= 0 {
		cmd.WaitDelay = defaultWaitDelay
	}

	// io.Pipe rather than StdoutPipe so Wait owns the copy and WaitDelay can
	// cut it short.
	outR, outW := io.Pipe()
	errR, errW := io.Pipe()
	cmd.Stdout = outW
	cmd.Stderr = errW
	if err := cmd.Start(); err != nil {
		_ = outW.Close()
		_ = errW.Close()
		return nil, &SpawnError{Binary: bin, Err: err}
	}

	a := &Attempt{cmd: cmd, done: make(chan struct{})}
	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); pipeLines(outR, logger, slog.LevelInfo) }()
	go func() { defer wg.Done(); pipeLines(errR, logger, slog.LevelInfo) }()
	go func() {
		res := resultFromWait(cmd.Wait())
		_ = outW.Close()
		_ = errW.Close()
		wg.Wait()
		a.result = res
		close(a.done)
	}()
	return a, nil
}

// Attempt is a subprocess started by ExecSpawner.
type Attempt struct {
	cmd    *exec.Cmd
	done   chan struct{}
	result Result
}

func (a *Attempt) PID() int {
	if a.cmd.Process == nil {
		return 0
	}
	return a.cmd.Process.Pid
}

func (a *Attempt) Wait() Result {
	<-a.done
	return a.result
}

func pipeLines(r io.Reader, logger *slog.Logger, level slog.Level) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r")
		if line == "" {
			continue
		}
		logger.Log(context.Background(), level, line)
	}
	if err := sc.Err(); err != nil && !errors.Is(err, io.ErrClosedPipe) {
		logger.Debug("subprocess output closed", "error", err)
	}
	// The writer side blocks until someone reads, so keep draining after the
	// scanner gives up on an oversized line.
	_, _ = io.Copy(io.Discard, r)
}
