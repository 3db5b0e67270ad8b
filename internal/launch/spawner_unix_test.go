//go:build !windows

package launch

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type syncBuffer struct {
	mu sync.Mutex
	b  bytes.Buffer
}

func (s *syncBuffer) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.Write(p)
}

func (s *syncBuffer) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.String()
}

func TestExecSpawner_LogsOutputAndExitCode(t *testing.T) {
	var buf syncBuffer
	sp := &ExecSpawner{Logger: slog.New(slog.NewTextHandler(&buf, nil))}

	h, err := sp.Spawn(context.Background(), "/bin/sh", []string{"-c", "echo hello; echo oops >&2; exit 4"})
	require.NoError(t, err)
	assert.Greater(t, h.PID(), 0)

	res := h.Wait()
	require.NotNil(t, res.ExitCode)
	assert.Equal(t, 4, *res.ExitCode)
	assert.Equal(t, res, h.Wait())
	assert.Contains(t, buf.String(), "msg=hello")
	assert.Contains(t, buf.String(), "msg=oops")
}

func TestExecSpawner_Success(t *testing.T) {
	sp := &ExecSpawner{Env: []string{"WAITFORME_TEST=1"}}
	h, err := sp.Spawn(context.Background(), "/bin/sh", []string{"-c", `test "$WAITFORME_TEST" = 1`})
	require.NoError(t, err)
	assert.True(t, h.Wait().Success())
}

func TestExecSpawner_MissingBinary(t *testing.T) {
	sp := &ExecSpawner{}
	_, err := sp.Spawn(context.Background(), "/definitely/not/komorebic", nil)
	var se *SpawnError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "/definitely/not/komorebic", se.Binary)
}

func TestExecSpawner_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := (&ExecSpawner{}).Spawn(ctx, "/bin/true", nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestExecSpawner_Signaled(t *testing.T) {
	h, err := (&ExecSpawner{}).Spawn(context.Background(), "/bin/sh", []string{"-c", "kill -9 $$"})
	require.NoError(t, err)
	res := h.Wait()
	assert.True(t, res.Signaled)
	assert.False(t, res.Success())
}

func TestExecSpawner_DetachedChildDoesNotBlockWait(t *testing.T) {
	sp := &ExecSpawner{WaitDelay: 200 * time.Millisecond}
	h, err := sp.Spawn(context.Background(), "/bin/sh", []string{"-c", "sleep 5 & exit 0"})
	require.NoError(t, err)

	done := make(chan Result, 1)
	go func() { done <- h.Wait() }()
	select {
	case res := <-done:
		assert.True(t, res.Success())
	case <-time.After(3 * time.Second):
		t.Fatal("Wait blocked on inherited pipe")
	}
}

func TestExecSpawner_OversizedLineKeepsDraining(t *testing.T) {
	sp := &ExecSpawner{WaitDelay: 30 * time.Second}
	script := `head -c 2097152 /dev/zero | tr '\0' a; echo; echo after; exit 3`
	h, err := sp.Spawn(context.Background(), "/bin/sh", []string{"-c", script})
	require.NoError(t, err)

	done := make(chan Result, 1)
	go func() { done <- h.Wait() }()
	select {
	case res := <-done:
		require.NotNil(t, res.ExitCode)
		assert.Equal(t, 3, *res.ExitCode)
	case <-time.After(5 * time.Second):
		t.Fatal("output pipe stopped being drained")
	}
}
