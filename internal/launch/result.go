package launch

import (
	"errors"
	"fmt"
	"os/exec"
)

// Result describes how one spawned attempt ended.
type Result struct {
	ExitCode *int   // nil when the process did not exit normally
	Signaled bool   // terminated by a signal
	Signal   string // signal name when Signaled
	WaitErr  error  // error from waiting that is not an exit status
}

// Success reports a clean exit with code 0.
func (r Result) Success() bool {
	return r.ExitCode != nil && *r.ExitCode == 0 && !r.Signaled && r.WaitErr == nil
}

// Failure returns nil on success, otherwise the error describing the failure.
func (r Result) Failure() error {
	switch {
	case r.Success():
		return nil
	case r.Signaled:
		return &NonZeroExitError{Code: -1, Signal: r.Signal}
	case r.ExitCode != nil && *r.ExitCode != 0:
		return &NonZeroExitError{Code: *r.ExitCode}
	case r.WaitErr != nil:
		return r.WaitErr
	default:
		return errors.New("process exit status unknown")
	}
}

// Exited builds a Result for a normal exit.
func Exited(code int) Result { return Result{ExitCode: &code} }

// NonZeroExitError is a subprocess that reported failure.
type NonZeroExitError struct {
	Code   int
	Signal string
}

func (e *NonZeroExitError) Error() string {
	if e.Signal != "" {
		return fmt.Sprintf("process terminated by signal %s", e.Signal)
	}
	return fmt.Sprintf("process exited with code %d", e.Code)
}

// SpawnError is a subprocess that could not be created.
type SpawnError struct {
	Binary string
	Err    error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("spawn %s: %v", e.Binary, e.Err)
}

func (e *SpawnError) Unwrap() error { return e.Err }

// resultFromWait converts the error returned by cmd.Wait into a Result.
func resultFromWait(err error) Result {
	if err == nil {
		return Exited(0)
	}
	var ee *exec.ExitError
	if errors.As(err, &ee) {
		if sig, ok := signalOf(ee); ok {
			return Result{Signaled: true, Signal: sig}
		}
		return Exited(ee.ExitCode())
	}
	// WaitDelay expiry after a clean exit still reports the exit code.
	if errors.Is(err, exec.ErrWaitDelay) {
		return Exited(0)
	}
	return Result{WaitErr: err}
}
