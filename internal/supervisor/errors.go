package supervisor

import "errors"

// MaxAttemptsMessage is the error text shown when the attempt budget runs out.
const MaxAttemptsMessage = "Max startup attempts reached"

var (
	// ErrMaxAttempts means every attempt exited cleanly but komorebi never
	// showed up in the process table.
	ErrMaxAttempts = errors.New(MaxAttemptsMessage)
	// ErrAlreadyRunning is returned by a second call to Run.
	ErrAlreadyRunning = errors.New("supervisor already running")
	// ErrStopped is returned for commands sent after Run returned.
	ErrStopped = errors.New("supervisor stopped")
)
