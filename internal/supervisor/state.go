package supervisor

// State is a supervisor state.
//
// Idle -> Launching -> AwaitingExit -> Verifying -> Succeeded
//
//	AwaitingExit -> Failed            (non-zero exit, signal, spawn error)
//	Verifying    -> Retrying -> Launching
//	Verifying    -> Failed            (attempt budget exhausted)
//	Failed       -> Launching         (manual retry)
type State int32

const (
	StateIdle State = iota
	StateLaunching
	StateAwaitingExit
	StateVerifying
	StateSucceeded
	StateRetrying
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLaunching:
		return "launching"
	case StateAwaitingExit:
		return "awaiting_exit"
	case StateVerifying:
		return "verifying"
	case StateSucceeded:
		return "succeeded"
	case StateRetrying:
		return "retrying"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}
