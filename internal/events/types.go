package events

import "github.com/loykin/waitforme/internal/config"

// Event type constants for kelindar/event.
const (
	TypeConfigData uint32 = iota + 1
	TypeLoadingMessage
	TypeStatus
	TypeStateChanged
	TypeWindow
)

// Channel names used on the UI event stream.
const (
	NameConfigData     = "configData"
	NameLoadingMessage = "loadingMessage"
	NameStatus         = "komorebiStatus"
	NameStateChanged   = "state"
	NameWindow         = "window"
)

// Event interface required by kelindar/event. Name is the channel the UI
// listens on.
type Event interface {
	Type() uint32
	Name() string
}

// ConfigDataEvent carries the config snapshot the next attempt will use.
type ConfigDataEvent struct {
	Config config.AppConfig `json:"config"`
}

func (e ConfigDataEvent) Type() uint32 { return TypeConfigData }
func (e ConfigDataEvent) Name() string { return NameConfigData }

// LoadingMessageEvent is one frame of the animated "starting up" text.
type LoadingMessageEvent struct {
	Message string `json:"message"`
}

func (e LoadingMessageEvent) Type() uint32 { return TypeLoadingMessage }
func (e LoadingMessageEvent) Name() string { return NameLoadingMessage }

// StatusEvent is the terminal outcome of a launch. Error is nil on success,
// an int exit code for a non-zero exit, or a message string otherwise.
type StatusEvent struct {
	Status  bool    `json:"status"`
	Error   any     `json:"error"`
	LogPath *string `json:"logPath"`
}

func (e StatusEvent) Type() uint32 { return TypeStatus }
func (e StatusEvent) Name() string { return NameStatus }

// Succeeded builds the success status.
func Succeeded() StatusEvent { return StatusEvent{Status: true} }

// Failed builds a failure status pointing at the log file.
func Failed(errValue any, logPath string) StatusEvent {
	ev := StatusEvent{Error: errValue}
	if logPath != "" {
		ev.LogPath = &logPath
	}
	return ev
}

// StateChangedEvent reports a supervisor transition.
type StateChangedEvent struct {
	From         string `json:"from"`
	To           string `json:"to"`
	AttemptsMade int    `json:"attempts_made"`
	MaxAttempts  int    `json:"max_attempts"`
	Sequence     string `json:"sequence"`
}

func (e StateChangedEvent) Type() uint32 { return TypeStateChanged }
func (e StateChangedEvent) Name() string { return NameStateChanged }

// Window actions.
const (
	WindowOpacity  = "opacity"
	WindowMinimize = "minimize"
	WindowClose    = "close"
)

// WindowEvent mirrors a command applied to the splash window.
type WindowEvent struct {
	Action  string  `json:"action"`
	Opacity float64 `json:"opacity,omitempty"`
}

func (e WindowEvent) Type() uint32 { return TypeWindow }
func (e WindowEvent) Name() string { return NameWindow }
