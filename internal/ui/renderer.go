package ui

import (
	"fmt"
	"io"
	"sync"

	"github.com/loykin/waitforme/internal/events"
)

// ConsoleRenderer draws the splash on a terminal: welcome line, animated
// loading message, and the success or failure panel.
type ConsoleRenderer struct {
	out io.Writer

	mu      sync.Mutex
	welcome string
	failed  bool
	done    bool
}

func NewConsoleRenderer(out io.Writer) *ConsoleRenderer {
	return &ConsoleRenderer{out: out}
}

// Attach subscribes the renderer to every event on bus.
func (r *ConsoleRenderer) Attach(bus *events.Bus) func() {
	return bus.SubscribeAll(r.Handle)
}

// Handle renders one event.
func (r *ConsoleRenderer) Handle(ev events.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch e := ev.(type) {
	case events.ConfigDataEvent:
		if e.Config.WelcomeMessage != "" && e.Config.WelcomeMessage != r.welcome {
			r.welcome = e.Config.WelcomeMessage
			_, _ = fmt.Fprintf(r.out, "\n%s\n", r.welcome)
		}
	case events.LoadingMessageEvent:
		if !r.failed && !r.done {
			_, _ = fmt.Fprintf(r.out, "\r%-20s", e.Message)
		}
	case events.StateChangedEvent:
		if e.To == "launching" {
			r.failed = false
		}
	case events.StatusEvent:
		if e.Status {
			r.done = true
			_, _ = fmt.Fprintln(r.out, "\nkomorebi is running")
			return
		}
		r.failed = true
		_, _ = fmt.Fprintf(r.out, "\nkomorebi failed to start: %v\n", e.Error)
		if e.LogPath != nil {
			_, _ = fmt.Fprintf(r.out, "logs: %s\n", *e.LogPath)
		}
		_, _ = fmt.Fprintln(r.out, "type retry, logs, minimize or close")
	}
}
