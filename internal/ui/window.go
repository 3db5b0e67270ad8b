package ui

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/loykin/waitforme/internal/events"
)

// ErrWindowClosed is returned by window operations after Close.
var ErrWindowClosed = errors.New("window closed")

// Window is the splash surface the launcher drives.
type Window interface {
	SetOpacity(v float64) error
	Minimize() error
	Close() error
}

// Notifier receives UI events. *events.Bus satisfies it.
type Notifier interface {
	Emit(events.Event)
}

// ConsoleWindow is a headless Window: it tracks state, mirrors every change
// onto the event stream and prints minimize/close notices to out.
type ConsoleWindow struct {
	out     io.Writer
	notify  Notifier
	onClose func()

	mu        sync.Mutex
	opacity   float64
	minimized bool
	closed    bool
}

// NewConsoleWindow creates a visible window at full opacity. onClose runs
// once, on the first Close.
func NewConsoleWindow(out io.Writer, notify Notifier, onClose func()) *ConsoleWindow {
	if out == nil {
		out = io.Discard
	}
	return &ConsoleWindow{out: out, notify: notify, onClose: onClose, opacity: 1}
}

func (w *ConsoleWindow) SetOpacity(v float64) error {
	if v < 0 {
		v = 0
	} else if v > 1 {
		v = 1
	}
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return ErrWindowClosed
	}
	w.opacity = v
	w.mu.Unlock()
	w.emit(events.WindowEvent{Action: events.WindowOpacity, Opacity: v})
	return nil
}

func (w *ConsoleWindow) Minimize() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return ErrWindowClosed
	}
	w.minimized = true
	w.mu.Unlock()
	w.emit(events.WindowEvent{Action: events.WindowMinimize})
	_, err := fmt.Fprintln(w.out, "\n(minimized; the launcher keeps running)")
	return err
}

// Close is idempotent.
func (w *ConsoleWindow) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	w.mu.Unlock()
	w.emit(events.WindowEvent{Action: events.WindowClose})
	if w.onClose != nil {
		w.onClose()
	}
	return nil
}

func (w *ConsoleWindow) Opacity() float64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.opacity
}

func (w *ConsoleWindow) Minimized() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.minimized
}

func (w *ConsoleWindow) Closed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closed
}

func (w *ConsoleWindow) emit(ev events.Event) {
	if w.notify != nil {
		w.notify.Emit(ev)
	}
}
