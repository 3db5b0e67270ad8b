package ui

import (
	"context"
	"strings"
	"time"

	"github.com/loykin/waitforme/internal/events"
)

const (
	DefaultLoadingInterval = 400 * time.Millisecond
	LoadingPrefix          = "I'm starting up "
)

// LoadingTicker publishes the animated "starting up" message.
type LoadingTicker struct {
	Interval time.Duration
	Notify   Notifier
}

// Run emits a message every interval until ctx is done. Dots go 2, 3, 1, 2, 3...
func (t *LoadingTicker) Run(ctx context.Context) error {
	interval := t.Interval
	if interval <= 0 {
		interval = DefaultLoadingInterval
	}
	tk := time.NewTicker(interval)
	defer tk.Stop()

	dots := 1
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-tk.C:
			dots = nextDots(dots)
			t.Notify.Emit(events.LoadingMessageEvent{Message: LoadingMessage(dots)})
		}
	}
}

// LoadingMessage renders the prefix with n trailing dots.
func LoadingMessage(n int) string {
	return LoadingPrefix + strings.Repeat(".", n)
}

func nextDots(d int) int {
	if d > 2 {
		d = 0
	}
	return d + 1
}
