package ui

import (
	"context"
	"time"
)

// Fade defaults: half a second in 60 steps.
const (
	DefaultFadeDuration = 500 * time.Millisecond
	DefaultFadeSteps    = 60
)

// Fade lowers w's opacity from 1 to 0 in steps equal decrements spread over d.
// Opacity strictly decreases and the last value is exactly 0.
func Fade(ctx context.Context, w Window, d time.Duration, steps int) error {
	if steps <= 0 {
		steps = DefaultFadeSteps
	}
	var tick <-chan time.Time
	if interval := d / time.Duration(steps); interval > 0 {
		t := time.NewTicker(interval)
		defer t.Stop()
		tick = t.C
	}
	for i := 1; i <= steps; i++ {
		if tick != nil {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-tick:
			}
		} else if err := ctx.Err(); err != nil {
			return err
		}
		if err := w.SetOpacity(1 - float64(i)/float64(steps)); err != nil {
			return err
		}
	}
	return nil
}
