package crossaccount

import (
	"context"
	"time"
)

// TimerWaiter is the default Waiter: a timer-based wait that returns early
// when the context is cancelled.
type TimerWaiter struct{}

// NewTimerWaiter creates a TimerWaiter.
func NewTimerWaiter() TimerWaiter {
	return TimerWaiter{}
}

// Wait implements Waiter.
func (TimerWaiter) Wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
