package progress

import (
	"context"
	"time"
)

// Clock schedules debounce callbacks. AfterFunc returns a stop function that
// reports whether the callback was still pending.
type Clock interface {
	AfterFunc(d time.Duration, fn func()) (stop func() bool)
}

type realClock struct{}

func (realClock) AfterFunc(d time.Duration, fn func()) func() bool {
	return time.AfterFunc(d, fn).Stop
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
