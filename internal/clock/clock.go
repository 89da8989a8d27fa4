// Package clock holds the sleeping primitive shared by the client and the
// polling loop.
package clock

import (
	"context"
	"sync"
	"time"
)

type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// Real sleeps on a timer and returns ctx.Err() if ctx ends first.
type Real struct{}

func (Real) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Fake records every requested duration and returns at once.
type Fake struct {
	mu    sync.Mutex
	calls []time.Duration
	// Hook, when set, runs after each recorded sleep; its error is returned.
	Hook func(d time.Duration) error
}

func (f *Fake) Sleep(ctx context.Context, d time.Duration) error {
	f.mu.Lock()
	f.calls = append(f.calls, d)
	hook := f.Hook
	f.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	if hook != nil {
		return hook(d)
	}
	return nil
}

func (f *Fake) Calls() []time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]time.Duration(nil), f.calls...)
}
