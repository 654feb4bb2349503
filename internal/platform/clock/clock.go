package clock

import (
	"context"
	"time"
)

// Clock abstracts wall time and sleeping so poll loops can be tested without
// real timers.
type Clock interface {
	Now() time.Time
	// Sleep blocks for d or until ctx is done, returning ctx.Err() in the
	// latter case.
	Sleep(ctx context.Context, d time.Duration) error
}

// Real is the production Clock backed by the time package.
type Real struct{}

func (Real) Now() time.Time { return time.Now() }

func (Real) Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Fake advances manually and records every sleep. Not safe for concurrent
// use by multiple sleepers; the poll loop is sequential.
type Fake struct {
	Current time.Time
	Slept   []time.Duration
	// SleepErr, when set, is returned by the next Sleep call to simulate
	// context cancellation mid-poll.
	SleepErr error
}

func NewFake(start time.Time) *Fake {
	return &Fake{Current: start}
}

func (f *Fake) Now() time.Time { return f.Current }

func (f *Fake) Sleep(_ context.Context, d time.Duration) error {
	if f.SleepErr != nil {
		return f.SleepErr
	}
	f.Slept = append(f.Slept, d)
	f.Current = f.Current.Add(d)
	return nil
}
