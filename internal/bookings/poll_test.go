package bookings

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clusterreport/internal/platform/clock"
	"clusterreport/internal/sentinel"
	dErrors "clusterreport/pkg/domain-errors"
)

// scriptedFetcher returns canned outcomes per attempt.
type scriptedFetcher struct {
	calls   int
	outcome func(attempt int) ([]Record, error)
}

func (f *scriptedFetcher) DetailedReport(_ context.Context, _, _, _ string) ([]Record, error) {
	f.calls++
	return f.outcome(f.calls)
}

var start = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func TestAwaitReadyOnFourthAttempt(t *testing.T) {
	fetcher := &scriptedFetcher{outcome: func(attempt int) ([]Record, error) {
		if attempt < 4 {
			return nil, fmt.Errorf("poll: %w", sentinel.ErrStillProcessing)
		}
		return []Record{{"id": 1}}, nil
	}}

	fake := clock.NewFake(start)
	poller := NewPoller(fetcher, WithClock(fake), WithInterval(5*time.Second), WithMaxAttempts(60))

	records, err := poller.Await(context.Background(), "t", "c", "42")
	require.NoError(t, err)
	assert.Len(t, records, 1)
	assert.Equal(t, 4, fetcher.calls, "resolves after 4 poll calls")

	require.Len(t, fake.Slept, 4)
	for _, d := range fake.Slept {
		assert.Equal(t, 5*time.Second, d, "polls are 5s apart")
	}
}

func TestAwaitTimesOutAtCeiling(t *testing.T) {
	fetcher := &scriptedFetcher{outcome: func(int) ([]Record, error) {
		return nil, fmt.Errorf("poll: %w", sentinel.ErrStillProcessing)
	}}

	fake := clock.NewFake(start)
	poller := NewPoller(fetcher, WithClock(fake), WithInterval(5*time.Second), WithMaxAttempts(60))

	_, err := poller.Await(context.Background(), "t", "c", "42")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeTimeout))
	assert.Equal(t, 60, fetcher.calls, "stops at the attempt ceiling")
	assert.Equal(t, start.Add(5*time.Minute), fake.Now(), "ceiling is a 5 minute wait")
}

func TestAwaitTerminalFailureStopsPolling(t *testing.T) {
	fetcher := &scriptedFetcher{outcome: func(attempt int) ([]Record, error) {
		if attempt == 1 {
			return nil, fmt.Errorf("poll: %w", sentinel.ErrStillProcessing)
		}
		return nil, dErrors.New(dErrors.CodeAPI, "report engine down")
	}}

	poller := NewPoller(fetcher, WithClock(clock.NewFake(start)), WithMaxAttempts(60))

	_, err := poller.Await(context.Background(), "t", "c", "42")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeAPI))
	assert.Equal(t, 2, fetcher.calls)
}

func TestAwaitCancelledContext(t *testing.T) {
	fake := clock.NewFake(start)
	fake.SleepErr = context.Canceled

	poller := NewPoller(&scriptedFetcher{outcome: func(int) ([]Record, error) {
		t.Fatal("fetch must not run after cancellation")
		return nil, nil
	}}, WithClock(fake), WithMaxAttempts(60))

	_, err := poller.Await(context.Background(), "t", "c", "42")
	assert.Error(t, err)
}
