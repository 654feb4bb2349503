package bookings

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"clusterreport/internal/platform/clock"
	"clusterreport/internal/platform/config"
	"clusterreport/internal/sentinel"
	dErrors "clusterreport/pkg/domain-errors"
)

// jobState tracks a report job through its lifecycle. The transitions are
// submitted -> polling -> ready | failed | timed_out.
type jobState int

const (
	jobSubmitted jobState = iota
	jobPolling
	jobReady
	jobFailed
	jobTimedOut
)

func (s jobState) String() string {
	switch s {
	case jobSubmitted:
		return "submitted"
	case jobPolling:
		return "polling"
	case jobReady:
		return "ready"
	case jobFailed:
		return "failed"
	case jobTimedOut:
		return "timed_out"
	default:
		return "unknown"
	}
}

// reportFetcher is the slice of Client the poller needs.
type reportFetcher interface {
	DetailedReport(ctx context.Context, token, login, jobID string) ([]Record, error)
}

// Poller drives a submitted report job to completion on a fixed interval
// with a bounded attempt count. The clock is injected so tests run without
// real timers.
type Poller struct {
	fetcher     reportFetcher
	clock       clock.Clock
	interval    time.Duration
	maxAttempts int
	logger      *slog.Logger
}

// PollerOption configures the Poller.
type PollerOption func(*Poller)

// WithClock injects a clock, for deterministic tests.
func WithClock(c clock.Clock) PollerOption {
	return func(p *Poller) {
		p.clock = c
	}
}

// WithInterval overrides the poll interval (default 5s).
func WithInterval(d time.Duration) PollerOption {
	return func(p *Poller) {
		p.interval = d
	}
}

// WithMaxAttempts overrides the attempt ceiling (default 60).
func WithMaxAttempts(n int) PollerOption {
	return func(p *Poller) {
		p.maxAttempts = n
	}
}

// WithPollerLogger attaches a logger.
func WithPollerLogger(logger *slog.Logger) PollerOption {
	return func(p *Poller) {
		p.logger = logger
	}
}

// NewPoller creates a poller over the given fetcher.
func NewPoller(fetcher reportFetcher, opts ...PollerOption) *Poller {
	p := &Poller{
		fetcher:     fetcher,
		clock:       clock.Real{},
		interval:    config.PollInterval,
		maxAttempts: config.PollAttempts,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Await polls the job until it is ready, fails, or exceeds the attempt
// ceiling. The job was just submitted, so each attempt waits one interval
// before fetching.
func (p *Poller) Await(ctx context.Context, token, login, jobID string) ([]Record, error) {
	state := jobSubmitted

	for attempt := 1; attempt <= p.maxAttempts; attempt++ {
		if err := p.clock.Sleep(ctx, p.interval); err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeAPI, "report poll interrupted")
		}
		state = jobPolling

		records, err := p.fetcher.DetailedReport(ctx, token, login, jobID)
		switch {
		case err == nil:
			state = jobReady
			p.log(ctx, login, jobID, state, attempt)
			return records, nil
		case errors.Is(err, sentinel.ErrStillProcessing):
			// Stay in polling and try again.
		default:
			state = jobFailed
			p.log(ctx, login, jobID, state, attempt)
			return nil, err
		}
	}

	state = jobTimedOut
	p.log(ctx, login, jobID, state, p.maxAttempts)
	return nil, dErrors.New(dErrors.CodeTimeout,
		fmt.Sprintf("report job not ready after %d attempts", p.maxAttempts))
}

func (p *Poller) log(ctx context.Context, login, jobID string, state jobState, attempt int) {
	if p.logger == nil {
		return
	}
	p.logger.DebugContext(ctx, "report job settled",
		"company", login,
		"job_id", jobID,
		"state", state.String(),
		"attempts", attempt,
	)
}
