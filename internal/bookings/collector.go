package bookings

import (
	"context"
	"log/slog"

	dErrors "clusterreport/pkg/domain-errors"
	"clusterreport/pkg/platform/circuit"
)

// Result is one company's collected bookings. TotalCount is the server's
// items_count when available, otherwise the number of records collected.
type Result struct {
	Bookings   []Record
	TotalCount int
}

// Collector retrieves one company's bookings. Direct pagination is attempted
// first; if the listing fails at the API level the collector falls back to
// submitting an asynchronous report job and polling it. Validation failures
// never reach the network.
//
// An optional circuit breaker tracks direct-listing health across companies:
// once it opens, subsequent companies in the fan-out go straight to the
// report job instead of re-probing a listing endpoint that is down. Job
// successes count toward closing the circuit so the direct path is retried
// once the API recovers.
type Collector struct {
	client  *Client
	poller  *Poller
	breaker *circuit.Breaker
	logger  *slog.Logger
}

// CollectorOption configures the Collector.
type CollectorOption func(*Collector)

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) CollectorOption {
	return func(c *Collector) {
		c.logger = logger
	}
}

// WithPoller overrides the report job poller.
func WithPoller(p *Poller) CollectorOption {
	return func(c *Collector) {
		c.poller = p
	}
}

// WithBreaker enables circuit breaking on the direct listing path.
func WithBreaker(b *circuit.Breaker) CollectorOption {
	return func(c *Collector) {
		c.breaker = b
	}
}

// NewCollector builds a collector over the given user API client.
func NewCollector(client *Client, opts ...CollectorOption) *Collector {
	c := &Collector{
		client: client,
		poller: NewPoller(client),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Collect fetches one company's bookings for the filter.
func (c *Collector) Collect(ctx context.Context, token, login string, f Filter) (Result, error) {
	if err := f.Validate(); err != nil {
		return Result{}, err
	}

	if c.breaker == nil || !c.breaker.IsOpen() {
		records, total, err := c.client.ListBookings(ctx, token, login, f)
		if err == nil {
			if c.breaker != nil {
				c.breaker.RecordSuccess()
			}
			return Result{Bookings: records, TotalCount: total}, nil
		}
		if !dErrors.HasCode(err, dErrors.CodeAPI) {
			return Result{}, err
		}
		if c.breaker != nil {
			if _, change := c.breaker.RecordFailure(); change.Opened && c.logger != nil {
				c.logger.WarnContext(ctx, "direct listing circuit opened, routing companies to report jobs",
					"breaker", c.breaker.Name(),
				)
			}
		}
		if c.logger != nil {
			c.logger.DebugContext(ctx, "direct listing failed, falling back to report job",
				"company", login,
				"error", err,
			)
		}
	}

	jobID, jobErr := c.client.CreateDetailedReport(ctx, token, login, f)
	if jobErr != nil {
		return Result{}, jobErr
	}
	records, jobErr := c.poller.Await(ctx, token, login, jobID)
	if jobErr != nil {
		return Result{}, jobErr
	}
	if c.breaker != nil {
		if _, change := c.breaker.RecordSuccess(); change.Closed && c.logger != nil {
			c.logger.InfoContext(ctx, "direct listing circuit closed", "breaker", c.breaker.Name())
		}
	}
	return Result{Bookings: records, TotalCount: len(records)}, nil
}
