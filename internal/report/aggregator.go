package report

import (
	"fmt"
	"math"
	"sync"
	"time"

	"clusterreport/internal/bookings"
)

// aggregator owns all mutation of a live run. Fan-out goroutines report
// their outcomes here; the mutex makes each company's completion a distinct
// event, so counters stay monotone and callbacks observe consistent state.
type aggregator struct {
	mu        sync.Mutex
	run       *Run
	total     int
	completed int
	cb        Callbacks
	persist   func(snapshot *Run)
}

func newAggregator(run *Run, cb Callbacks, persist func(*Run)) *aggregator {
	return &aggregator{
		run:     run,
		total:   len(run.Requested),
		cb:      cb,
		persist: persist,
	}
}

// tokenAcquired reports a successful token exchange. The company is not
// settled yet; it proceeds to the bookings stage.
func (a *aggregator) tokenAcquired(login string) {
	a.cb.status(login, StatusTokenOK, "Token obtained")
}

// tokenFailed settles a company at the token stage: it is recorded as a
// token-stage error and never attempted at the bookings stage.
func (a *aggregator) tokenFailed(login string, cause error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.run.Results = append(a.run.Results, CompanyResult{
		Login:         login,
		Failed:        true,
		FailureReason: cause.Error(),
	})
	a.run.Errors = append(a.run.Errors, RunError{
		Company: login,
		Stage:   StageToken,
		Reason:  cause.Error(),
	})
	a.settleLocked(fmt.Sprintf("Token failed for %s: %v", login, cause))

	a.cb.status(login, StatusTokenFailed, "Token failed: "+cause.Error())
}

// bookingsCollected settles a company with its collected bookings.
func (a *aggregator) bookingsCollected(login string, result bookings.Result) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.run.Results = append(a.run.Results, CompanyResult{
		Login:      login,
		Bookings:   result.Bookings,
		TotalCount: result.TotalCount,
	})
	a.run.TotalBookings += len(result.Bookings)
	a.settleLocked(fmt.Sprintf("Collected bookings from %d/%d companies", a.completed, a.total))

	a.cb.status(login, StatusBookingsOK, fmt.Sprintf("Found %d bookings", len(result.Bookings)))
}

// bookingsFailed settles a company at the bookings stage.
func (a *aggregator) bookingsFailed(login string, cause error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.run.Results = append(a.run.Results, CompanyResult{
		Login:         login,
		Failed:        true,
		FailureReason: cause.Error(),
	})
	a.run.Errors = append(a.run.Errors, RunError{
		Company: login,
		Stage:   StageBookings,
		Reason:  cause.Error(),
	})
	a.settleLocked(fmt.Sprintf("Error collecting from %s: %v", login, cause))

	a.cb.status(login, StatusBookingsFailed, "Bookings failed: "+cause.Error())
}

// settleLocked increments the completed count, recomputes the progress
// percentage, and persists a snapshot. Callers hold the mutex.
func (a *aggregator) settleLocked(message string) {
	a.completed++
	a.run.Percent = int(math.Round(float64(a.completed) / float64(a.total) * 100))
	a.run.Message = message
	a.persist(a.run)
	a.cb.progress(a.run.Percent, message)
}

// finalize seals the run once every company has settled and returns the
// immutable final state.
func (a *aggregator) finalize(now time.Time) *Run {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.run.State = RunStateCompleted
	a.run.Percent = 100
	a.run.Message = "Report generation complete"
	a.run.CompletedAt = now
	a.cb.progress(100, a.run.Message)

	final := copyRun(a.run)
	return &final
}
