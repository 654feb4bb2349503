package report

import (
	"time"

	"clusterreport/internal/bookings"
	pstrings "clusterreport/pkg/platform/strings"
	str "clusterreport/pkg/string"
	"clusterreport/pkg/validation"
)

// Stage identifies which fan-out a per-company failure occurred in.
type Stage string

const (
	StageToken    Stage = "token"
	StageBookings Stage = "bookings"
)

// RunState tracks a report run through its lifecycle.
type RunState string

const (
	RunStateRunning   RunState = "running"
	RunStateCompleted RunState = "completed"
	RunStateFailed    RunState = "failed"
)

// RunError records one company's failure, tagged with the stage it
// occurred at.
type RunError struct {
	Company string `json:"company"`
	Stage   Stage  `json:"stage"`
	Reason  string `json:"reason"`
}

// CompanyResult is one company's outcome within a run: either collected
// bookings or a recorded failure. Every requested company ends up with
// exactly one result.
type CompanyResult struct {
	Login         string            `json:"login"`
	Bookings      []bookings.Record `json:"bookings,omitempty"`
	TotalCount    int               `json:"total_count"`
	Failed        bool              `json:"failed,omitempty"`
	FailureReason string            `json:"failure_reason,omitempty"`
}

// Run is the aggregate report state. It is mutated incrementally as each
// company's fan-out operation settles and finalized once every operation
// has settled; the run store only ever holds copies, so readers never see
// a partially written state.
type Run struct {
	ID            string          `json:"id"`
	Cluster       string          `json:"cluster"`
	Domain        string          `json:"domain"`
	Requested     []string        `json:"requested"`
	State         RunState        `json:"state"`
	Percent       int             `json:"percent"`
	Message       string          `json:"message"`
	Results       []CompanyResult `json:"results"`
	TotalBookings int             `json:"total_bookings"`
	Errors        []RunError      `json:"errors"`
	StartedAt     time.Time       `json:"started_at"`
	CompletedAt   time.Time       `json:"completed_at,omitzero"`
}

// Successful counts companies that produced bookings without failing.
func (r *Run) Successful() int {
	n := 0
	for _, result := range r.Results {
		if !result.Failed {
			n++
		}
	}
	return n
}

// Result returns the recorded outcome for a company, if it settled yet.
func (r *Run) Result(login string) (CompanyResult, bool) {
	for _, result := range r.Results {
		if result.Login == login {
			return result, true
		}
	}
	return CompanyResult{}, false
}

// Exportable reports whether a CSV artifact can be produced: any bookings
// at all, even when some companies failed.
func (r *Run) Exportable() bool {
	return r.State == RunStateCompleted && r.TotalBookings > 0
}

// Params describes one report run request.
type Params struct {
	APIKey    string          `json:"api_key"`
	Cluster   string          `json:"cluster" validate:"required"`
	Domain    string          `json:"domain" validate:"required"`
	Companies []string        `json:"companies" validate:"min=1,dive,notblank"`
	Filter    bookings.Filter `json:"filter"`
}

// Normalize trims identifiers and deduplicates the company selection so a
// repeated login never produces two fan-out operations.
func (p *Params) Normalize() {
	str.TrimStrings(&p.APIKey, &p.Cluster, &p.Domain)
	p.Companies = pstrings.DedupeAndTrimLower(p.Companies)
}

// Validate rejects a run before any network call is made.
func (p Params) Validate() error {
	if err := validation.Validate(p); err != nil {
		return err
	}
	return p.Filter.Validate()
}

// StatusOutcome labels the per-company status callbacks.
type StatusOutcome string

const (
	StatusTokenOK        StatusOutcome = "token-success"
	StatusTokenFailed    StatusOutcome = "token-error"
	StatusBookingsOK     StatusOutcome = "bookings-success"
	StatusBookingsFailed StatusOutcome = "bookings-error"
)

// ProgressFunc receives overall progress updates.
type ProgressFunc func(percent int, message string)

// StatusFunc receives per-company stage outcomes.
type StatusFunc func(login string, outcome StatusOutcome, message string)

// Callbacks carries the optional observer hooks for a run. Either field may
// be nil.
type Callbacks struct {
	Progress ProgressFunc
	Status   StatusFunc
}

func (c Callbacks) progress(percent int, message string) {
	if c.Progress != nil {
		c.Progress(percent, message)
	}
}

func (c Callbacks) status(login string, outcome StatusOutcome, message string) {
	if c.Status != nil {
		c.Status(login, outcome, message)
	}
}
