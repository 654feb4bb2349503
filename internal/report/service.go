package report

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"clusterreport/internal/bookings"
	"clusterreport/internal/cluster"
	"clusterreport/internal/credential"
	reportmetrics "clusterreport/internal/report/metrics"
	"clusterreport/internal/sentinel"
	"clusterreport/internal/tracer"
	dErrors "clusterreport/pkg/domain-errors"
	"clusterreport/pkg/platform/settle"
)

// ClusterAPI is the slice of the cluster client the service needs.
type ClusterAPI interface {
	Authenticate(ctx context.Context, apiKey, clusterName string) (string, error)
	ListCompanies(ctx context.Context, cred *credential.Credential) ([]cluster.Company, error)
	CompanyToken(ctx context.Context, cred *credential.Credential, login string) (string, error)
}

// Collector retrieves one company's bookings.
type Collector interface {
	Collect(ctx context.Context, token, login string, f bookings.Filter) (bookings.Result, error)
}

// Service orchestrates report runs: credential acquisition, the two
// settle-all fan-outs, and aggregate bookkeeping.
type Service struct {
	clusterAPI ClusterAPI
	collector  Collector
	creds      credential.Store
	runs       RunStore
	logger     *slog.Logger
	metrics    *reportmetrics.Metrics
	tracer     tracer.Tracer
	now        func() time.Time
}

// Option configures the Service.
type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *reportmetrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithTracer(t tracer.Tracer) Option {
	return func(s *Service) {
		s.tracer = t
	}
}

// WithNow overrides the clock, for deterministic tests.
func WithNow(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// New wires a report service.
func New(clusterAPI ClusterAPI, collector Collector, creds credential.Store, runs RunStore, opts ...Option) *Service {
	s := &Service{
		clusterAPI: clusterAPI,
		collector:  collector,
		creds:      creds,
		runs:       runs,
		tracer:     tracer.Noop{},
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Connect returns a usable cluster credential: the cached one when it is
// unexpired and scoped to (clusterName, domain), otherwise a fresh
// authentication with the given key.
func (s *Service) Connect(ctx context.Context, apiKey, clusterName, domain string) (*credential.Credential, error) {
	if clusterName == "" || domain == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "cluster and domain are required")
	}

	if cred, err := s.creds.Load(ctx, clusterName, domain); err == nil {
		s.log(ctx, slog.LevelDebug, "using cached cluster credential", "cluster", clusterName)
		return cred, nil
	} else if !errors.Is(err, sentinel.ErrNotFound) && !errors.Is(err, sentinel.ErrExpired) && !errors.Is(err, sentinel.ErrScopeMismatch) {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "credential store failed")
	}

	if apiKey == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "api key is required")
	}

	token, err := s.clusterAPI.Authenticate(ctx, apiKey, clusterName)
	if err != nil {
		return nil, err
	}

	cred := credential.New(token, apiKey, clusterName, domain, s.now())
	if err := s.creds.Save(ctx, cred); err != nil {
		s.log(ctx, slog.LevelWarn, "failed to cache cluster credential", "error", err)
	}
	return cred, nil
}

// Companies lists every company in the cluster. A stale cached credential
// surfaces here as an auth failure, at which point the client has already
// evicted it; the caller retries with a fresh key.
func (s *Service) Companies(ctx context.Context, cred *credential.Credential) ([]cluster.Company, error) {
	ctx, span := s.tracer.Start(ctx, "report.companies", tracer.String("cluster", cred.Cluster))
	companies, err := s.clusterAPI.ListCompanies(ctx, cred)
	span.End(err)
	if err != nil {
		return nil, err
	}
	s.log(ctx, slog.LevelInfo, "companies listed", "cluster", cred.Cluster, "count", len(companies))
	return companies, nil
}

// Run looks up a run snapshot by id.
func (s *Service) Run(ctx context.Context, id string) (*Run, error) {
	run, err := s.runs.FindByID(ctx, id)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeNotFound, "run not found")
	}
	return run, nil
}

// Runs lists all known run snapshots.
func (s *Service) Runs(ctx context.Context) ([]*Run, error) {
	return s.runs.List(ctx)
}

// Generate executes one report run to completion. Per-company failures are
// recorded in the run and never abort sibling companies; cluster-level
// failures (credential, validation) mark the run failed and surface.
// The returned run is the final immutable snapshot.
func (s *Service) Generate(ctx context.Context, params Params, cb Callbacks) (*Run, error) {
	run, err := s.begin(ctx, &params)
	if err != nil {
		return nil, err
	}

	ctx, span := s.tracer.Start(ctx, "report.generate",
		tracer.String("cluster", params.Cluster),
		tracer.Int("companies", len(params.Companies)),
	)

	final, err := s.generate(ctx, run, params, cb)
	span.End(err)
	return final, err
}

// Start begins a run and returns its id immediately; the run executes in a
// background goroutine detached from the request context. Progress is
// observable through the callbacks and the run store.
func (s *Service) Start(ctx context.Context, params Params, cb Callbacks) (string, error) {
	run, err := s.begin(ctx, &params)
	if err != nil {
		return "", err
	}

	bg := context.WithoutCancel(ctx)
	go func() {
		ctx, span := s.tracer.Start(bg, "report.generate",
			tracer.String("cluster", params.Cluster),
			tracer.Int("companies", len(params.Companies)),
		)
		_, genErr := s.generate(ctx, run, params, cb)
		span.End(genErr)
	}()
	return run.ID, nil
}

// begin normalizes and validates params, then persists the initial running
// snapshot. Params is mutated so later stages see the normalized selection.
func (s *Service) begin(ctx context.Context, params *Params) (*Run, error) {
	params.Normalize()
	if err := params.Validate(); err != nil {
		return nil, err
	}

	run := &Run{
		ID:        uuid.New().String(),
		Cluster:   params.Cluster,
		Domain:    params.Domain,
		Requested: append([]string(nil), params.Companies...),
		State:     RunStateRunning,
		Message:   "Initializing...",
		StartedAt: s.now(),
	}
	if err := s.runs.Save(ctx, run); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to persist run")
	}
	if s.metrics != nil {
		s.metrics.RunsStarted.Inc()
	}
	return run, nil
}

func (s *Service) generate(ctx context.Context, run *Run, params Params, cb Callbacks) (*Run, error) {
	cred, err := s.Connect(ctx, params.APIKey, params.Cluster, params.Domain)
	if err != nil {
		return nil, s.fail(ctx, run, err)
	}

	agg := newAggregator(run, cb, func(snapshot *Run) {
		if saveErr := s.runs.Save(ctx, snapshot); saveErr != nil {
			s.log(ctx, slog.LevelWarn, "failed to persist run snapshot", "run_id", snapshot.ID, "error", saveErr)
		}
	})

	// Stage 1: one token exchange per company, fully parallel, settle-all.
	cb.progress(0, "Getting company tokens...")
	tokenOutcomes := settle.All(ctx, params.Companies, func(ctx context.Context, login string) (string, error) {
		token, tokenErr := s.clusterAPI.CompanyToken(ctx, cred, login)
		if tokenErr != nil {
			agg.tokenFailed(login, tokenErr)
			if s.metrics != nil {
				s.metrics.IncrementFailure(string(StageToken))
			}
		} else {
			agg.tokenAcquired(login)
		}
		return token, tokenErr
	})

	tokens := make(map[string]string, len(tokenOutcomes))
	authorized := make([]string, 0, len(tokenOutcomes))
	for _, outcome := range tokenOutcomes {
		if outcome.Err == nil {
			tokens[outcome.Key] = outcome.Value
			authorized = append(authorized, outcome.Key)
		}
	}

	// Stage 2: collect bookings for every authorized company. Companies
	// that failed the token stage are never attempted here.
	settle.All(ctx, authorized, func(ctx context.Context, login string) (bookings.Result, error) {
		result, collectErr := s.collector.Collect(ctx, tokens[login], login, params.Filter)
		if collectErr != nil {
			agg.bookingsFailed(login, collectErr)
			if s.metrics != nil {
				s.metrics.IncrementFailure(string(StageBookings))
			}
		} else {
			agg.bookingsCollected(login, result)
		}
		return result, collectErr
	})

	final := agg.finalize(s.now())
	if err := s.runs.Save(ctx, final); err != nil {
		s.log(ctx, slog.LevelWarn, "failed to persist final run", "run_id", final.ID, "error", err)
	}
	if s.metrics != nil {
		s.metrics.ObserveRun(final.StartedAt, final.TotalBookings)
	}

	s.log(ctx, slog.LevelInfo, "report run completed",
		"run_id", final.ID,
		"cluster", final.Cluster,
		"requested", len(final.Requested),
		"successful", final.Successful(),
		"total_bookings", final.TotalBookings,
		"errors", len(final.Errors),
	)
	return final, nil
}

// fail marks a run failed on a cluster-level error and surfaces the error.
func (s *Service) fail(ctx context.Context, run *Run, cause error) error {
	run.State = RunStateFailed
	run.Message = fmt.Sprintf("Report generation failed: %v", cause)
	run.CompletedAt = s.now()
	if err := s.runs.Save(ctx, run); err != nil {
		s.log(ctx, slog.LevelWarn, "failed to persist failed run", "run_id", run.ID, "error", err)
	}
	if s.metrics != nil {
		s.metrics.RunsCompleted.Inc()
	}
	s.log(ctx, slog.LevelWarn, "report run failed", "run_id", run.ID, "error", cause)
	return cause
}

func (s *Service) log(ctx context.Context, level slog.Level, msg string, args ...any) {
	if s.logger != nil {
		s.logger.Log(ctx, level, msg, args...)
	}
}
