package report

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"clusterreport/internal/sentinel"
)

// RunStore keeps run snapshots addressable by id so the HTTP surface can
// serve state and exports while and after a run executes.
//
// Error Contract:
// - FindByID returns sentinel.ErrNotFound (wrapped) for unknown ids.
// - Save overwrites unconditionally; the service saves monotone snapshots.
type RunStore interface {
	Save(ctx context.Context, run *Run) error
	FindByID(ctx context.Context, id string) (*Run, error)
	List(ctx context.Context) ([]*Run, error)
}

// InMemoryRunStore stores run snapshots in memory. Copies go in and copies
// come out, so concurrent readers never observe a run mid-mutation.
type InMemoryRunStore struct {
	mu   sync.RWMutex
	runs map[string]Run
}

// NewInMemoryRunStore constructs an empty run store.
func NewInMemoryRunStore() *InMemoryRunStore {
	return &InMemoryRunStore{runs: make(map[string]Run)}
}

func (s *InMemoryRunStore) Save(_ context.Context, run *Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[run.ID] = copyRun(run)
	return nil
}

func (s *InMemoryRunStore) FindByID(_ context.Context, id string) (*Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if run, ok := s.runs[id]; ok {
		copied := copyRun(&run)
		return &copied, nil
	}
	return nil, fmt.Errorf("run %s: %w", id, sentinel.ErrNotFound)
}

func (s *InMemoryRunStore) List(_ context.Context) ([]*Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	runs := make([]*Run, 0, len(s.runs))
	for _, run := range s.runs {
		copied := copyRun(&run)
		runs = append(runs, &copied)
	}
	sort.Slice(runs, func(i, j int) bool {
		return runs[i].StartedAt.Before(runs[j].StartedAt)
	})
	return runs, nil
}

func copyRun(run *Run) Run {
	copied := *run
	copied.Requested = append([]string(nil), run.Requested...)
	copied.Results = append([]CompanyResult(nil), run.Results...)
	copied.Errors = append([]RunError(nil), run.Errors...)
	return copied
}
