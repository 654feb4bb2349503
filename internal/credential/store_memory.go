package credential

import (
	"context"
	"fmt"
	"sync"
	"time"

	"clusterreport/internal/sentinel"
)

// InMemoryStore holds the credential in memory for tests/dev.
type InMemoryStore struct {
	mu   sync.Mutex
	cred *Credential
	now  func() time.Time
}

// NewInMemoryStore constructs an empty in-memory credential store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{now: time.Now}
}

// WithNow overrides the clock, for expiry tests.
func (s *InMemoryStore) WithNow(now func() time.Time) *InMemoryStore {
	s.now = now
	return s
}

func (s *InMemoryStore) Load(_ context.Context, cluster, domain string) (*Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cred == nil {
		return nil, fmt.Errorf("credential: %w", sentinel.ErrNotFound)
	}
	if s.cred.Expired(s.now()) {
		s.cred = nil
		return nil, fmt.Errorf("credential: %w", sentinel.ErrExpired)
	}
	if !s.cred.Scoped(cluster, domain) {
		s.cred = nil
		return nil, fmt.Errorf("credential for %s/%s: %w", cluster, domain, sentinel.ErrScopeMismatch)
	}
	copied := *s.cred
	return &copied, nil
}

func (s *InMemoryStore) Save(_ context.Context, cred *Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *cred
	s.cred = &copied
	return nil
}

func (s *InMemoryStore) Invalidate(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cred = nil
	return nil
}
