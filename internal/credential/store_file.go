package credential

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"clusterreport/internal/sentinel"
)

// StorageKey is the fixed name the cached credential is persisted under,
// mirroring the key the browser build of this tool used in localStorage.
const StorageKey = "simplybook_cluster_token.json"

// FileStore persists the credential as a single JSON file under a state
// directory. The on-disk shape is {token, apiKey, cluster, domain, expiresAt}.
type FileStore struct {
	mu   sync.Mutex
	path string
	now  func() time.Time
}

// NewFileStore creates a file-backed store rooted at dir. The directory is
// created on first Save.
func NewFileStore(dir string) *FileStore {
	return &FileStore{path: filepath.Join(dir, StorageKey), now: time.Now}
}

// WithNow overrides the clock, for expiry tests.
func (s *FileStore) WithNow(now func() time.Time) *FileStore {
	s.now = now
	return s
}

func (s *FileStore) Load(_ context.Context, cluster, domain string) (*Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("credential: %w", sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("read credential file: %w", err)
	}

	var cred Credential
	if err := json.Unmarshal(raw, &cred); err != nil {
		// Corrupt cache is treated like an expired one: evict and move on.
		s.remove()
		return nil, fmt.Errorf("credential: %w", sentinel.ErrNotFound)
	}

	if cred.Expired(s.now()) {
		s.remove()
		return nil, fmt.Errorf("credential: %w", sentinel.ErrExpired)
	}
	if !cred.Scoped(cluster, domain) {
		s.remove()
		return nil, fmt.Errorf("credential for %s/%s: %w", cluster, domain, sentinel.ErrScopeMismatch)
	}
	return &cred, nil
}

func (s *FileStore) Save(_ context.Context, cred *Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}
	raw, err := json.Marshal(cred)
	if err != nil {
		return fmt.Errorf("encode credential: %w", err)
	}
	if err := os.WriteFile(s.path, raw, 0o600); err != nil {
		return fmt.Errorf("write credential file: %w", err)
	}
	return nil
}

func (s *FileStore) Invalidate(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.remove()
	return nil
}

func (s *FileStore) remove() {
	_ = os.Remove(s.path)
}
