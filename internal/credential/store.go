package credential

import "context"

// Error Contract:
// All store methods follow this pattern:
// - Load returns sentinel.ErrNotFound (wrapped) when no usable credential exists;
//   an expired or out-of-scope record is evicted as a side effect of the failed load.
// - Return nil for successful operations.
// - Return wrapped errors with context for infrastructure failures.

// Store persists the process-wide cluster credential. Implementations must
// never return an expired credential or one scoped to a different
// (cluster, domain) pair.
type Store interface {
	Load(ctx context.Context, cluster, domain string) (*Credential, error)
	Save(ctx context.Context, cred *Credential) error
	// Invalidate clears the store. Called whenever an authenticated call
	// fails with 401/403 so the next caller re-authenticates instead of
	// retrying a dead credential.
	Invalidate(ctx context.Context) error
}
