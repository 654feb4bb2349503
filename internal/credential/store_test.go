package credential

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clusterreport/internal/sentinel"
)

var base = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestCredential(now time.Time) *Credential {
	return New("opaque-token", "csk_test", "acme", "simplybook.pro", now)
}

func TestNewAppliesReuseWindow(t *testing.T) {
	cred := newTestCredential(base)
	assert.Equal(t, base.Add(30*time.Minute), cred.ExpiresAt)
	assert.False(t, cred.Expired(base.Add(29*time.Minute)))
	assert.True(t, cred.Expired(base.Add(30*time.Minute)))
}

func TestNewClampsToJWTExpiry(t *testing.T) {
	// Unsigned JWT with exp 10 minutes after base; header/claims are
	// base64url of {"alg":"none"} and {"exp":<ts>}.
	exp := base.Add(10 * time.Minute)
	token := makeUnsignedJWT(t, exp)

	cred := New(token, "csk_test", "acme", "simplybook.pro", base)
	assert.Equal(t, exp.Unix(), cred.ExpiresAt.Unix(), "window clamps to earlier exp claim")

	// A later exp claim must not extend the 30 minute window.
	far := makeUnsignedJWT(t, base.Add(24*time.Hour))
	cred = New(far, "csk_test", "acme", "simplybook.pro", base)
	assert.Equal(t, base.Add(30*time.Minute), cred.ExpiresAt)
}

func makeUnsignedJWT(t *testing.T, exp time.Time) string {
	t.Helper()
	enc := func(v any) string {
		raw, err := json.Marshal(v)
		require.NoError(t, err)
		return base64.RawURLEncoding.EncodeToString(raw)
	}
	return enc(map[string]string{"alg": "none", "typ": "JWT"}) + "." +
		enc(map[string]int64{"exp": exp.Unix()}) + "."
}

func TestStoresRoundTripAndEvict(t *testing.T) {
	ctx := context.Background()

	type storeCase struct {
		store  Store
		setNow func(func() time.Time)
	}

	mem := NewInMemoryStore()
	file := NewFileStore(t.TempDir())
	stores := map[string]storeCase{
		"memory": {mem, func(now func() time.Time) { mem.WithNow(now) }},
		"file":   {file, func(now func() time.Time) { file.WithNow(now) }},
	}

	for name, tc := range stores {
		t.Run(name, func(t *testing.T) {
			now := base
			tc.setNow(func() time.Time { return now })

			_, err := tc.store.Load(ctx, "acme", "simplybook.pro")
			assert.ErrorIs(t, err, sentinel.ErrNotFound)

			require.NoError(t, tc.store.Save(ctx, newTestCredential(base)))

			loaded, err := tc.store.Load(ctx, "acme", "simplybook.pro")
			require.NoError(t, err)
			assert.Equal(t, "opaque-token", loaded.Token)

			// Different scope evicts and misses.
			_, err = tc.store.Load(ctx, "acme", "simplybook.me")
			assert.ErrorIs(t, err, sentinel.ErrScopeMismatch)
			_, err = tc.store.Load(ctx, "acme", "simplybook.pro")
			assert.ErrorIs(t, err, sentinel.ErrNotFound, "eviction is a side effect of the failed load")

			// Expired credential is never returned and is evicted.
			require.NoError(t, tc.store.Save(ctx, newTestCredential(base)))
			now = base.Add(31 * time.Minute)
			_, err = tc.store.Load(ctx, "acme", "simplybook.pro")
			assert.ErrorIs(t, err, sentinel.ErrExpired)
			now = base
			_, err = tc.store.Load(ctx, "acme", "simplybook.pro")
			assert.ErrorIs(t, err, sentinel.ErrNotFound)

			// Invalidate clears unconditionally.
			require.NoError(t, tc.store.Save(ctx, newTestCredential(base)))
			require.NoError(t, tc.store.Invalidate(ctx))
			_, err = tc.store.Load(ctx, "acme", "simplybook.pro")
			assert.ErrorIs(t, err, sentinel.ErrNotFound)
		})
	}
}

func TestFileStoreOnDiskFormat(t *testing.T) {
	dir := t.TempDir()
	store := NewFileStore(dir)
	require.NoError(t, store.Save(context.Background(), newTestCredential(base)))

	raw, err := os.ReadFile(filepath.Join(dir, StorageKey))
	require.NoError(t, err)

	var fields map[string]any
	require.NoError(t, json.Unmarshal(raw, &fields))
	for _, key := range []string{"token", "apiKey", "cluster", "domain", "expiresAt"} {
		assert.Contains(t, fields, key)
	}
}

func TestFileStoreCorruptCacheEvicted(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, StorageKey), []byte("{not json"), 0o600))

	store := NewFileStore(dir)
	_, err := store.Load(context.Background(), "acme", "simplybook.pro")
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
	_, statErr := os.Stat(filepath.Join(dir, StorageKey))
	assert.True(t, os.IsNotExist(statErr), "corrupt file removed")
}
