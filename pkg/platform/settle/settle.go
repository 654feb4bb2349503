// Package settle provides a join-all-with-results fan-out primitive.
//
// Unlike errgroup's default contract, a settled group never short-circuits:
// every input gets exactly one outcome, success or failure, and the call
// returns only after all of them are in.
package settle

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Outcome is the result of one fan-out operation.
type Outcome[T any] struct {
	Key   string
	Value T
	Err   error
}

// DefaultLimit bounds in-flight operations per fan-out so a large company
// selection does not open hundreds of simultaneous connections.
const DefaultLimit = 16

// All runs fn once per key, in parallel, and returns one Outcome per key in
// input order. Individual failures are captured in the outcome and never
// cancel sibling operations; only the caller's ctx does that, in which case
// the affected operations report ctx's error as their own.
func All[T any](ctx context.Context, keys []string, fn func(ctx context.Context, key string) (T, error)) []Outcome[T] {
	return AllLimit(ctx, keys, DefaultLimit, fn)
}

// AllLimit is All with an explicit concurrency bound. limit <= 0 means
// unbounded.
func AllLimit[T any](ctx context.Context, keys []string, limit int, fn func(ctx context.Context, key string) (T, error)) []Outcome[T] {
	outcomes := make([]Outcome[T], len(keys))

	g := new(errgroup.Group)
	if limit > 0 {
		g.SetLimit(limit)
	}

	for i, key := range keys {
		i, key := i, key
		// Each goroutine writes to its own slot, avoiding data races.
		g.Go(func() error {
			value, err := fn(ctx, key)
			outcomes[i] = Outcome[T]{Key: key, Value: value, Err: err}
			return nil
		})
	}

	// Goroutines always return nil, so Wait is a pure join-all barrier.
	_ = g.Wait()
	return outcomes
}
