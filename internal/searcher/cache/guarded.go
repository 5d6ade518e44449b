package cache

import (
	"context"
	"errors"
	"time"

	"github.com/Adithya-Monish-Kumar-K/spimi-search/pkg/resilience"
)

// GuardedStore routes store calls through a circuit breaker. While the
// circuit is open reads are misses and writes are dropped, so an unreachable
// store costs queries nothing.
type GuardedStore struct {
	store   Store
	breaker *resilience.Breaker
}

func NewGuardedStore(store Store, breaker *resilience.Breaker) *GuardedStore {
	return &GuardedStore{store: store, breaker: breaker}
}

func (g *GuardedStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var (
		value []byte
		found bool
	)
	err := g.breaker.Do(func() error {
		var err error
		value, found, err = g.store.Get(ctx, key)
		return err
	})
	if errors.Is(err, resilience.ErrCircuitOpen) {
		return nil, false, nil
	}
	return value, found, err
}

func (g *GuardedStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	err := g.breaker.Do(func() error {
		return g.store.Set(ctx, key, value, ttl)
	})
	if errors.Is(err, resilience.ErrCircuitOpen) {
		return nil
	}
	return err
}

// FlushByPattern is an explicit operator action and fails loudly when the
// circuit is open.
func (g *GuardedStore) FlushByPattern(ctx context.Context, pattern string) (int64, error) {
	var deleted int64
	err := g.breaker.Do(func() error {
		var err error
		deleted, err = g.store.FlushByPattern(ctx, pattern)
		return err
	})
	return deleted, err
}
