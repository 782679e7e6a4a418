package cache

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned by Get when the key is absent or expired.
	ErrNotFound = errors.New("cache key not found")
	// ErrUnavailable indicates the cache backend is unreachable. Callers on
	// protection paths treat it as a fail-open signal, never as a denial.
	ErrUnavailable = errors.New("cache unavailable")
)

// Store is the shared key-value surface consumed by every stateful
// component. Keys expire after their TTL; a zero TTL means no expiry.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Has(ctx context.Context, key string) (bool, error)
	Forget(ctx context.Context, key string) error
}

// AtomicStore adds single-winner publication on top of [Store].
//
// CompareAndSwap replaces the value at key with next only when the stored
// value still equals expected, refreshing the TTL on success. A nil
// expected means "create only if absent". It reports whether the swap won;
// a lost race is not an error.
type AtomicStore interface {
	Store
	CompareAndSwap(ctx context.Context, key string, expected, next []byte, ttl time.Duration) (bool, error)
}
