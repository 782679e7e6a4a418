package blacklist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/juju/clock"

	"github.com/wardenlabs/tokenward/cache"
)

const keyPrefix = "blacklist:"

// record is the cached revocation entry for one jti.
type record struct {
	RevokedAt  time.Time `json:"revoked_at"`
	GraceUntil time.Time `json:"grace_until"`
}

// Blacklist stores jti revocations in the shared cache.
type Blacklist struct {
	store cache.Store
	clk   clock.Clock
	grace time.Duration
}

// New builds a Blacklist. A zero grace period makes revocation immediate.
func New(store cache.Store, clk clock.Clock, grace time.Duration) (*Blacklist, error) {
	if store == nil {
		return nil, errors.New("blacklist requires a cache store")
	}
	if grace < 0 {
		return nil, errors.New("blacklist grace period must not be negative")
	}
	if clk == nil {
		clk = clock.WallClock
	}
	return &Blacklist{store: store, clk: clk, grace: grace}, nil
}

// Add revokes a token until its natural expiry. Tokens already past
// expiresAt need no record; their exp claim rejects them on its own.
func (b *Blacklist) Add(ctx context.Context, tokenID string, expiresAt time.Time) error {
	if tokenID == "" {
		return errors.New("blacklist requires a token id")
	}
	now := b.clk.Now()
	ttl := expiresAt.Sub(now)
	if ttl <= 0 {
		return nil
	}
	raw, err := json.Marshal(record{RevokedAt: now, GraceUntil: now.Add(b.grace)})
	if err != nil {
		return fmt.Errorf("encoding blacklist record: %w", err)
	}
	if err := b.store.Put(ctx, keyPrefix+tokenID, raw, ttl); err != nil {
		return fmt.Errorf("storing blacklist record: %w", err)
	}
	return nil
}

// Remove lifts a revocation.
func (b *Blacklist) Remove(ctx context.Context, tokenID string) error {
	return b.store.Forget(ctx, keyPrefix+tokenID)
}

// IsRevoked implements the validator's revocation check. Within the grace
// window after Add the token still passes; afterwards it is revoked until
// the record's TTL lapses. Cache errors propagate so the caller can make
// its own fail-open decision.
func (b *Blacklist) IsRevoked(ctx context.Context, tokenID string, now time.Time) (bool, error) {
	raw, err := b.store.Get(ctx, keyPrefix+tokenID)
	if err != nil {
		if errors.Is(err, cache.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	var rec record
	if err := json.Unmarshal(raw, &rec); err != nil {
		// A corrupt record cannot prove revocation; treat as revoked to be
		// safe, since only an explicit Add writes this key.
		return true, nil
	}
	return !now.Before(rec.GraceUntil), nil
}
