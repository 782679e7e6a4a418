package keyring

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/juju/clock/testclock"
	"github.com/redis/go-redis/v9"

	"github.com/wardenlabs/tokenward/cache"
	"github.com/wardenlabs/tokenward/claims"
	"github.com/wardenlabs/tokenward/jwt"
)

func newTestManager(t *testing.T, mutate func(*Config)) (*Manager, *testclock.Clock) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	clk := testclock.NewClock(time.Unix(1_700_000_000, 0))
	cfg := Config{
		Store:            cache.NewRedisStore(client, "test"),
		Clock:            clk,
		Algorithms:       []jwt.Algorithm{jwt.HS256},
		RotationInterval: time.Hour,
		GracePeriod:      30 * time.Minute,
		MaxKeys:          3,
		AutoRotation:     true,
	}
	if mutate != nil {
		mutate(&cfg)
	}
	m, err := NewManager(cfg)
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	return m, clk
}

func TestCurrentKeyGeneratesFirstKey(t *testing.T) {
	m, clk := newTestManager(t, nil)
	ctx := context.Background()

	key, err := m.CurrentKey(ctx, jwt.HS256)
	if err != nil {
		t.Fatalf("current key: %v", err)
	}
	if key.ID == "" || len(key.Secret) != 32 {
		t.Fatalf("unexpected key %+v", key)
	}
	now := clk.Now()
	if !key.CreatedAt.Equal(now) || !key.ExpiresAt.Equal(now.Add(time.Hour)) ||
		!key.GraceExpiresAt.Equal(now.Add(90*time.Minute)) {
		t.Fatalf("lifecycle window wrong: %+v", key)
	}

	// A second call returns the same key, not a fresh one.
	again, err := m.CurrentKey(ctx, jwt.HS256)
	if err != nil {
		t.Fatal(err)
	}
	if again.ID != key.ID {
		t.Fatalf("expected stable current key, got %q then %q", key.ID, again.ID)
	}
}

func TestAutoRotationAtExpiry(t *testing.T) {
	m, clk := newTestManager(t, nil)
	ctx := context.Background()

	first, err := m.CurrentKey(ctx, jwt.HS256)
	if err != nil {
		t.Fatal(err)
	}

	clk.Advance(59 * time.Minute)
	same, err := m.CurrentKey(ctx, jwt.HS256)
	if err != nil {
		t.Fatal(err)
	}
	if same.ID != first.ID {
		t.Fatal("expected no rotation before expiry")
	}

	clk.Advance(2 * time.Minute) // past ExpiresAt
	second, err := m.CurrentKey(ctx, jwt.HS256)
	if err != nil {
		t.Fatal(err)
	}
	if second.ID == first.ID {
		t.Fatal("expected rotation at expiry")
	}

	keys, err := m.ValidKeys(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(keys) != 2 || keys[0].ID != second.ID || keys[1].ID != first.ID {
		t.Fatalf("expected current then in-grace predecessor, got %+v", keys)
	}
}

func TestAutoRotationOffKeepsExpiredKey(t *testing.T) {
	m, clk := newTestManager(t, func(cfg *Config) { cfg.AutoRotation = false })
	ctx := context.Background()

	first, err := m.CurrentKey(ctx, jwt.HS256)
	if err != nil {
		t.Fatal(err)
	}
	clk.Advance(2 * time.Hour)
	same, err := m.CurrentKey(ctx, jwt.HS256)
	if err != nil {
		t.Fatal(err)
	}
	if same.ID != first.ID {
		t.Fatal("expected expired key to keep signing with auto-rotation off")
	}
}

func TestGracePeriodVerification(t *testing.T) {
	m, clk := newTestManager(t, nil)
	ctx := context.Background()

	first, err := m.CurrentKey(ctx, jwt.HS256)
	if err != nil {
		t.Fatal(err)
	}
	material, err := first.Material()
	if err != nil {
		t.Fatal(err)
	}

	// Sign just before rotation.
	c := claims.New()
	if err := c.SetSubject("42"); err != nil {
		t.Fatal(err)
	}
	token, err := jwt.Encode(c, material)
	if err != nil {
		t.Fatal(err)
	}

	clk.Advance(61 * time.Minute)
	if _, err := m.CurrentKey(ctx, jwt.HS256); err != nil {
		t.Fatal(err)
	}

	// Inside grace: old key still verifies.
	keys, err := m.VerificationKeys(ctx)
	if err != nil {
		t.Fatal(err)
	}
	tok, err := jwt.Decode(token, keys)
	if err != nil {
		t.Fatalf("expected in-grace verification to pass: %v", err)
	}
	if tok.Key.ID != first.ID {
		t.Fatalf("expected key %q to verify, got %q", first.ID, tok.Key.ID)
	}

	// Past grace_expires_at: the key is gone.
	clk.Advance(30 * time.Minute)
	keys, err = m.VerificationKeys(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := jwt.Decode(token, keys); err == nil {
		t.Fatal("expected verification to fail after grace expiry")
	}
}

func TestManualRotateAndHistoryCap(t *testing.T) {
	m, clk := newTestManager(t, nil)
	ctx := context.Background()

	if _, err := m.CurrentKey(ctx, jwt.HS256); err != nil {
		t.Fatal(err)
	}
	var last *SigningKey
	for i := 0; i < 5; i++ {
		clk.Advance(time.Minute)
		k, err := m.Rotate(ctx, jwt.HS256)
		if err != nil {
			t.Fatalf("rotate %d: %v", i, err)
		}
		last = k
	}

	cur, err := m.CurrentKey(ctx, jwt.HS256)
	if err != nil {
		t.Fatal(err)
	}
	if cur.ID != last.ID {
		t.Fatal("expected manual rotation to publish a new current key")
	}

	keys, err := m.ValidKeys(ctx)
	if err != nil {
		t.Fatal(err)
	}
	// Current plus a history capped at MaxKeys.
	if len(keys) > 1+3 {
		t.Fatalf("history exceeds cap: %d keys", len(keys))
	}
}

func TestRotateRaceSingleWinner(t *testing.T) {
	m, _ := newTestManager(t, nil)
	ctx := context.Background()

	const workers = 8
	var wg sync.WaitGroup
	start := make(chan struct{})
	ids := make([]string, workers)
	errs := make([]error, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			<-start
			key, err := m.CurrentKey(ctx, jwt.HS256)
			if err != nil {
				errs[n] = err
				return
			}
			ids[n] = key.ID
		}(i)
	}
	close(start)
	wg.Wait()

	for n, err := range errs {
		if err != nil {
			t.Fatalf("worker %d: %v", n, err)
		}
	}
	for n := 1; n < workers; n++ {
		if ids[n] != ids[0] {
			t.Fatalf("two distinct current keys published: %q and %q", ids[0], ids[n])
		}
	}

	keys, err := m.ValidKeys(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(keys) != 1 {
		t.Fatalf("expected exactly one published key, got %d", len(keys))
	}
}

func TestUnsupportedAlgorithm(t *testing.T) {
	m, _ := newTestManager(t, nil)
	_, err := m.CurrentKey(context.Background(), "PS512")
	if !errors.Is(err, jwt.ErrUnsupportedAlgorithm) {
		t.Fatalf("expected ErrUnsupportedAlgorithm, got %v", err)
	}
	var ke *KeyError
	if !errors.As(err, &ke) {
		t.Fatalf("expected KeyError, got %v", err)
	}
}

func TestVerificationKeysFailOpen(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	clk := testclock.NewClock(time.Unix(1_700_000_000, 0))
	degraded := 0
	m, err := NewManager(Config{
		Store:            cache.NewRedisStore(client, "test"),
		Clock:            clk,
		Algorithms:       []jwt.Algorithm{jwt.HS256},
		RotationInterval: time.Hour,
		GracePeriod:      30 * time.Minute,
		OnDegraded:       func(string) { degraded++ },
	})
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	if _, err := m.CurrentKey(ctx, jwt.HS256); err != nil {
		t.Fatal(err)
	}
	keys, err := m.VerificationKeys(ctx)
	if err != nil || len(keys) != 1 {
		t.Fatalf("expected one key, got %d (%v)", len(keys), err)
	}

	// Cache goes away: the last known set keeps verification alive.
	mr.Close()
	keys, err = m.VerificationKeys(ctx)
	if err != nil {
		t.Fatalf("expected fail-open, got %v", err)
	}
	if len(keys) != 1 {
		t.Fatalf("expected last known key served, got %d", len(keys))
	}
	if degraded == 0 {
		t.Fatal("expected degradation hook to fire")
	}
}
