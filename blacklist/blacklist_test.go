package blacklist

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/juju/clock/testclock"
	"github.com/redis/go-redis/v9"

	"github.com/wardenlabs/tokenward/cache"
)

func newTestBlacklist(t *testing.T, grace time.Duration) (*Blacklist, *testclock.Clock, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	clk := testclock.NewClock(time.Unix(1_700_000_000, 0))
	b, err := New(cache.NewRedisStore(client, "test"), clk, grace)
	if err != nil {
		t.Fatalf("new blacklist: %v", err)
	}
	return b, clk, mr
}

func TestRevocationAfterGrace(t *testing.T) {
	b, clk, _ := newTestBlacklist(t, 30*time.Second)
	ctx := context.Background()

	exp := clk.Now().Add(15 * time.Minute)
	if err := b.Add(ctx, "jti-1", exp); err != nil {
		t.Fatal(err)
	}

	// Inside the grace window: still acceptable.
	revoked, err := b.IsRevoked(ctx, "jti-1", clk.Now())
	if err != nil || revoked {
		t.Fatalf("expected grace tolerance, revoked=%v err=%v", revoked, err)
	}
	revoked, _ = b.IsRevoked(ctx, "jti-1", clk.Now().Add(29*time.Second))
	if revoked {
		t.Fatal("expected tolerance one second before grace end")
	}

	// At and after the boundary: revoked.
	revoked, _ = b.IsRevoked(ctx, "jti-1", clk.Now().Add(30*time.Second))
	if !revoked {
		t.Fatal("expected revocation at grace boundary")
	}
	revoked, _ = b.IsRevoked(ctx, "jti-1", clk.Now().Add(10*time.Minute))
	if !revoked {
		t.Fatal("expected revocation after grace")
	}
}

func TestZeroGraceIsImmediate(t *testing.T) {
	b, clk, _ := newTestBlacklist(t, 0)
	ctx := context.Background()

	if err := b.Add(ctx, "jti-1", clk.Now().Add(time.Hour)); err != nil {
		t.Fatal(err)
	}
	revoked, err := b.IsRevoked(ctx, "jti-1", clk.Now())
	if err != nil || !revoked {
		t.Fatalf("expected immediate revocation, revoked=%v err=%v", revoked, err)
	}
}

func TestUnknownTokenNotRevoked(t *testing.T) {
	b, clk, _ := newTestBlacklist(t, time.Minute)
	revoked, err := b.IsRevoked(context.Background(), "never-seen", clk.Now())
	if err != nil || revoked {
		t.Fatalf("expected unknown token to pass, revoked=%v err=%v", revoked, err)
	}
}

func TestRecordLapsesWithTokenExpiry(t *testing.T) {
	b, clk, mr := newTestBlacklist(t, 0)
	ctx := context.Background()

	if err := b.Add(ctx, "jti-1", clk.Now().Add(time.Minute)); err != nil {
		t.Fatal(err)
	}
	mr.FastForward(2 * time.Minute)

	revoked, err := b.IsRevoked(ctx, "jti-1", clk.Now().Add(2*time.Minute))
	if err != nil || revoked {
		t.Fatalf("expected record to lapse with token expiry, revoked=%v err=%v", revoked, err)
	}
}

func TestExpiredTokenNeedsNoRecord(t *testing.T) {
	b, clk, mr := newTestBlacklist(t, 0)
	if err := b.Add(context.Background(), "jti-1", clk.Now().Add(-time.Minute)); err != nil {
		t.Fatal(err)
	}
	if mr.Exists("test:blacklist:jti-1") {
		t.Fatal("expected no record for an already-expired token")
	}
}

func TestRemoveLiftsRevocation(t *testing.T) {
	b, clk, _ := newTestBlacklist(t, 0)
	ctx := context.Background()

	if err := b.Add(ctx, "jti-1", clk.Now().Add(time.Hour)); err != nil {
		t.Fatal(err)
	}
	if err := b.Remove(ctx, "jti-1"); err != nil {
		t.Fatal(err)
	}
	revoked, err := b.IsRevoked(ctx, "jti-1", clk.Now())
	if err != nil || revoked {
		t.Fatalf("expected revocation lifted, revoked=%v err=%v", revoked, err)
	}
}
