//go:build integration
// +build integration

package test

import (
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/juju/clock/testclock"
	"github.com/redis/go-redis/v9"

	"github.com/wardenlabs/tokenward"
)

func newIntegrationMini(t *testing.T) (*miniredis.Miniredis, redis.UniversalClient) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run failed: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = rdb.Close()
		mr.Close()
	})
	return mr, rdb
}

func newIntegrationRedis(t *testing.T) redis.UniversalClient {
	t.Helper()
	_, rdb := newIntegrationMini(t)
	return rdb
}

func integrationConfig() tokenward.Config {
	cfg := tokenward.DefaultConfig()
	cfg.Signing.Secret = []byte("0123456789abcdef0123456789abcdef")
	return cfg
}

func newIntegrationEngine(t *testing.T, rdb redis.UniversalClient, mutate func(*tokenward.Config)) *tokenward.Engine {
	t.Helper()
	return newIntegrationEngineAt(t, rdb, nil, mutate)
}

// newIntegrationEngineAt pins the engine clock when clk is non-nil; cache
// key TTLs still run on the backend's wall clock.
func newIntegrationEngineAt(t *testing.T, rdb redis.UniversalClient, clk *testclock.Clock, mutate func(*tokenward.Config)) *tokenward.Engine {
	t.Helper()

	cfg := integrationConfig()
	if mutate != nil {
		mutate(&cfg)
	}

	b := tokenward.New().WithConfig(cfg).WithRedis(rdb)
	if clk != nil {
		b = b.WithClock(clk)
	}
	engine, err := b.Build()
	if err != nil {
		t.Fatalf("engine build failed: %v", err)
	}
	t.Cleanup(engine.Close)
	return engine
}
