//go:build integration
// +build integration

package test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/wardenlabs/tokenward/cache"
)

// TestLedgerPublishSingleWinner races concurrent publishers on one ledger
// key. The compare-and-swap script must admit exactly one.
func TestLedgerPublishSingleWinner(t *testing.T) {
	ctx := context.Background()
	rdb := newIntegrationRedis(t)
	store := cache.NewRedisStore(rdb, "race")

	if err := store.Put(ctx, "ledger", []byte("gen-0"), time.Hour); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	const workers = 16
	start := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(workers)

	wins := make(chan bool, workers)
	for i := 0; i < workers; i++ {
		next := []byte(fmt.Sprintf("gen-1-worker-%d", i))
		go func(next []byte) {
			defer wg.Done()
			<-start
			ok, err := store.CompareAndSwap(ctx, "ledger", []byte("gen-0"), next, time.Hour)
			if err != nil {
				t.Errorf("CompareAndSwap failed: %v", err)
				return
			}
			wins <- ok
		}(next)
	}

	close(start)
	wg.Wait()
	close(wins)

	won := 0
	for ok := range wins {
		if ok {
			won++
		}
	}
	if won != 1 {
		t.Fatalf("expected exactly one winner, got %d", won)
	}
}

// TestLedgerCreateIfAbsentSingleWinner covers the nil-expected form used
// when a family record is first adopted.
func TestLedgerCreateIfAbsentSingleWinner(t *testing.T) {
	ctx := context.Background()
	rdb := newIntegrationRedis(t)
	store := cache.NewRedisStore(rdb, "race")

	const workers = 8
	start := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(workers)

	wins := make(chan bool, workers)
	for i := 0; i < workers; i++ {
		next := []byte(fmt.Sprintf("adopted-%d", i))
		go func(next []byte) {
			defer wg.Done()
			<-start
			ok, err := store.CompareAndSwap(ctx, "fresh", nil, next, time.Hour)
			if err != nil {
				t.Errorf("CompareAndSwap failed: %v", err)
				return
			}
			wins <- ok
		}(next)
	}

	close(start)
	wg.Wait()
	close(wins)

	won := 0
	for ok := range wins {
		if ok {
			won++
		}
	}
	if won != 1 {
		t.Fatalf("expected exactly one adopter, got %d", won)
	}
}
