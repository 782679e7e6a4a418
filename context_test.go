package tokenward

import (
	"context"
	"testing"
)

func TestContextRequestAttributes(t *testing.T) {
	ctx := context.Background()
	if ClientIP(ctx) != "" || UserAgent(ctx) != "" {
		t.Fatal("empty context reported request attributes")
	}

	ctx = WithClientIP(ctx, "203.0.113.9")
	ctx = WithUserAgent(ctx, "curl/8")
	if got := ClientIP(ctx); got != "203.0.113.9" {
		t.Errorf("ClientIP = %q", got)
	}
	if got := UserAgent(ctx); got != "curl/8" {
		t.Errorf("UserAgent = %q", got)
	}

	req := ContextRequest(ctx)
	if req.IP != "203.0.113.9" || req.UserAgent != "curl/8" {
		t.Errorf("ContextRequest = %+v", req)
	}
}

func TestContextAttributesFlowIntoBreach(t *testing.T) {
	eng, _ := newTestEngine(t, nil)
	ctx := WithClientIP(context.Background(), "198.51.100.4")

	pair, err := eng.GenerateTokenPair(ctx, "u1", nil)
	if err != nil {
		t.Fatalf("pair: %v", err)
	}
	// The refresh path reports usage under the context IP; one honest
	// refresh from one address raises nothing.
	if _, err := eng.Refresh(ctx, pair.RefreshToken, nil); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if alerts := eng.Alerts(ctx); len(alerts) != 0 {
		t.Errorf("unexpected alerts: %+v", alerts)
	}
}
