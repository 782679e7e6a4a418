package tokenward

import (
	"testing"
	"time"
)

func TestLint_DefaultConfigNoMediumWarnings(t *testing.T) {
	// The default config favors convenience (static HS256 secret, unbounded
	// refresh families), so low-severity advice is expected. Anything at
	// MEDIUM or above would mean the defaults ship a real weakness.
	cfg := DefaultConfig()
	ws := cfg.Lint()

	if err := ws.AsError(LintMedium); err != nil {
		t.Errorf("default config should lint clean at MEDIUM, got %v", err)
	}
	if !containsCode(ws.Codes(), "signing_hs256") {
		t.Error("default config should carry the signing_hs256 advisory")
	}
}

func TestLint_HighSecurityConfigLintsClean(t *testing.T) {
	cfg := HighSecurityConfig()
	ws := cfg.Lint()

	if len(ws) != 0 {
		t.Errorf("HighSecurityConfig should produce no warnings, got %v", ws.Codes())
	}
}

func TestLint_HighThroughputConfigDeclaresTradeoffs(t *testing.T) {
	cfg := HighThroughputConfig()
	ws := cfg.Lint()
	codes := ws.Codes()

	for _, code := range []string{"blacklist_disabled", "breach_disabled"} {
		if !containsCode(codes, code) {
			t.Errorf("HighThroughputConfig should carry %q", code)
		}
	}
	if err := ws.AsError(LintHigh); err != nil {
		t.Errorf("HighThroughputConfig trades protection, but is not contradictory: %v", err)
	}
}

func TestLint_LargeLeeway(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Tokens.Leeway = 90 * time.Second
	if !containsCode(cfg.Lint().Codes(), "leeway_large") {
		t.Error("expected leeway_large warning")
	}
}

func TestLint_LongAccessTTL(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Tokens.TTL = time.Hour
	if !containsCode(cfg.Lint().Codes(), "access_ttl_long") {
		t.Error("expected access_ttl_long warning")
	}
}

func TestLint_LongRefreshTTL(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Tokens.RefreshTTL = 30 * 24 * time.Hour
	if !containsCode(cfg.Lint().Codes(), "refresh_ttl_long") {
		t.Error("expected refresh_ttl_long warning")
	}
}

func TestLint_BlacklistGracePeriod(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Blacklist.GracePeriod = 10 * time.Minute
	if !containsCode(cfg.Lint().Codes(), "blacklist_grace_large") {
		t.Error("expected blacklist_grace_large warning")
	}

	cfg.Blacklist.GracePeriod = 5 * time.Minute
	if containsCode(cfg.Lint().Codes(), "blacklist_grace_large") {
		t.Error("should not warn at exactly 5 minutes")
	}
}

func TestLint_WideRotationOverlap(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Refresh.RotationOverlap = 5 * time.Minute
	if !containsCode(cfg.Lint().Codes(), "overlap_large") {
		t.Error("expected overlap_large warning")
	}
}

func TestLint_ExhaustionWithoutRotationIsHigh(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Refresh.DisableRotation = true
	cfg.Refresh.MaxRefreshCount = 50
	ws := cfg.Lint()

	if !containsCode(ws.Codes(), "exhaustion_without_rotation") {
		t.Fatal("expected exhaustion_without_rotation warning")
	}
	for _, w := range ws {
		if w.Code == "exhaustion_without_rotation" && w.Severity != LintHigh {
			t.Errorf("exhaustion_without_rotation should be HIGH, got %s", w.Severity)
		}
	}
	if err := ws.AsError(LintHigh); err == nil {
		t.Error("expected AsError(LintHigh) to reject the contradictory config")
	}
}

func TestLint_AlertsWithoutBreach(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Alerts.Enabled = true
	cfg.Breach.Enabled = false
	if !containsCode(cfg.Lint().Codes(), "alerts_without_breach") {
		t.Error("expected alerts_without_breach warning")
	}
}

func TestLint_BySeverity(t *testing.T) {
	cfg := HighThroughputConfig()
	ws := cfg.Lint()

	medium := ws.BySeverity(LintMedium)
	if len(medium) == 0 {
		t.Fatal("expected at least one MEDIUM warning")
	}
	for _, w := range medium {
		if w.Severity < LintMedium {
			t.Errorf("BySeverity(LintMedium) returned warning with severity %s", w.Severity)
		}
	}
}

// helpers

func containsCode(codes []string, code string) bool {
	for _, c := range codes {
		if c == code {
			return true
		}
	}
	return false
}
