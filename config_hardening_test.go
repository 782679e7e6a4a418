package tokenward

import (
	"context"
	"strings"
	"testing"
	"time"
)

func TestConfigValidateRejectsShortHS256Secret(t *testing.T) {
	cfg := testConfig()
	cfg.Signing.Secret = []byte("weak-key")

	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "32 bytes") {
		t.Fatalf("expected weak HS256 secret rejection, got %v", err)
	}
}

func TestConfigValidateRotationSkipsStaticKeyChecks(t *testing.T) {
	cfg := testConfig()
	cfg.Signing.Secret = nil
	cfg.Rotation.Enabled = true

	if err := cfg.Validate(); err != nil {
		t.Fatalf("rotation-managed config should not require static material, got %v", err)
	}
}

func TestBuildConfigImmutabilityAgainstExternalMutation(t *testing.T) {
	_, rdb := newTestRedis(t)
	cfg := testConfig()

	engine, err := New().WithConfig(cfg).WithRedis(rdb).Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)

	before := engine.config.Signing.Secret[0]
	cfg.Signing.Secret[0] = 'X'

	if engine.config.Signing.Secret[0] != before {
		t.Fatal("engine config secret mutated from external config after build")
	}
}

func TestSecurityReportReflectsPosture(t *testing.T) {
	_, rdb := newTestRedis(t)
	cfg := testConfig()
	cfg.Refresh.MaxRefreshCount = 10
	cfg.Alerts.Enabled = true

	engine, err := New().WithConfig(cfg).WithRedis(rdb).WithAlertSink(NoOpSink{}).Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)

	report := engine.SecurityReport(context.Background())
	if report.SigningAlgorithm != HS256 {
		t.Fatalf("expected HS256 in report, got %s", report.SigningAlgorithm)
	}
	if report.KeyRotationEnabled {
		t.Fatal("expected key rotation disabled in report")
	}
	if !report.RefreshRotationEnabled || report.MaxRefreshCount != 10 {
		t.Fatalf("expected bounded refresh rotation in report, got enabled=%v count=%d",
			report.RefreshRotationEnabled, report.MaxRefreshCount)
	}
	if !report.BlacklistEnabled || !report.BreachDetectionEnabled || !report.AutoBlockEnabled {
		t.Fatal("expected blacklist, breach detection and auto-block active in report")
	}
	if !report.AlertPipelineEnabled {
		t.Fatal("expected alert pipeline active in report")
	}
	if report.AccessTTL != 15*time.Minute {
		t.Fatalf("expected 15m access TTL in report, got %s", report.AccessTTL)
	}
	if report.CurrentThreat.Level != SeverityLow {
		t.Fatalf("quiet engine should report a low threat level, got %q", report.CurrentThreat.Level)
	}
}

func TestBuilderRequiresCacheBackend(t *testing.T) {
	_, err := New().WithConfig(testConfig()).Build()
	if err == nil || !strings.Contains(err.Error(), "redis client or cache store") {
		t.Fatalf("expected cache backend requirement error, got %v", err)
	}
}

func TestBuilderIsSingleUse(t *testing.T) {
	_, rdb := newTestRedis(t)
	b := New().WithConfig(testConfig()).WithRedis(rdb)

	engine, err := b.Build()
	if err != nil {
		t.Fatalf("first Build failed: %v", err)
	}
	t.Cleanup(engine.Close)
	if _, err := b.Build(); err == nil || !strings.Contains(err.Error(), "already used") {
		t.Fatalf("expected single-use builder rejection, got %v", err)
	}
}
