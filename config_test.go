package tokenward

import (
	"errors"
	"testing"
	"time"
)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Signing.Secret = []byte("0123456789abcdef0123456789abcdef")
	return cfg
}

func TestConfigValidateRules(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantValid bool
	}{
		{
			name:      "default with secret valid",
			mutate:    func(c *Config) {},
			wantValid: true,
		},
		{
			name: "secret too short",
			mutate: func(c *Config) {
				c.Signing.Secret = []byte("short")
			},
			wantValid: false,
		},
		{
			name: "unknown algorithm",
			mutate: func(c *Config) {
				c.Signing.Algorithm = Algorithm("none")
			},
			wantValid: false,
		},
		{
			name: "rs256 without key material",
			mutate: func(c *Config) {
				c.Signing.Algorithm = RS256
			},
			wantValid: false,
		},
		{
			name: "rotation enabled needs no static material",
			mutate: func(c *Config) {
				c.Signing.Secret = nil
				c.Rotation.Enabled = true
			},
			wantValid: true,
		},
		{
			name: "ttl zero",
			mutate: func(c *Config) {
				c.Tokens.TTL = 0
			},
			wantValid: false,
		},
		{
			name: "refresh ttl not above ttl",
			mutate: func(c *Config) {
				c.Tokens.RefreshTTL = c.Tokens.TTL
			},
			wantValid: false,
		},
		{
			name: "negative leeway",
			mutate: func(c *Config) {
				c.Tokens.Leeway = -time.Second
			},
			wantValid: false,
		},
		{
			name: "leeway positive valid",
			mutate: func(c *Config) {
				c.Tokens.Leeway = 30 * time.Second
			},
			wantValid: true,
		},
		{
			name: "iss required without issuer",
			mutate: func(c *Config) {
				c.Signing.Issuer = ""
			},
			wantValid: false,
		},
		{
			name: "no issuer ok when iss not required",
			mutate: func(c *Config) {
				c.Signing.Issuer = ""
				c.Tokens.RequiredClaims = []string{"iat", "exp", "nbf", "sub"}
			},
			wantValid: true,
		},
		{
			name: "rotation interval zero",
			mutate: func(c *Config) {
				c.Rotation.Enabled = true
				c.Rotation.Interval = 0
			},
			wantValid: false,
		},
		{
			name: "rotation grace zero",
			mutate: func(c *Config) {
				c.Rotation.Enabled = true
				c.Rotation.GracePeriod = 0
			},
			wantValid: false,
		},
		{
			name: "rotation key strength below 256",
			mutate: func(c *Config) {
				c.Rotation.Enabled = true
				c.Rotation.KeyStrength = 128
			},
			wantValid: false,
		},
		{
			name: "rotation key strength not byte aligned",
			mutate: func(c *Config) {
				c.Rotation.Enabled = true
				c.Rotation.KeyStrength = 260
			},
			wantValid: false,
		},
		{
			name: "rotation unsupported algorithm",
			mutate: func(c *Config) {
				c.Rotation.Enabled = true
				c.Rotation.Algorithms = []Algorithm{"PS256"}
			},
			wantValid: false,
		},
		{
			name: "negative max refresh count",
			mutate: func(c *Config) {
				c.Refresh.MaxRefreshCount = -1
			},
			wantValid: false,
		},
		{
			name: "negative blacklist grace",
			mutate: func(c *Config) {
				c.Blacklist.GracePeriod = -time.Second
			},
			wantValid: false,
		},
		{
			name: "breach threshold zero",
			mutate: func(c *Config) {
				c.Breach.FailedAuthThreshold = 0
			},
			wantValid: false,
		},
		{
			name: "breach window zero",
			mutate: func(c *Config) {
				c.Breach.IPRequestWindow = 0
			},
			wantValid: false,
		},
		{
			name: "breach disabled skips breach checks",
			mutate: func(c *Config) {
				c.Breach.Enabled = false
				c.Breach.FailedAuthThreshold = 0
			},
			wantValid: true,
		},
		{
			name: "negative alert buffer",
			mutate: func(c *Config) {
				c.Alerts.Enabled = true
				c.Alerts.BufferSize = -1
			},
			wantValid: false,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := testConfig()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if tc.wantValid && err != nil {
				t.Fatalf("expected valid config, got %v", err)
			}
			if !tc.wantValid && err == nil {
				t.Fatal("expected invalid config, got nil")
			}
		})
	}
}

func TestConfigValidateErrorShape(t *testing.T) {
	cfg := testConfig()
	cfg.Tokens.TTL = 0

	err := cfg.Validate()
	var cerr *ConfigurationError
	if !errors.As(err, &cerr) {
		t.Fatalf("expected *ConfigurationError, got %T", err)
	}
	if cerr.Field != "Tokens.TTL" {
		t.Fatalf("expected field Tokens.TTL, got %q", cerr.Field)
	}
	if ErrorCode(err) != CodeConfiguration {
		t.Fatalf("expected code %q, got %q", CodeConfiguration, ErrorCode(err))
	}
}

func TestConfigCloneIsolation(t *testing.T) {
	cfg := testConfig()
	cfg.Tokens.RequiredClaims = []string{"iss", "exp"}

	clone := cloneConfig(cfg)
	clone.Signing.Secret[0] = 'x'
	clone.Tokens.RequiredClaims[0] = "sub"

	if cfg.Signing.Secret[0] == 'x' {
		t.Fatal("clone shares secret backing array")
	}
	if cfg.Tokens.RequiredClaims[0] != "iss" {
		t.Fatal("clone shares required-claims backing array")
	}
}
