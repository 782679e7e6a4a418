package tokenward

import (
	"github.com/juju/clock"
	"github.com/redis/go-redis/v9"

	"github.com/wardenlabs/tokenward/blacklist"
	"github.com/wardenlabs/tokenward/breach"
	"github.com/wardenlabs/tokenward/cache"
	"github.com/wardenlabs/tokenward/jwt"
	"github.com/wardenlabs/tokenward/keyring"
	"github.com/wardenlabs/tokenward/refresh"
)

// Builder assembles an Engine. Construction is allocation-only; the first
// cache round trip happens on the first Engine operation, not in Build.
type Builder struct {
	config Config
	redis  redis.UniversalClient
	store  cache.AtomicStore

	clock clock.Clock
	sink  AlertSink

	built bool
}

// New starts a builder on DefaultConfig.
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

// WithConfig replaces the builder's configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis supplies the Redis client backing the shared cache.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithStore supplies a cache store directly, bypassing Redis. Takes
// precedence over WithRedis.
func (b *Builder) WithStore(store cache.AtomicStore) *Builder {
	b.store = store
	return b
}

// WithClock substitutes the time source. Tests pass a testclock; the
// default is the wall clock.
func (b *Builder) WithClock(clk clock.Clock) *Builder {
	b.clock = clk
	return b
}

// WithAlertSink supplies the sink the alert dispatcher delivers to.
func (b *Builder) WithAlertSink(sink AlertSink) *Builder {
	b.sink = sink
	return b
}

// WithMetricsEnabled toggles counter recording.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms toggles the validate-latency histogram.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and wires every subsystem. A builder
// is single-use.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, &ConfigurationError{Reason: "builder already used"}
	}

	cfg := cloneConfig(b.config)

	store := b.store
	if store == nil {
		if b.redis == nil {
			return nil, &ConfigurationError{Field: "Cache",
				Reason: "a redis client or cache store is required"}
		}
		store = cache.NewRedisStore(b.redis, cfg.Cache.KeyPrefix)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	clk := b.clock
	if clk == nil {
		clk = clock.WallClock
	}

	metrics := NewMetrics(cfg.Metrics)
	dispatcher := newAlertDispatcher(cfg.Alerts, b.sink)
	degraded := func(string) { metrics.Inc(MetricDegradedOps) }

	engine := &Engine{
		config:  cfg,
		store:   store,
		clock:   clk,
		metrics: metrics,
		alerts:  dispatcher,
	}

	// -------- KEY MATERIAL --------
	var keySource jwt.KeySource
	var signer refresh.KeyProvider

	if cfg.Rotation.Enabled {
		algorithms := cfg.Rotation.Algorithms
		if len(algorithms) == 0 {
			algorithms = []Algorithm{cfg.Signing.Algorithm}
		}
		kr, err := keyring.NewManager(keyring.Config{
			Store:            store,
			Clock:            clk,
			Algorithms:       algorithms,
			RotationInterval: cfg.Rotation.Interval,
			GracePeriod:      cfg.Rotation.GracePeriod,
			MaxKeys:          cfg.Rotation.MaxKeys,
			AutoRotation:     cfg.Rotation.AutoRotation,
			KeyStrength:      cfg.Rotation.KeyStrength,
			OnDegraded:       degraded,
			OnRotated:        func(jwt.Algorithm) { metrics.Inc(MetricKeyRotations) },
		})
		if err != nil {
			return nil, err
		}
		engine.keyring = kr
		keySource = kr
		signer = kr
	} else {
		key, err := staticKey(cfg.Signing)
		if err != nil {
			return nil, err
		}
		keySource = jwt.StaticKeys{key}
		signer = refresh.StaticKey(key)
	}
	engine.keys = signer
	engine.verification = keySource

	// -------- BLACKLIST --------
	if cfg.Blacklist.Enabled {
		bl, err := blacklist.New(store, clk, cfg.Blacklist.GracePeriod)
		if err != nil {
			return nil, err
		}
		engine.blacklist = bl
	}

	// -------- VALIDATOR --------
	vcfg := jwt.ValidatorConfig{
		Keys:           keySource,
		Clock:          clk,
		Leeway:         cfg.Tokens.Leeway,
		RequiredClaims: cfg.Tokens.RequiredClaims,
		Issuer:         cfg.Signing.Issuer,
		Audience:       cfg.Signing.Audience,
	}
	if engine.blacklist != nil {
		vcfg.Revocations = engine.blacklist
	}
	validator, err := jwt.NewValidator(vcfg)
	if err != nil {
		return nil, err
	}
	engine.validator = validator

	// -------- BREACH DETECTION --------
	if cfg.Breach.Enabled {
		bcfg := breach.Config{
			Store:               store,
			Clock:               clk,
			FailedAuthThreshold: cfg.Breach.FailedAuthThreshold,
			FailedAuthWindow:    cfg.Breach.FailedAuthWindow,
			IPRequestThreshold:  cfg.Breach.IPRequestThreshold,
			IPRequestWindow:     cfg.Breach.IPRequestWindow,
			TokenReuseThreshold: cfg.Breach.TokenReuseThreshold,
			TokenReuseWindow:    cfg.Breach.TokenReuseWindow,
			AutoBlockEnabled:    cfg.Breach.AutoBlockEnabled,
			BlockIPDuration:     cfg.Breach.BlockIPDuration,
			BlockUserDuration:   cfg.Breach.BlockUserDuration,
			AlertRetention:      cfg.Breach.AlertRetention,
			OnDegraded:          degraded,
			Sink:                engine.countingSink(),
		}
		bm, err := breach.NewManager(bcfg)
		if err != nil {
			return nil, err
		}
		engine.breach = bm
	}

	// -------- REFRESH ROTATION --------
	rcfg := refresh.Config{
		Store:           store,
		Keys:            signer,
		Validator:       validator,
		Clock:           clk,
		AccessTTL:       cfg.Tokens.TTL,
		RefreshTTL:      cfg.Tokens.RefreshTTL,
		MaxRefreshCount: cfg.Refresh.MaxRefreshCount,
		RotationOverlap: cfg.Refresh.RotationOverlap,
		DisableRotation: cfg.Refresh.DisableRotation,
		Issuer:          cfg.Signing.Issuer,
		OnDegraded:      degraded,
	}
	if cfg.Signing.Audience != "" {
		rcfg.Audience = []string{cfg.Signing.Audience}
	}
	if engine.breach != nil {
		rcfg.Usage = engine.breach
	}
	rm, err := refresh.NewManager(rcfg)
	if err != nil {
		return nil, err
	}
	engine.refresh = rm

	b.built = true

	return engine, nil
}

// staticKey materializes the fixed signing key configured for
// rotation-less operation.
func staticKey(sc SigningConfig) (jwt.Key, error) {
	if sc.Algorithm == HS256 {
		return jwt.NewHMACKey(sc.KeyID, cloneBytes(sc.Secret)), nil
	}
	key, err := jwt.KeyFromPEM(sc.KeyID, sc.Algorithm, sc.PrivateKeyPEM, sc.PublicKeyPEM)
	if err != nil {
		return jwt.Key{}, &ConfigurationError{Field: "Signing", Reason: err.Error()}
	}
	return key, nil
}
