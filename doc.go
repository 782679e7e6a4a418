// Package tokenward is a stateless JWT lifecycle engine: claims modeling,
// token encoding and decoding with pluggable signature algorithms,
// type-aware validation, refresh-token rotation with family theft
// detection, automatic signing-key rotation with grace periods, and
// sliding-window breach detection with automatic blocking.
//
// The package is designed for concurrent server workloads: Engine methods
// are safe to call from multiple goroutines after initialization through
// [Builder.Build].
//
// # Architecture boundaries
//
// tokenward is the public surface. It exposes [Engine], [Builder],
// [Config], and value types (TokenPair, IntrospectionResult,
// MetricsSnapshot, SecurityAlert, etc.). Each subsystem lives in its own
// subpackage — claims, jwt, keyring, refresh, breach, blacklist, cache —
// and is usable on its own; the root package is orchestration-only glue.
//
// # What this package must NOT do
//
//   - Expose Redis clients, raw cache keys, or wire encodings in its
//     public API beyond the cache.Store abstraction.
//   - Perform I/O during construction (Builder is allocation-only until
//     the first Engine operation).
//   - Persist issued tokens. Tokens are stateless; only revocations,
//     refresh families, signing keys and breach windows touch the cache.
//
// # Performance contract
//
// Validate is the hot path. With a static signing key it completes
// without a cache round trip unless the blacklist is enabled; with
// rotation enabled it costs at most one cache read, served from the
// fail-open snapshot when the cache is down. Refresh and key rotation are
// allowed one compare-and-swap cycle per call.
package tokenward
