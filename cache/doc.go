// Package cache provides the shared key-value store abstraction used by the
// key ring, refresh-family tracking, breach detection, and the token
// blacklist, plus its Redis implementation.
//
// # Store contract
//
// [Store] is a narrow get/put(ttl)/has/forget surface with per-key
// expiration. Values are opaque byte slices; callers own their encoding.
// [AtomicStore] extends it with a compare-and-swap primitive for the few
// writers (signing-key publication, refresh-family rotation) that cannot
// tolerate lost updates.
//
// # What this package must NOT do
//
//   - Interpret stored values or token semantics.
//   - Import any other tokenward package (leaf package, no upward imports).
package cache
