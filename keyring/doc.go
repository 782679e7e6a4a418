// Package keyring owns signing-key lifecycle: generation, automatic and
// manual rotation, grace-period verification windows, and history pruning.
//
// Per algorithm the keyring keeps one state document in the shared cache:
// the current signing key plus a bounded history of predecessors. A key is
// active until expires_at (signing + verification), then in grace until
// grace_expires_at (verification only), then gone. Publication of a new
// current key goes through a compare-and-swap on the raw state bytes, so
// two nodes racing an empty or expired keyring can never both win; the
// loser adopts the winner's key.
//
// Verification reads degrade fail-open: when the cache is unreachable the
// keyring serves the last key set it successfully loaded, because
// rejecting every token over a cache blip is worse than verifying against
// a marginally stale set.
//
// What this package must NOT do: encode or validate tokens (jwt package),
// or decide which algorithm a deployment uses (configuration).
package keyring
