// Package claims models the JWT claim set: a typed container with
// per-claim validation on write, audience normalization, and the exact
// timing comparisons the rest of the engine depends on.
//
// # Timing semantics
//
// A claim set is expired iff now - leeway >= exp, and not yet valid iff
// now + leeway < nbf, with all values in whole Unix seconds. Both
// comparisons are boundary-sensitive and must not be "simplified"; the
// expiry boundary is inclusive, the not-before boundary exclusive.
//
// # Architecture boundaries
//
// This package owns claim storage and claim-level validation only. It does
// not parse tokens, verify signatures, or know about token types — those
// belong to the jwt package.
package claims
