// Package jwt implements the token codec: signing-algorithm registry,
// encoder, decoder with multi-key verification, and the type-aware
// validator used by every token purpose (auth, api, refresh, session,
// password_reset, email_verification).
//
// Verification tries every candidate key whose declared algorithm matches
// the token header; a kid match only reorders candidates, it never filters
// them. A key whose algorithm differs from the header is rejected before
// any cryptography runs, so an attacker cannot steer verification onto the
// wrong primitive by editing the header.
package jwt
