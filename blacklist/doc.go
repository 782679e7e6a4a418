// Package blacklist revokes individual tokens by jti ahead of their
// natural expiry. A freshly blacklisted token stays acceptable for a
// configurable grace period so requests already in flight do not fail
// mid-journey; after the grace it is rejected until the token would have
// expired anyway, at which point the record lapses with its TTL.
package blacklist
