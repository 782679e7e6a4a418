package keyring

import (
	"time"

	"github.com/wardenlabs/tokenward/jwt"
)

// SigningKey is one generation of key material with its lifecycle window.
// Invariant: CreatedAt < ExpiresAt < GraceExpiresAt. Secret carries HMAC
// material; asymmetric keys carry PEM pairs instead. The struct is stored
// as JSON inside the per-algorithm state document.
type SigningKey struct {
	ID             string        `json:"id"`
	Algorithm      jwt.Algorithm `json:"algorithm"`
	Secret         []byte        `json:"secret,omitempty"`
	PrivateKeyPEM  []byte        `json:"private_key_pem,omitempty"`
	PublicKeyPEM   []byte        `json:"public_key_pem,omitempty"`
	CreatedAt      time.Time     `json:"created_at"`
	ExpiresAt      time.Time     `json:"expires_at"`
	GraceExpiresAt time.Time     `json:"grace_expires_at"`
}

// Active reports whether the key may still sign new tokens.
func (k *SigningKey) Active(now time.Time) bool {
	return now.Before(k.ExpiresAt)
}

// InGrace reports whether the key is past signing but still verifies.
func (k *SigningKey) InGrace(now time.Time) bool {
	return !now.Before(k.ExpiresAt) && now.Before(k.GraceExpiresAt)
}

// Usable reports whether the key still participates in verification,
// either active or in grace.
func (k *SigningKey) Usable(now time.Time) bool {
	return now.Before(k.GraceExpiresAt)
}

// Material converts the stored key into codec form, parsing PEM for
// asymmetric algorithms.
func (k *SigningKey) Material() (jwt.Key, error) {
	if k.Algorithm == jwt.HS256 {
		return jwt.NewHMACKey(k.ID, k.Secret), nil
	}
	return jwt.KeyFromPEM(k.ID, k.Algorithm, k.PrivateKeyPEM, k.PublicKeyPEM)
}

// keyState is the cached per-algorithm document: the current key plus its
// predecessors, oldest first.
type keyState struct {
	Current *SigningKey  `json:"current"`
	History []SigningKey `json:"history,omitempty"`
}

// prune drops history entries past grace and caps the history length,
// discarding oldest first. Runs on every state write.
func (s *keyState) prune(now time.Time, maxKeys int) {
	kept := s.History[:0]
	for _, k := range s.History {
		if k.Usable(now) {
			kept = append(kept, k)
		}
	}
	s.History = kept
	if maxKeys > 0 && len(s.History) > maxKeys {
		s.History = s.History[len(s.History)-maxKeys:]
	}
}

// usableKeys returns current-first verification material for the state.
func (s *keyState) usableKeys(now time.Time) []SigningKey {
	out := make([]SigningKey, 0, 1+len(s.History))
	if s.Current != nil && s.Current.Usable(now) {
		out = append(out, *s.Current)
	}
	for i := len(s.History) - 1; i >= 0; i-- {
		if s.History[i].Usable(now) {
			out = append(out, s.History[i])
		}
	}
	return out
}
