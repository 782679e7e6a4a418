package jwt

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/wardenlabs/tokenward/claims"
)

// Header is the JOSE header of an issued token. Tokens from this module
// always carry typ JWT, the signing algorithm, and the signing key's id.
type Header struct {
	Typ string `json:"typ"`
	Alg string `json:"alg"`
	KID string `json:"kid,omitempty"`
}

// Encode signs a claim set with key and returns the compact three-segment
// token. The key's algorithm selects the signature primitive; unsupported
// algorithms and mismatched key material fail before any signing happens.
func Encode(c claims.Claims, key Key) (string, error) {
	if !key.Algorithm.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedAlgorithm, string(key.Algorithm))
	}
	material, err := key.signMaterial()
	if err != nil {
		return "", err
	}

	headerJSON, err := json.Marshal(Header{Typ: "JWT", Alg: string(key.Algorithm), KID: key.ID})
	if err != nil {
		return "", fmt.Errorf("encoding header: %w", err)
	}
	claimsJSON, err := json.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("encoding claims: %w", err)
	}

	signingInput := base64.RawURLEncoding.EncodeToString(headerJSON) +
		"." + base64.RawURLEncoding.EncodeToString(claimsJSON)

	sig, err := key.Algorithm.sign(signingInput, material)
	if err != nil {
		return "", &SignatureError{Op: "sign", KeyID: key.ID, Err: err}
	}
	return signingInput + "." + base64.RawURLEncoding.EncodeToString(sig), nil
}
