package keyring

import (
	"fmt"

	"github.com/wardenlabs/tokenward/jwt"
)

// CodeKeyError is the stable machine-readable code for KeyError.
const CodeKeyError = "key_error"

// KeyError reports a keyring operation failure. Fatal marks conditions
// that must not be retried, such as key-generation failure from the
// system's entropy source.
type KeyError struct {
	Op        string
	Algorithm jwt.Algorithm
	Fatal     bool
	Err       error
}

func (e *KeyError) Error() string {
	if e.Fatal {
		return fmt.Sprintf("keyring %s (%s) failed fatally: %v", e.Op, e.Algorithm, e.Err)
	}
	return fmt.Sprintf("keyring %s (%s) failed: %v", e.Op, e.Algorithm, e.Err)
}

func (e *KeyError) Unwrap() error { return e.Err }

func (e *KeyError) Code() string { return CodeKeyError }
