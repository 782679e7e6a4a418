package refresh

import (
	"errors"
	"fmt"
)

// CodeReplay is the stable machine-readable code carried by every replay
// rejection, regardless of reason.
const CodeReplay = "token_replay"

// ReplayReason pins down which family rule the presented token broke.
type ReplayReason string

const (
	// ReasonReuse marks a token whose jti was rotated away and presented
	// again past the overlap window. This is the family-theft signal.
	ReasonReuse ReplayReason = "reuse"

	// ReasonExhausted marks a family that hit its rotation ceiling.
	ReasonExhausted ReplayReason = "exhausted"

	// ReasonRevoked marks any member of a family already revoked after an
	// earlier reuse.
	ReasonRevoked ReplayReason = "revoked"
)

// ErrReplay matches every [ReplayError] via errors.Is.
var ErrReplay = errors.New("refresh token replay")

// ReplayError rejects a refresh because the presented token violates its
// family's rotation state.
type ReplayError struct {
	Reason   ReplayReason
	FamilyID string
	TokenID  string
}

func (e *ReplayError) Error() string {
	switch e.Reason {
	case ReasonExhausted:
		return fmt.Sprintf("refresh token family %s exhausted its rotation limit", e.FamilyID)
	case ReasonRevoked:
		return fmt.Sprintf("refresh token family %s is revoked", e.FamilyID)
	default:
		return fmt.Sprintf("refresh token %s was already rotated away", e.TokenID)
	}
}

func (e *ReplayError) Is(target error) bool { return target == ErrReplay }

// Code returns the stable machine-readable code for this error.
func (e *ReplayError) Code() string { return CodeReplay }
