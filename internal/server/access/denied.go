package access

import (
	"errors"
	"fmt"
)

// Reason tags why a request was refused.
type Reason int

const (
	TokenInvalid Reason = iota + 1
	TokenExpired
	SubjectMismatch
	IdentityNotFound
	OriginNotWhitelisted
)

func (r Reason) String() string {
	switch r {
	case TokenInvalid:
		return "token_invalid"
	case TokenExpired:
		return "token_expired"
	case SubjectMismatch:
		return "subject_mismatch"
	case IdentityNotFound:
		return "identity_not_found"
	case OriginNotWhitelisted:
		return "origin_not_whitelisted"
	default:
		return fmt.Sprintf("reason(%d)", int(r))
	}
}

// ErrDenied matches every DeniedError via errors.Is.
var ErrDenied = errors.New("access denied")

type DeniedError struct {
	Reason Reason
}

func (e *DeniedError) Error() string { return "access denied: " + e.Reason.String() }

func (e *DeniedError) Is(target error) bool { return target == ErrDenied }

func deny(r Reason) error { return &DeniedError{Reason: r} }

// ReasonOf extracts the denial reason from err.
func ReasonOf(err error) (Reason, bool) {
	var de *DeniedError
	if errors.As(err, &de) {
		return de.Reason, true
	}
	return 0, false
}
