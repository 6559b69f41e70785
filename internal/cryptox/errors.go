package cryptox

import "errors"

// ErrDecryption is the only thing a remote caller should ever learn about a
// failed decryption. DecryptionError matches it with errors.Is.
var ErrDecryption = errors.New("decryption failed")

// FailureKind tells which step of the hybrid scheme rejected the input.
// It is meant for diagnostics and must not be sent over the wire.
type FailureKind int

const (
	MalformedEncoding FailureKind = iota + 1
	KeyRecoveryFailed
	AuthenticationFailed
)

func (k FailureKind) String() string {
	switch k {
	case MalformedEncoding:
		return "malformed_encoding"
	case KeyRecoveryFailed:
		return "key_recovery_failed"
	case AuthenticationFailed:
		return "authentication_failed"
	default:
		return "unknown"
	}
}

// DecryptionError is returned by Manager.Open and Manager.Decrypt.
type DecryptionError struct {
	Kind FailureKind
	Err  error
}

func (e *DecryptionError) Error() string {
	return ErrDecryption.Error() + ": " + e.Kind.String()
}

func (e *DecryptionError) Unwrap() error { return e.Err }

func (e *DecryptionError) Is(target error) bool { return target == ErrDecryption }

func fail(kind FailureKind, err error) error {
	return &DecryptionError{Kind: kind, Err: err}
}

// KindOf extracts the failure kind from err, or 0 if err is not a DecryptionError.
func KindOf(err error) FailureKind {
	var de *DecryptionError
	if errors.As(err, &de) {
		return de.Kind
	}
	return 0
}
