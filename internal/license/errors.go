package license

import "errors"

// Kinds of verification failure. Match them with errors.Is against the
// *Error returned by Verify.
var (
	ErrEmptySerial   = errors.New("serial is empty")
	ErrNetwork       = errors.New("network error contacting license server")
	ErrInvalidJSON   = errors.New("license server returned invalid JSON")
	ErrRejected      = errors.New("serial rejected")
	ErrMissingExpiry = errors.New("missing expiry in license response")
	ErrInvalidExpiry = errors.New("invalid expiry format")
	ErrExpired       = errors.New("serial expired")
)

// Error is the single failure type surfaced by the checker.
type Error struct {
	Kind    error
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Kind != nil {
		return e.Kind.Error()
	}
	return "license error"
}

// Unwrap returns the underlying cause, if any.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is the kind of this error.
func (e *Error) Is(target error) bool {
	return e.Kind != nil && target == e.Kind
}

func newError(kind error, message string, cause error) *Error {
	if message == "" {
		message = kind.Error()
	}
	return &Error{Kind: kind, Message: message, Err: cause}
}
