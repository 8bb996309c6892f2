package service

import "errors"

// ErrForbidden means the target exists but the actor is neither its owner nor
// an admin. Missing targets are always reported as not-found first, so this
// error never leaks existence information.
var ErrForbidden = errors.New("access denied")

// ValidationError marks malformed caller input. Handlers surface its message
// as a 400 response; it never wraps internal failures.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

func invalidInput(msg string) error {
	return &ValidationError{Msg: msg}
}

// IsValidation reports whether err is caller input rejection.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
