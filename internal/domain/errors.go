package domain

import "errors"

var (
	ErrNotFound       = errors.New("not found")
	ErrInvalidRequest = errors.New("invalid request")
	ErrRateLimited    = errors.New("rate limit exceeded")
	ErrShuttingDown   = errors.New("generator is shutting down")
	ErrAliasCycle     = errors.New("alias cycle detected")
)

// UserError is an input error whose message is safe to show to the requester
// verbatim.
type UserError struct {
	Message string
}

func (e *UserError) Error() string {
	return e.Message
}

func (e *UserError) Unwrap() error {
	return ErrInvalidRequest
}

// Invalid builds a UserError.
func Invalid(msg string) error {
	return &UserError{Message: msg}
}
