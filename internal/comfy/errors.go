package comfy

import (
	"errors"
	"fmt"
)

var (
	// ErrTimeout is returned when a submitted job never produced output
	// within the allowed tracking rounds.
	ErrTimeout = errors.New("comfy: timed out waiting for output")
	// ErrNoImages means the backend finished the job without any images.
	ErrNoImages = errors.New("comfy: job finished without images")
)

// BackendError is a structured error reported by the backend itself. Message
// is shown to users as is.
type BackendError struct {
	Message string
	Details string
}

func (e *BackendError) Error() string {
	if e.Details == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Message, e.Details)
}

// DecodeError is returned when a backend response could not be understood.
type DecodeError struct {
	Op  string
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("comfy: decode %s: %v", e.Op, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}
