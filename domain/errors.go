package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrAlreadyInitialized is returned by a second call to RunOnce.
	ErrAlreadyInitialized = errors.New("domain has already been initialized")

	// ErrNotInitialized is returned for work submitted before RunOnce has succeeded.
	ErrNotInitialized = errors.New("domain has not been initialized")

	// ErrWorkExited means that submitted work stopped its goroutine with runtime.Goexit, as
	// testing.T.FailNow does, instead of returning.
	ErrWorkExited = errors.New("work exited without returning")

	// ErrClosed is returned for calls made after Close.
	ErrClosed = errors.New("domain has been closed")
)

// PanicError is returned when submitted work panics.
type PanicError struct {
	Value interface{}
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("work panicked: %v", e.Value)
}

// Unwrap returns the panic value if it is an error.
func (e *PanicError) Unwrap() error {
	err, _ := e.Value.(error)
	return err
}
