package scriptport

import (
	"errors"
	"fmt"
)

// Error types for specific failure scenarios
var (
	// ErrInvalidConfig indicates invalid configuration options
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrNotListening indicates the server is not accepting connections
	ErrNotListening = errors.New("server is not listening")

	// ErrStopped indicates the server has been stopped and cannot be reused
	ErrStopped = errors.New("server is stopped")
)

// BindError represents a failure to bind the listening socket
type BindError struct {
	Addr string
	Err  error
}

// Error implements the error interface
func (e *BindError) Error() string {
	return fmt.Sprintf("bind error on %s: %v", e.Addr, e.Err)
}

// Unwrap returns the wrapped error
func (e *BindError) Unwrap() error {
	return e.Err
}
