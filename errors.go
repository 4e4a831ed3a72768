package srtcast

import (
	"errors"
	"fmt"
)

// Common errors for session lifecycle operations
var (
	// ErrNotConnected indicates an operation that requires a connection was
	// called while the session has none
	ErrNotConnected = errors.New("session is not connected")

	// ErrInvalidState indicates the session is not in a state that permits
	// the requested operation
	ErrInvalidState = errors.New("operation not permitted in current session state")

	// ErrNilProducer indicates no transport producer was configured
	ErrNilProducer = errors.New("transport producer cannot be nil")

	// ErrNilPipeline indicates no media pipeline was configured
	ErrNilPipeline = errors.New("media pipeline cannot be nil")

	// ErrRegulatorConfig indicates the regulator factory and configuration
	// were not supplied together
	ErrRegulatorConfig = errors.New("regulator factory and config must both be set or both be absent")
)

// ConnectionError represents a failed transport connection attempt with
// additional context
type ConnectionError struct {
	Op   string // operation that caused the error
	Addr string // remote address if relevant
	Err  error  // underlying error
}

func (e *ConnectionError) Error() string {
	if e.Addr != "" {
		return fmt.Sprintf("srtcast %s %s: %v", e.Op, e.Addr, e.Err)
	}
	return fmt.Sprintf("srtcast %s: %v", e.Op, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// newConnectionError creates a new ConnectionError
func newConnectionError(op, addr string, err error) *ConnectionError {
	return &ConnectionError{
		Op:   op,
		Addr: addr,
		Err:  err,
	}
}
