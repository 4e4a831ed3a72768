package transport

import "errors"

// Sentinel errors for transport producer implementations.
// These errors enable reliable error classification using errors.Is().

var (
	// ErrNotConnected indicates the producer has no active connection.
	ErrNotConnected = errors.New("transport is not connected")

	// ErrAlreadyConnected indicates the producer already has an active connection.
	ErrAlreadyConnected = errors.New("transport is already connected")

	// ErrInvalidAddress indicates the remote host or port is not usable.
	ErrInvalidAddress = errors.New("invalid remote address")
)
