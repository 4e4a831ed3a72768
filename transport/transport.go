// Package transport defines the capability surface the streaming session core
// expects from an SRT-style transport producer.
//
// The package contains no wire protocol code. Handshake, encryption, and
// congestion control belong to the producer implementation; this package
// carries the interface the session coordinator drives and the plain value
// types (statistics snapshots, connection events) that cross it.
//
// The design follows established patterns from the srtcast codebase:
// - Interface-based design for testability
// - Value types for data that crosses goroutine boundaries
// - Callbacks for asynchronous event delivery
package transport

import (
	"context"
	"time"
)

// Producer is the transport endpoint that carries an outbound media stream.
//
// Implementations wrap a concrete SRT-style connection. All methods must be
// safe for concurrent use: the session coordinator calls Stats from its
// regulation goroutine while lifecycle methods run on caller goroutines.
type Producer interface {
	// Connect establishes the transport connection to the remote ingest
	// endpoint. The stream ID and passphrase configured on the producer are
	// applied during the handshake. Blocks until connected, the context is
	// done, or the attempt fails.
	Connect(ctx context.Context, host string, port int) error

	// Disconnect closes the transport connection. The configured stream ID
	// and passphrase are retained for subsequent Connect calls.
	Disconnect() error

	// Stats returns a fresh point-in-time snapshot of the connection
	// statistics. Implementations must not return cached snapshots: each
	// call reflects the state of the link at call time.
	Stats() (Stats, error)

	// SetEventCallback registers the single connection event listener,
	// replacing any previous one. A nil callback disables delivery.
	// Events must be delivered from the producer's own goroutine, never
	// from within another Producer method invoked by the listener.
	SetEventCallback(callback func(Event))

	// StreamID returns the stream identifier applied at connect time.
	StreamID() string

	// SetStreamID updates the stream identifier used for the next handshake.
	SetStreamID(id string)

	// Passphrase returns the encryption passphrase applied at connect time.
	Passphrase() string

	// SetPassphrase updates the passphrase used for the next handshake.
	SetPassphrase(passphrase string)
}

// Stats is an immutable snapshot of transport-level send statistics.
//
// Counters are cumulative since the connection was established. Consumers
// that need per-window rates keep the previous snapshot and diff against it.
type Stats struct {
	// At is when the snapshot was taken. Successive snapshots from a live
	// connection have strictly increasing timestamps.
	At time.Time

	// RTT is the most recent round-trip time estimate for the link.
	RTT time.Duration

	// PacketsSent counts data packets handed to the link.
	PacketsSent uint64

	// PacketsRetransmitted counts packets sent again after loss was detected.
	PacketsRetransmitted uint64

	// PacketsDropped counts packets abandoned because their delivery window
	// expired before they could be (re)sent.
	PacketsDropped uint64

	// SendBufferPackets is the current occupancy of the send buffer.
	SendBufferPackets int

	// SendBufferDepth is the send buffer occupancy expressed as playback
	// time. Growth here means the sender is producing faster than the link
	// drains.
	SendBufferDepth time.Duration

	// LinkBandwidth is the estimated capacity of the link in bits per
	// second, or 0 when the producer has no estimate yet.
	LinkBandwidth uint64

	// SendRate is the current outbound rate in bits per second.
	SendRate uint64
}

// EventType classifies connection events emitted by a Producer.
type EventType int

const (
	// EventConnected indicates the transport connection was established.
	EventConnected EventType = iota
	// EventDisconnected indicates the connection was closed deliberately.
	EventDisconnected
	// EventConnectionLost indicates the connection failed unexpectedly.
	EventConnectionLost
)

// String returns a human-readable event type description.
func (et EventType) String() string {
	switch et {
	case EventConnected:
		return "connected"
	case EventDisconnected:
		return "disconnected"
	case EventConnectionLost:
		return "connection_lost"
	default:
		return "unknown"
	}
}

// Event describes a connection state change on a Producer.
//
// Events are forwarded to the session's observer exactly as the producer
// emitted them.
type Event struct {
	// Type classifies the event.
	Type EventType

	// Reason is an optional producer-supplied description.
	Reason string

	// Err carries the failure for EventConnectionLost, nil otherwise.
	Err error

	// At is when the producer observed the state change.
	At time.Time
}
