// Package session owns the connection lifecycle of the messaging session:
// a small state machine driven by commands, timer firings and transport
// events, processed one at a time by a single controller goroutine.
package session

import "context"

// DisconnectReason classifies why a transport connection closed.
type DisconnectReason uint8

const (
	// ReasonOther covers every non-terminal disconnect: network drops,
	// server restarts, stream replacement. These are candidates for an
	// automatic reconnect.
	ReasonOther DisconnectReason = iota

	// ReasonLoggedOut means the device was unlinked remotely. No
	// reconnect is attempted; the operator has to pair again.
	ReasonLoggedOut
)

// String returns the reason name used in log lines.
func (r DisconnectReason) String() string {
	switch r {
	case ReasonLoggedOut:
		return "logged-out"
	default:
		return "other"
	}
}

// Transport is the opaque session capability the controller drives. One
// instance corresponds to one connection attempt; after a disconnect a
// fresh instance is created rather than reusing the old one.
type Transport interface {
	// Connect establishes the underlying connection. Success is
	// reported asynchronously through the EventSink, not by this
	// returning nil.
	Connect(ctx context.Context) error

	// SendMessage delivers a text message to the recipient.
	SendMessage(ctx context.Context, recipient, text string) error

	// Disconnect tears the connection down without destroying the
	// stored credentials, so the next Connect does not need pairing.
	Disconnect()
}

// EventSink receives connection events from a transport instance. Every
// event carries the generation of the instance that produced it so the
// controller can drop events from superseded instances.
type EventSink interface {
	// ConnectionOpened signals that the transport is connected and
	// authenticated.
	ConnectionOpened(gen uint64)

	// ConnectionClosed signals that the connection dropped, with the
	// reason distinguishing terminal logout from everything else.
	ConnectionClosed(gen uint64, reason DisconnectReason)

	// CredentialsUpdated signals that the stored credentials changed.
	CredentialsUpdated(gen uint64)
}

// TransportFactory creates a fresh transport instance that reports its
// events, tagged with gen, into the given sink.
type TransportFactory func(gen uint64, sink EventSink) (Transport, error)
