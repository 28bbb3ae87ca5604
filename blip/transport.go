package blip

// Transport is the bidirectional binary message channel an Engine runs
// over. A single Frame written by Send must arrive at the peer's Receive
// as one complete, unmodified binary message; BLIP does not depend on any
// ordering guarantee beyond "messages arrive in the order they were
// sent", which a WebSocket connection already provides.
type Transport interface {
	// Send writes one binary message. It must not be called concurrently
	// with another Send on the same Transport.
	Send(frame []byte) error

	// Receive blocks until the next binary message arrives, or the
	// transport is closed.
	Receive() ([]byte, error)

	// Close closes the transport from this side.
	Close() error
}
