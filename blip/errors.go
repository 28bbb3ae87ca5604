package blip

import (
	"errors"
	"fmt"
)

// ProtocolError indicates malformed or out-of-sequence wire data. The
// engine treats it as fatal for the connection: the receive loop closes
// the transport and exits.
type ProtocolError struct {
	Msg string
}

func (e *ProtocolError) Error() string { return "blip: protocol error: " + e.Msg }

func newProtocolError(format string, args ...any) *ProtocolError {
	return &ProtocolError{Msg: fmt.Sprintf(format, args...)}
}

// Sentinel ProtocolErrors for the specific conditions called out in the
// specification; errors.Is matches against these.
var (
	ErrTruncatedVarint         = &ProtocolError{Msg: "truncated varint"}
	ErrInconsistentMessageType = &ProtocolError{Msg: "inconsistent message type"}
	ErrIncompleteProperties    = &ProtocolError{Msg: "incomplete properties"}
	ErrDuplicateMessageNumber  = &ProtocolError{Msg: "duplicate message number"}
	ErrMessageNumberOutOfOrder = &ProtocolError{Msg: "message number out of order"}
	ErrUnknownResponseNumber   = &ProtocolError{Msg: "unknown response number"}
)

// ChecksumMismatchError is returned when a frame's trailing CRC-32 does
// not match the plaintext actually received. Fatal, like ProtocolError.
type ChecksumMismatchError struct {
	Want, Got uint32
}

func (e *ChecksumMismatchError) Error() string {
	return fmt.Sprintf("blip: checksum mismatch: want %08x, got %08x", e.Want, e.Got)
}

// CodecError wraps a failure from the underlying compression codec.
type CodecError struct {
	Err error
}

func (e *CodecError) Error() string { return "blip: codec error: " + e.Err.Error() }
func (e *CodecError) Unwrap() error { return e.Err }

// LocalAssertionError indicates programmer misuse of the API: setting a
// property containing a NUL byte, sending a message twice, and the like.
// These never leave the process in a partially-updated state.
type LocalAssertionError struct {
	Msg string
}

func (e *LocalAssertionError) Error() string { return "blip: assertion failed: " + e.Msg }

// ErrDisconnected is the synthetic error delivered to every pending
// response awaiter when the transport drops or the engine is closed
// while requests are outstanding.
var ErrDisconnected = errors.New("blip: disconnected")

// IsFatal reports whether err should cause the receive loop to close the
// transport and stop, per the propagation policy in the specification:
// protocol and codec errors are fatal, handler errors are not.
func IsFatal(err error) bool {
	var pe *ProtocolError
	var ce *ChecksumMismatchError
	var coe *CodecError
	return errors.As(err, &pe) || errors.As(err, &ce) || errors.As(err, &coe)
}
