package blip

// MessageType is the 3-bit message kind carried in the low bits of a
// frame's flag byte.
type MessageType uint8

const (
	// MessageTypeRequest is an application request expecting (unless
	// NoReply is set) a Response or an Error in return.
	MessageTypeRequest MessageType = 0
	// MessageTypeResponse is a successful reply to a Request.
	MessageTypeResponse MessageType = 1
	// MessageTypeError is an error reply to a Request.
	MessageTypeError MessageType = 2
	// MessageTypeAckRequest is internal housekeeping acknowledging bytes
	// received for an in-flight Request. Never surfaced to applications.
	MessageTypeAckRequest MessageType = 4
	// MessageTypeAckResponse acknowledges bytes received for an in-flight
	// Response or Error.
	MessageTypeAckResponse MessageType = 5
)

// IsAck reports whether t is one of the internal ACK types.
func (t MessageType) IsAck() bool {
	return t == MessageTypeAckRequest || t == MessageTypeAckResponse
}

func (t MessageType) String() string {
	switch t {
	case MessageTypeRequest:
		return "REQ"
	case MessageTypeResponse:
		return "RES"
	case MessageTypeError:
		return "ERR"
	case MessageTypeAckRequest:
		return "ACKREQ"
	case MessageTypeAckResponse:
		return "ACKRES"
	default:
		return "UNKNOWN"
	}
}

// frameFlags is the one-byte flag field that follows the message number on
// the wire.
type frameFlags uint8

const (
	flagTypeMask   frameFlags = 0x07 // bits 0-2
	flagCompressed frameFlags = 1 << 3
	flagUrgent     frameFlags = 1 << 4
	flagNoReply    frameFlags = 1 << 5
	flagMoreComing frameFlags = 1 << 6
	// bit 7 is reserved and must be zero.
)

func (f frameFlags) messageType() MessageType { return MessageType(f & flagTypeMask) }

func makeFlags(t MessageType, compressed, urgent, noReply, moreComing bool) frameFlags {
	f := frameFlags(t) & flagTypeMask
	if compressed {
		f |= flagCompressed
	}
	if urgent {
		f |= flagUrgent
	}
	if noReply {
		f |= flagNoReply
	}
	if moreComing {
		f |= flagMoreComing
	}
	return f
}

// Priority affects how eagerly a message's frames are pushed out; see
// Config.UrgentFrameSize.
type Priority int

const (
	// PriorityNormal is the default priority.
	PriorityNormal Priority = iota
	// PriorityUrgent messages are framed at a larger size so they drain
	// the outbox faster, without jumping the queue ahead of other
	// messages already in flight.
	PriorityUrgent
)

// Wire-level thresholds and defaults, per the BLIP specification.
const (
	// IncomingAckThreshold is how many unacknowledged bytes of a single
	// incoming message trigger the receiver to emit an ACK frame.
	IncomingAckThreshold = 50_000

	// OutgoingAckThreshold is how many unacknowledged bytes of a single
	// outgoing message cause the sender to freeze it in the icebox until
	// an ACK arrives.
	OutgoingAckThreshold = 100_000

	// DefaultFrameSize is the payload cap for a regular-priority frame.
	DefaultFrameSize = 4096

	// UrgentFrameSize is the payload cap used for urgent messages, or for
	// any message when it is the only one left in the outbox.
	UrgentFrameSize = 32768

	// crcTrailerLen is the size, in bytes, of the CRC-32 trailer that
	// terminates every REQ/RES/ERR frame payload.
	crcTrailerLen = 4
)

// SubprotocolName is the WebSocket subprotocol token BLIP negotiates,
// optionally suffixed with "+<appProtocol>" when the application layers a
// protocol of its own on top (see WithAppProtocol).
const SubprotocolName = "BLIP_3"

// WithAppProtocol returns the subprotocol token to offer/expect when an
// application-defined sub-protocol name is layered on top of BLIP.
func WithAppProtocol(appProtocol string) string {
	if appProtocol == "" {
		return SubprotocolName
	}
	return SubprotocolName + "+" + appProtocol
}

// Reserved Error-Domain values.
const (
	ErrorDomainBLIP = "BLIP"
	ErrorDomainHTTP = "HTTP"
)

// BLIP error codes used by the engine itself (domain BLIP).
const (
	ErrorCodeBadRequest    = 400
	ErrorCodeNoHandler     = 404
	ErrorCodeHandlerFailed = 501
	ErrorCodeDisconnected  = 502
)

// Property keys with protocol-defined meaning.
const (
	PropertyProfile      = "Profile"
	PropertyErrorDomain  = "Error-Domain"
	PropertyErrorCode    = "Error-Code"
)
