package blip

import (
	"encoding/binary"

	"github.com/vitalvas/blip/buffer"
	"github.com/vitalvas/blip/crc"
	"github.com/vitalvas/blip/deflate"
	"github.com/vitalvas/blip/varint"
)

type inState int

const (
	inStateStart inState = iota
	inStateReadingProps
	inStateReadingBody
	inStateComplete
)

// MessageIn is the receiver-side state of one incoming BLIP message. It
// is fed frame by frame through addFrame and exposes the completed
// properties and body once Complete reports true.
type MessageIn struct {
	number     MessageNo
	msgType    MessageType
	compressed bool
	urgent     bool
	noReply    bool

	state          inState
	propsRemaining int
	propBuf        []byte
	body           []byte

	rawBytesReceived int
	unackedBytes     int
	crcSum           *crc.Accumulator

	props *Properties

	send sendFunc // bound to the owning engine, used by Response/Error
}

func newInMessage(number MessageNo, msgType MessageType, send sendFunc) *MessageIn {
	return &MessageIn{
		number:  number,
		msgType: msgType,
		crcSum:  crc.New(),
		send:    send,
	}
}

// Number returns the message's number.
func (m *MessageIn) Number() MessageNo { return m.number }

// Type returns the message's type.
func (m *MessageIn) Type() MessageType { return m.msgType }

// Complete reports whether the message has been fully received.
func (m *MessageIn) Complete() bool { return m.state == inStateComplete }

// Body returns the accumulated body. Only meaningful once Complete.
func (m *MessageIn) Body() []byte { return m.body }

// Property returns the named property's value, or def if absent.
func (m *MessageIn) Property(key, def string) string {
	if m.props == nil {
		return def
	}
	return m.props.GetDefault(key, def)
}

// Profile returns the request's "Profile" property.
func (m *MessageIn) Profile() string { return m.Property(PropertyProfile, "") }

// AsError returns a non-nil error if this message is type ERR, carrying
// its Error-Domain/Error-Code/body.
func (m *MessageIn) AsError() error {
	if m.msgType != MessageTypeError {
		return nil
	}
	domain := m.Property(PropertyErrorDomain, ErrorDomainBLIP)
	code := m.Property(PropertyErrorCode, "0")
	return &ResponseError{Domain: domain, Code: code, Message: string(m.body)}
}

// Response creates a response builder answering this request. Only valid
// on requests with NoReply unset.
func (m *MessageIn) Response() *MessageBuf {
	b := newMessageBuf(MessageTypeResponse, m.send)
	b.responseTo = m.number
	return b
}

// Error creates an error-response builder answering this request.
func (m *MessageIn) Error(domain string, code int, message string) *MessageBuf {
	return createErrorResponse(m.send, m.number, domain, code, message)
}

// ResponseError is returned by ResponseAwaiter.Wait when the peer replied
// with an ERR message.
type ResponseError struct {
	Domain  string
	Code    string
	Message string
}

func (e *ResponseError) Error() string {
	return "blip: " + e.Domain + "/" + e.Code + ": " + e.Message
}

// addFrame feeds one frame's payload (properties+body, or body
// continuation) into the message. It returns a non-nil MessageOut when an
// ACK should be sent back to the peer.
func (m *MessageIn) addFrame(flags frameFlags, framePayload []byte, decodeBuf *buffer.Buffer, codec deflate.Codec, ackThreshold int) (*MessageOut, error) {
	m.rawBytesReceived += len(framePayload)
	m.unackedBytes += len(framePayload)
	m.noReply = flags&flagNoReply != 0
	m.urgent = flags&flagUrgent != 0

	frameType := flags.messageType()
	if frameType != m.msgType {
		if frameType != MessageTypeError {
			return nil, ErrInconsistentMessageType
		}
		m.msgType = MessageTypeError
		m.state = inStateStart
		m.propBuf = nil
		m.propsRemaining = 0
		m.body = nil
		m.props = nil
		m.crcSum = crc.New()
	}

	if len(framePayload) < crcTrailerLen {
		return nil, newProtocolError("frame payload shorter than CRC trailer")
	}
	dataLen := len(framePayload) - crcTrailerLen
	data := framePayload[:dataLen]
	wantCRC := binary.BigEndian.Uint32(framePayload[dataLen:])

	if flags&flagCompressed != 0 {
		m.compressed = true
		if err := m.inflateAndAdd(data, decodeBuf, codec); err != nil {
			return nil, err
		}
	} else {
		m.crcSum.Write(data)
		if err := m.addBytes(data); err != nil {
			return nil, err
		}
	}

	if gotCRC := m.crcSum.Sum32(); gotCRC != wantCRC {
		return nil, &ChecksumMismatchError{Want: wantCRC, Got: gotCRC}
	}

	if flags&flagMoreComing == 0 {
		if m.state != inStateReadingBody {
			return nil, ErrIncompleteProperties
		}
		m.state = inStateComplete
		return nil, nil
	}

	if m.unackedBytes >= ackThreshold {
		m.unackedBytes = 0
		return newAckMessage(m.msgType, m.number, m.rawBytesReceived), nil
	}
	return nil, nil
}

// inflateAndAdd decompresses data (the frame's payload with the CRC
// trailer already stripped) by reattaching the synthetic deflate
// sync-flush marker, running it through codec, and folding every
// decompressed byte into both the CRC accumulator and addBytes.
//
// A single Write call only guarantees draining everything the codec can
// produce up to decodeBuf's capacity: if the decompressed size of this
// frame is larger than decodeBuf, Write stops with decodeBuf completely
// full rather than because it ran out of things to give. So the loop
// keeps calling Write — even after every byte of input has been handed
// over — for as long as the last call filled decodeBuf to capacity;
// anything less than that means the codec had nothing more to give this
// round, not that it ran out of room.
func (m *MessageIn) inflateAndAdd(data []byte, decodeBuf *buffer.Buffer, codec deflate.Codec) error {
	synthetic := make([]byte, len(data)+4)
	copy(synthetic, data)
	synthetic[len(data)], synthetic[len(data)+1] = 0x00, 0x00
	synthetic[len(data)+2], synthetic[len(data)+3] = 0xFF, 0xFF

	input := buffer.Wrap(synthetic)
	for {
		decodeBuf.Clear()
		capacity := decodeBuf.Cap()
		if err := codec.Write(input, decodeBuf, deflate.ModeSyncFlush); err != nil {
			return &CodecError{Err: err}
		}

		if decodeBuf.Len() > 0 {
			m.crcSum.Write(decodeBuf.Bytes())
			if err := m.addBytes(decodeBuf.Bytes()); err != nil {
				return err
			}
		}

		if input.Len() == 0 && decodeBuf.Len() < capacity {
			return nil
		}
	}
}

// addBytes feeds decoded plaintext through the Start/ReadingProps/
// ReadingBody state machine.
func (m *MessageIn) addBytes(plain []byte) error {
	for len(plain) > 0 {
		switch m.state {
		case inStateStart:
			n, consumed, err := varint.Decode(plain)
			if err != nil {
				return ErrTruncatedVarint
			}
			m.propsRemaining = int(n)
			m.propBuf = make([]byte, 0, m.propsRemaining)
			m.state = inStateReadingProps
			plain = plain[consumed:]

		case inStateReadingProps:
			take := min(m.propsRemaining, len(plain))
			m.propBuf = append(m.propBuf, plain[:take]...)
			m.propsRemaining -= take
			plain = plain[take:]
			if m.propsRemaining == 0 {
				props, err := decodeProperties(m.propBuf)
				if err != nil {
					return err
				}
				m.props = props
				m.state = inStateReadingBody
			}

		case inStateReadingBody:
			m.body = append(m.body, plain...)
			plain = nil

		case inStateComplete:
			return nil
		}
	}
	return nil
}
