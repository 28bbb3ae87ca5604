package blip

import (
	"github.com/vitalvas/blip/buffer"
	"github.com/vitalvas/blip/crc"
	"github.com/vitalvas/blip/deflate"
	"github.com/vitalvas/blip/varint"
)

// MessageOut is the sender-side state of one BLIP message: its wire
// payload (properties + body for REQ/RES/ERR, or a bare byte count for an
// ACK), and the bookkeeping nextFrame needs to hand it out one frame at a
// time.
type MessageOut struct {
	number     MessageNo
	msgType    MessageType
	compressed bool
	urgent     bool
	noReply    bool
	responseTo MessageNo

	payload   []byte // full encoded payload; REQ/RES/ERR only, nil for ACKs
	plainSent int     // bytes of payload fed to the codec so far
	crcSum    *crc.Accumulator

	ackBody []byte // for ACKs: the raw varint(byteCount) bytes, sent verbatim

	bytesSent    int // wire bytes produced so far, across all frames
	unackedBytes int
	finished     bool
}

func newOutMessage(b *MessageBuf, number MessageNo) *MessageOut {
	m := &MessageOut{
		number:     number,
		msgType:    b.msgType,
		compressed: b.compressed,
		urgent:     b.priority == PriorityUrgent,
		noReply:    b.noReply,
		responseTo: b.responseTo,
		crcSum:     crc.New(),
	}

	propBlock := b.props.encode(nil)
	payload := varint.Encode(make([]byte, 0, varint.MaxLen+len(propBlock)+len(b.body)), uint64(len(propBlock)))
	payload = append(payload, propBlock...)
	payload = append(payload, b.body...)
	m.payload = payload
	return m
}

func newAckMessage(respondingToType MessageType, number MessageNo, rawBytesReceived int) *MessageOut {
	ackType := MessageTypeAckResponse
	if respondingToType == MessageTypeRequest {
		ackType = MessageTypeAckRequest
	}
	body := varint.Encode(nil, uint64(rawBytesReceived))
	return &MessageOut{
		number:  number,
		msgType: ackType,
		urgent:  true,
		noReply: true,
		ackBody: body,
	}
}

// Priority reports the message's scheduling priority.
func (m *MessageOut) Priority() Priority {
	if m.urgent {
		return PriorityUrgent
	}
	return PriorityNormal
}

// Number returns the message's number.
func (m *MessageOut) Number() MessageNo { return m.number }

// Type returns the message's type.
func (m *MessageOut) Type() MessageType { return m.msgType }

// Finished reports whether every byte of this message has been handed to
// the transport.
func (m *MessageOut) Finished() bool { return m.finished }

// NeedsAck reports whether this message has enough unacknowledged bytes
// in flight that it should be frozen in the icebox.
func (m *MessageOut) NeedsAck(threshold int) bool {
	return m.unackedBytes >= threshold
}

// nextFrame renders the next frame of this message into dst (which is
// cleared first) and reports whether the message is now fully sent.
func (m *MessageOut) nextFrame(dst *buffer.Buffer, codec *deflate.Deflater) (finished bool, err error) {
	dst.Clear()
	dst.Add(varint.Encode(nil, uint64(m.number)))
	flagPos := dst.Len()
	dst.Add([]byte{0}) // placeholder, patched below

	if m.msgType.IsAck() {
		dst.Add(m.ackBody)
		flags := makeFlags(m.msgType, false, m.urgent, m.noReply, false)
		dst.Bytes()[flagPos] = byte(flags)
		produced := dst.Len() - flagPos - 1
		m.bytesSent += produced
		m.unackedBytes += produced
		m.finished = true
		return true, nil
	}

	start := dst.Len()
	input := buffer.Wrap(m.payload[m.plainSent:])
	mode := deflate.ModeRaw
	if m.compressed {
		mode = deflate.ModeSyncFlush
	}
	if err := codec.Write(input, dst, mode); err != nil {
		return false, &CodecError{Err: err}
	}
	consumed := len(m.payload[m.plainSent:]) - input.Len()
	if consumed > 0 {
		m.crcSum.Write(m.payload[m.plainSent : m.plainSent+consumed])
		m.plainSent += consumed
	}

	trailer := m.crcSum.AppendBE(nil)
	if m.compressed {
		b := dst.Bytes()
		copy(b[len(b)-crcTrailerLen:], trailer)
	} else {
		dst.Add(trailer)
	}

	moreComing := m.plainSent < len(m.payload)
	flags := makeFlags(m.msgType, m.compressed, m.urgent, m.noReply, moreComing)
	dst.Bytes()[flagPos] = byte(flags)

	produced := dst.Len() - start
	m.bytesSent += produced
	m.unackedBytes += produced
	m.finished = !moreComing
	return m.finished, nil
}

// handleAck applies a peer ACK reporting it has received ackCount bytes
// of this message.
func (m *MessageOut) handleAck(body []byte) error {
	ackCount, _, err := varint.Decode(body)
	if err != nil {
		return newProtocolError("malformed ACK body: %v", err)
	}
	remaining := m.bytesSent - int(ackCount)
	if remaining < 0 {
		remaining = 0
	}
	if remaining < m.unackedBytes {
		m.unackedBytes = remaining
	}
	return nil
}
