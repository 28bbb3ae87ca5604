package blip

import "strconv"

// MessageNo is a per-direction sequential message identifier. Request
// numbers are chosen by the sender starting at 1; a response or error
// reuses the number of the request it answers.
type MessageNo uint64

// sendFunc is the closure an Engine binds into every MessageBuf it hands
// out, so Send() can push the finished message into that engine's outbox
// without MessageBuf needing to know about Engine at all.
type sendFunc func(*MessageBuf) (*ResponseAwaiter, error)

// MessageBuf builds an outgoing message. Obtain one from Engine.NewRequest
// or MessageIn.Response/MessageIn.Error, fill in properties and a body,
// and call Send.
type MessageBuf struct {
	msgType    MessageType
	props      *Properties
	body       []byte
	priority   Priority
	compressed bool
	noReply    bool
	responseTo MessageNo

	send sendFunc
	sent bool
}

func newMessageBuf(t MessageType, send sendFunc) *MessageBuf {
	return &MessageBuf{
		msgType:    t,
		props:      NewProperties(),
		compressed: true,
		send:       send,
	}
}

// SetProfile sets the conventional "Profile" property naming the handler
// this request should be dispatched to. Requests only.
func (m *MessageBuf) SetProfile(profile string) *MessageBuf {
	_ = m.props.Set(PropertyProfile, profile)
	return m
}

// SetProperty sets an arbitrary key/value property. Panics with a
// LocalAssertionError-typed recover value if key or value contains NUL,
// since that is always a programmer mistake, never caller input.
func (m *MessageBuf) SetProperty(key, value string) *MessageBuf {
	if err := m.props.Set(key, value); err != nil {
		panic(err)
	}
	return m
}

// SetBody sets the message body.
func (m *MessageBuf) SetBody(body []byte) *MessageBuf {
	m.body = body
	return m
}

// SetCompressed controls whether the message is sent through the
// direction's DEFLATE codec. Defaults to true.
func (m *MessageBuf) SetCompressed(compressed bool) *MessageBuf {
	m.compressed = compressed
	return m
}

// SetUrgent marks the message urgent, framing it at UrgentFrameSize
// instead of DefaultFrameSize.
func (m *MessageBuf) SetUrgent(urgent bool) *MessageBuf {
	if urgent {
		m.priority = PriorityUrgent
	} else {
		m.priority = PriorityNormal
	}
	return m
}

// SetNoReply marks a request as not expecting a response. Requests only;
// ignored for responses and errors, which never expect a reply anyway.
func (m *MessageBuf) SetNoReply(noReply bool) *MessageBuf {
	m.noReply = noReply
	return m
}

// Send hands the builder to the engine that created it. For a request it
// returns a ResponseAwaiter (nil if NoReply was set); for a response or
// error it always returns nil. Calling Send twice on the same builder is
// a LocalAssertionError.
func (m *MessageBuf) Send() (*ResponseAwaiter, error) {
	if m.sent {
		return nil, &LocalAssertionError{Msg: "message sent twice"}
	}
	m.sent = true
	return m.send(m)
}

// NewRequest creates a standalone request builder bound to this engine.
func (e *Engine) NewRequest() *MessageBuf {
	return newMessageBuf(MessageTypeRequest, e.sendRequest)
}

// createErrorResponse builds an ERR builder answering request number
// respondingTo, per §4.6.
func createErrorResponse(send sendFunc, respondingTo MessageNo, domain string, code int, message string) *MessageBuf {
	b := newMessageBuf(MessageTypeError, send)
	b.responseTo = respondingTo
	b.compressed = false
	if domain != "" && domain != ErrorDomainBLIP {
		b.SetProperty(PropertyErrorDomain, domain)
	}
	b.SetProperty(PropertyErrorCode, strconv.Itoa(code))
	b.SetBody([]byte(message))
	return b
}
