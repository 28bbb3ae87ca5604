package blip

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/vitalvas/blip/buffer"
	"github.com/vitalvas/blip/deflate"
	"github.com/vitalvas/blip/varint"
)

// pendingResponse tracks a request this engine sent and is still waiting
// to hear back on: the MessageIn accumulating whatever frames of the
// reply have arrived, and the awaiter the application is blocked on.
type pendingResponse struct {
	msg     *MessageIn
	awaiter *ResponseAwaiter
}

// Engine is one side of a BLIP connection: it owns a Transport, the send
// and receive loops that drive it, and all message/flow-control state for
// both directions.
type Engine struct {
	transport Transport
	cfg       Config
	log       *engineLog

	outbox *Outbox
	icebox *Icebox

	outCodec *deflate.Deflater
	inCodec  *deflate.Inflater

	frameBuf  *buffer.Buffer
	decodeBuf *buffer.Buffer

	mu                sync.Mutex
	outNumber         MessageNo
	inNumber          MessageNo
	incomingRequests  map[MessageNo]*MessageIn
	incomingResponses map[MessageNo]*pendingResponse
	handlers          map[string]Handler
	defaultHandler    Handler

	closeWhenIdle atomic.Bool

	done chan struct{}
}

// NewEngine constructs an Engine over transport, ready to have handlers
// registered before Run is called.
func NewEngine(transport Transport, cfg Config) *Engine {
	cfg = cfg.withDefaults()
	return &Engine{
		transport:         transport,
		cfg:               cfg,
		log:               newEngineLog(cfg.LogLevel, cfg.Logger),
		outbox:            newOutbox(),
		icebox:            newIcebox(),
		outCodec:          deflate.NewDeflater(cfg.CompressionLevel),
		inCodec:           deflate.NewInflater(),
		frameBuf:          buffer.New(UrgentFrameSize),
		decodeBuf:         buffer.New(UrgentFrameSize),
		incomingRequests:  make(map[MessageNo]*MessageIn),
		incomingResponses: make(map[MessageNo]*pendingResponse),
		handlers:          make(map[string]Handler),
		done:              make(chan struct{}),
	}
}

// Run launches the send and receive loops and blocks until both have
// stopped, returning the first error either reported (nil on a clean
// shutdown).
func (e *Engine) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	errs := make(chan error, 2)

	wg.Add(2)
	go func() {
		defer wg.Done()
		errs <- e.sendLoop(ctx)
	}()
	go func() {
		defer wg.Done()
		errs <- e.receiveLoop(ctx)
	}()

	wg.Wait()
	e.inCodec.Close()
	close(e.done)
	close(errs)

	var first error
	for err := range errs {
		if err != nil && first == nil {
			first = err
		}
	}
	return first
}

// CloseWhenIdle asks the engine to close the connection once no messages
// are in flight in either direction, checked at the top of each loop
// iteration from then on.
func (e *Engine) CloseWhenIdle() {
	e.closeWhenIdle.Store(true)
	// Don't wait for the next loop iteration to notice: if the engine is
	// already idle right now, shut down immediately rather than only on
	// the next frame or send-loop wakeup.
	e.checkIdleClose()
}

func (e *Engine) isIdle() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.incomingRequests) == 0 &&
		len(e.incomingResponses) == 0 &&
		e.outbox.Empty() &&
		e.icebox.Empty()
}

// checkIdleClose closes the outbox and transport once a CloseWhenIdle
// request is pending and the engine has gone idle. It returns true when
// it did so, telling the caller's loop to stop.
func (e *Engine) checkIdleClose() bool {
	if !e.closeWhenIdle.Load() || !e.isIdle() {
		return false
	}
	e.outbox.Close()
	_ = e.transport.Close()
	return true
}

// sendRequest is the send action bound into builders from NewRequest: it
// assigns the next outgoing number, registers a pending response unless
// NoReply was set, and enqueues the message.
func (e *Engine) sendRequest(b *MessageBuf) (*ResponseAwaiter, error) {
	if b.msgType != MessageTypeRequest {
		return nil, &LocalAssertionError{Msg: "sendRequest called on a non-request builder"}
	}
	if e.cfg.CompressionLevel == 0 {
		b.compressed = false
	}

	e.mu.Lock()
	e.outNumber++
	number := e.outNumber
	var awaiter *ResponseAwaiter
	if !b.noReply {
		awaiter = newResponseAwaiter()
		e.incomingResponses[number] = &pendingResponse{awaiter: awaiter}
	}
	e.mu.Unlock()

	out := newOutMessage(b, number)
	if err := e.outbox.Push(out); err != nil {
		e.mu.Lock()
		delete(e.incomingResponses, number)
		e.mu.Unlock()
		return nil, err
	}
	return awaiter, nil
}

// sendResponse is the send action bound into builders from
// MessageIn.Response/Error: it enqueues the message against the number of
// the request it answers.
func (e *Engine) sendResponse(b *MessageBuf) (*ResponseAwaiter, error) {
	if b.msgType == MessageTypeRequest || b.responseTo == 0 {
		return nil, &LocalAssertionError{Msg: "sendResponse called without a valid responseTo"}
	}
	b.compressed = b.compressed && e.cfg.CompressionLevel != 0

	out := newOutMessage(b, b.responseTo)
	return nil, e.outbox.Push(out)
}

// sendLoop pops messages off the outbox, renders their next frame, and
// writes it to the transport, freezing or requeuing messages that are not
// yet finished.
func (e *Engine) sendLoop(ctx context.Context) error {
	for {
		if e.checkIdleClose() {
			return nil
		}

		msg := e.outbox.Pop()
		if msg == nil {
			return nil
		}

		frameSize := e.cfg.DefaultFrameSize
		if msg.Priority() == PriorityUrgent || e.outbox.Empty() {
			frameSize = e.cfg.UrgentFrameSize
		}
		e.frameBuf.Clear()
		e.frameBuf.Grow(frameSize)
		// The shared buffer's capacity never shrinks, so hand nextFrame a
		// view capped at frameSize.
		frame := buffer.Wrap(e.frameBuf.Bytes()[:0:frameSize])

		finished, err := msg.nextFrame(frame, e.outCodec)
		if err != nil {
			e.log.warn("encoding message #%d failed: %v", msg.Number(), err)
			return err
		}

		if !finished {
			if msg.NeedsAck(e.cfg.OutgoingAckThreshold) {
				e.icebox.Add(msg)
			} else if err := e.outbox.Push(msg); err != nil {
				return err
			}
		}

		if ctx.Err() != nil {
			return ctx.Err()
		}

		e.log.verbose("sending frame: #%d type=%s len=%d", msg.Number(), msg.Type(), frame.Len())
		if err := e.transport.Send(frame.Bytes()); err != nil {
			e.log.warn("transport send failed: %v", err)
			return nil
		}
	}
}

// receiveLoop reads frames off the transport and dispatches them until
// the connection closes, then cancels every outstanding response.
func (e *Engine) receiveLoop(ctx context.Context) (err error) {
	defer e.cancelPendingResponses()

	for {
		if e.checkIdleClose() {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		frame, err := e.transport.Receive()
		if err != nil || len(frame) == 0 {
			return nil
		}

		if handleErr := e.handleFrame(frame); handleErr != nil {
			if !IsFatal(handleErr) {
				e.log.warn("error handling frame: %v", handleErr)
				continue
			}
			e.log.warn("fatal protocol error: %v", handleErr)
			_ = e.transport.Close()
			return handleErr
		}
	}
}

func (e *Engine) cancelPendingResponses() {
	e.mu.Lock()
	pending := e.incomingResponses
	e.incomingResponses = make(map[MessageNo]*pendingResponse)
	e.mu.Unlock()

	for _, p := range pending {
		p.awaiter.cancel()
	}
}

// handleFrame parses one transport frame and routes it to the right
// MessageIn, ACK handler, or dispatch.
func (e *Engine) handleFrame(frame []byte) error {
	number, n, err := decodeMessageNo(frame)
	if err != nil {
		return err
	}
	frame = frame[n:]
	if len(frame) < 1 {
		return newProtocolError("frame missing flag byte")
	}
	flags := frameFlags(frame[0])
	payload := frame[1:]
	msgType := flags.messageType()

	e.log.verbose("received frame: #%d type=%s len=%d", number, msgType, len(payload))

	if msgType.IsAck() {
		return e.handleAckFrame(msgType, number, payload)
	}

	msg, err := e.pendingRequest(msgType, number, flags)
	if err != nil {
		return err
	}

	ack, err := msg.addFrame(flags, payload, e.decodeBuf, e.inCodec, e.cfg.IncomingAckThreshold)
	if err != nil {
		return err
	}
	if ack != nil {
		if err := e.outbox.Push(ack); err != nil {
			e.log.warn("pushing ack for #%d failed: %v", number, err)
		}
	}

	if flags&flagMoreComing == 0 {
		switch msgType {
		case MessageTypeRequest:
			e.dispatch(msg)
		case MessageTypeResponse, MessageTypeError:
			e.completeResponse(number, msg)
		}
	}
	return nil
}

// pendingRequest resolves the frame to the MessageIn tracking it,
// creating a new one for a fresh request number and retiring completed
// ones, per §4.8.
func (e *Engine) pendingRequest(msgType MessageType, number MessageNo, flags frameFlags) (*MessageIn, error) {
	if msgType == MessageTypeRequest {
		return e.pendingRequestMsg(number, flags)
	}
	return e.pendingResponseMsg(number, flags)
}

func (e *Engine) pendingRequestMsg(number MessageNo, flags frameFlags) (*MessageIn, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch {
	case number == e.inNumber+1:
		e.inNumber = number
		msg := newInMessage(number, MessageTypeRequest, e.sendResponse)
		if flags&flagMoreComing != 0 {
			e.incomingRequests[number] = msg
		}
		return msg, nil

	case number <= e.inNumber:
		msg, ok := e.incomingRequests[number]
		if !ok {
			return nil, ErrDuplicateMessageNumber
		}
		if flags&flagMoreComing == 0 {
			delete(e.incomingRequests, number)
		}
		return msg, nil

	default:
		return nil, ErrMessageNumberOutOfOrder
	}
}

func (e *Engine) pendingResponseMsg(number MessageNo, flags frameFlags) (*MessageIn, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	p, ok := e.incomingResponses[number]
	if !ok {
		return nil, ErrUnknownResponseNumber
	}
	if p.msg == nil {
		p.msg = newInMessage(number, MessageTypeResponse, e.sendResponse)
	}
	return p.msg, nil
}

// completeResponse retires the pending entry for a fully-received RES/ERR
// and delivers it to whatever awaiter is still registered for it. A race
// against cancelPendingResponses having already fired is harmless: the
// map lookup simply misses.
func (e *Engine) completeResponse(number MessageNo, msg *MessageIn) {
	e.mu.Lock()
	p, ok := e.incomingResponses[number]
	delete(e.incomingResponses, number)
	e.mu.Unlock()
	if ok && p.awaiter != nil {
		p.awaiter.deliver(msg)
	}
}

// handleAckFrame routes an ACK_REQ/ACK_RES to whichever of outbox/icebox
// is still holding the message it reports on, per §4.8.
func (e *Engine) handleAckFrame(ackType MessageType, number MessageNo, body []byte) error {
	findType := MessageTypeResponse
	if ackType == MessageTypeAckRequest {
		findType = MessageTypeRequest
	}

	if msg := e.outbox.Find(findType, number); msg != nil {
		return msg.handleAck(body)
	}

	if idx, msg := e.icebox.Find(findType, number); msg != nil {
		if err := msg.handleAck(body); err != nil {
			return err
		}
		if !msg.NeedsAck(e.cfg.OutgoingAckThreshold) {
			e.icebox.Del(idx)
			return e.outbox.Push(msg)
		}
		return nil
	}

	e.log.warn("ack for unknown message: type=%s #%d", findType, number)
	return nil
}

func decodeMessageNo(frame []byte) (MessageNo, int, error) {
	v, n, err := varint.Decode(frame)
	if err != nil {
		return 0, 0, ErrTruncatedVarint
	}
	return MessageNo(v), n, nil
}
