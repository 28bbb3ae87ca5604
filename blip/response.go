package blip

import "context"

// ResponseAwaiter is returned by sending a request that expects a reply. It
// is a one-shot future: exactly one of a RES or ERR MessageIn will arrive on
// it, or Wait will report the connection going away first.
type ResponseAwaiter struct {
	ch chan *MessageIn
}

func newResponseAwaiter() *ResponseAwaiter {
	return &ResponseAwaiter{ch: make(chan *MessageIn, 1)}
}

// Wait blocks until the response arrives, ctx is done, or the engine closes.
// A RES reply is returned with a nil error; an ERR reply is returned as a
// *ResponseError via MessageIn.AsError, with the MessageIn returned
// alongside it so callers can still inspect properties.
func (r *ResponseAwaiter) Wait(ctx context.Context) (*MessageIn, error) {
	select {
	case msg, ok := <-r.ch:
		if !ok {
			return nil, ErrDisconnected
		}
		if err := msg.AsError(); err != nil {
			return msg, err
		}
		return msg, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// deliver completes the awaiter with msg. Safe to call at most once.
func (r *ResponseAwaiter) deliver(msg *MessageIn) {
	r.ch <- msg
	close(r.ch)
}

// cancel completes the awaiter with no message, causing Wait to return
// ErrDisconnected. Safe to call at most once, and never together with
// deliver.
func (r *ResponseAwaiter) cancel() {
	close(r.ch)
}
