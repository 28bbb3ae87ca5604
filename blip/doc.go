// Package blip implements the core of a BLIP protocol engine: frame
// encoding, message assembly with property headers and streaming bodies,
// an outbox scheduler that interleaves concurrent outgoing messages, and
// the send/receive loops that tie it all together over a caller-supplied
// Transport.
//
// BLIP multiplexes request/response messaging over a single bidirectional
// binary-message transport (typically a WebSocket). Each message is
// identified by a sequential number, carries an ordered list of string
// properties plus a byte body, and may be split across multiple frames
// and/or compressed with a shared, per-direction DEFLATE stream.
//
// This package does not open sockets, perform the WebSocket handshake, or
// parse HTTP: it consumes an opaque Transport and is agnostic to what
// carries its frames. See the transport/blipws package for a concrete
// Transport backed by a WebSocket connection.
//
// # Sending
//
//	eng := blip.NewEngine(transport, blip.DefaultConfig())
//	eng.HandleRequest("greet", func(req *blip.MessageIn) error {
//		_, err := req.Response().SetBody([]byte("hello")).Send()
//		return err
//	})
//	go eng.Run(context.Background())
//
//	awaiter, err := eng.NewRequest().SetProfile("greet").SetBody([]byte("hi")).Send()
//	if err != nil {
//		// handle send failure
//	}
//	reply, err := awaiter.Wait(ctx)
package blip
