// Package deflate implements the streaming DEFLATE codec BLIP layers over
// each compressed message: a Deflater on the send side and an Inflater on
// the receive side, both using compress/flate the same way kasper's
// websocket package does for permessage-deflate (RFC 7692).
//
// Per BLIP's framing trick, a sync-flushed deflate block always ends in
// the 4 bytes 00 00 FF FF. The message layer (not this package) overwrites
// those 4 bytes with a running plaintext CRC-32 on the way out, and
// reconstructs them before inflating on the way in; this package only
// knows how to produce and consume deflate bytes a bounded chunk at a
// time, it has no notion of the checksum trailer.
package deflate

import (
	"compress/flate"
	"errors"
	"io"

	"github.com/vitalvas/blip/buffer"
)

// Codec is satisfied by both Deflater and Inflater, per the
// "tagged variants over polymorphism" approach: one direction of a
// connection owns one concrete implementation, selected once at
// construction, with no further type switching needed by callers.
type Codec interface {
	Write(input, output *buffer.Buffer, mode Mode) error
}

// Mode selects how Write treats the input it is given.
type Mode int

const (
	// ModeRaw copies input to output verbatim; no compression.
	ModeRaw Mode = iota
	// ModeNoFlush compresses without forcing a block boundary.
	ModeNoFlush
	// ModeSyncFlush compresses and forces a block boundary ending in the
	// deflate sync-flush marker 00 00 FF FF. This is the mode used for
	// every regular BLIP frame.
	ModeSyncFlush
	// ModeFinish closes out the deflate stream. Only used when a
	// direction's codec is being torn down.
	ModeFinish
)

// ErrClosed is returned by Write once Finish has been called.
var ErrClosed = errors.New("deflate: codec closed")

// minOutputSpare is the point at which Write stops producing more output
// for this call rather than risk a pathologically small tail write.
const minOutputSpare = 100

// inputHeadroom is reserved out of the output's spare capacity to make
// room for the sync-flush trailer before a deflate write is attempted.
const inputHeadroom = 12

// sinkWriter is an io.Writer that simply accumulates everything written to
// it; flate.Writer never blocks on it, so Deflater needs no goroutine.
type sinkWriter struct {
	buf []byte
}

func (s *sinkWriter) Write(p []byte) (int, error) {
	s.buf = append(s.buf, p...)
	return len(p), nil
}

// Deflater is the send-side codec for one direction of a connection. A
// single Deflater is shared by every compressed message sent in that
// direction so the sliding window carries across message boundaries.
type Deflater struct {
	fw     *flate.Writer
	sink   *sinkWriter
	closed bool
}

// NewDeflater creates a Deflater at the given compress/flate level.
func NewDeflater(level int) *Deflater {
	sink := &sinkWriter{}
	fw, _ := flate.NewWriter(sink, level)
	return &Deflater{fw: fw, sink: sink}
}

// Write consumes as much of input as fits within output's spare capacity
// (moving input's start forward by what it took) and appends the result
// to output. It never errors for ModeRaw; ModeNoFlush/ModeSyncFlush can
// fail if the underlying flate.Writer does.
func (d *Deflater) Write(input, output *buffer.Buffer, mode Mode) error {
	if mode == ModeRaw {
		n := min(input.Len(), output.Spare())
		output.Add(input.Bytes()[:n])
		input.MoveStart(n)
		return nil
	}

	if d.closed {
		return ErrClosed
	}

	if output.Spare() <= minOutputSpare {
		return nil
	}

	budget := output.Spare() - inputHeadroom
	n := min(input.Len(), max(budget, 0))
	if n > 0 {
		if _, err := d.fw.Write(input.Bytes()[:n]); err != nil {
			return err
		}
		input.MoveStart(n)
	}

	switch mode {
	case ModeSyncFlush:
		if err := d.fw.Flush(); err != nil {
			return err
		}
	case ModeFinish:
		if err := d.fw.Close(); err != nil {
			return err
		}
		d.closed = true
	}

	output.Add(d.sink.buf)
	d.sink.buf = d.sink.buf[:0]
	return nil
}

// chanReader adapts a channel of byte chunks into a blocking io.Reader,
// which is what flate.Reader expects: it wants to pull more compressed
// bytes whenever it needs them, not to be handed them in bursts.
//
// Right before it would block waiting for the next chunk, it posts a
// non-blocking notice on idle. That notice is what lets Write tell "the
// pump has produced everything it can from what I just gave it, and is
// now genuinely waiting for more" apart from "the pump just hasn't run
// yet" — the two cases a naive poll can't distinguish.
type chanReader struct {
	ch   <-chan []byte
	idle chan<- struct{}
	buf  []byte
}

func (r *chanReader) Read(p []byte) (int, error) {
	for len(r.buf) == 0 {
		select {
		case r.idle <- struct{}{}:
		default:
		}
		chunk, ok := <-r.ch
		if !ok {
			return 0, io.EOF
		}
		r.buf = chunk
	}
	n := copy(p, r.buf)
	r.buf = r.buf[n:]
	return n, nil
}

// Inflater is the receive-side codec for one direction of a connection,
// mirroring Deflater's shared, cross-message sliding window.
//
// compress/flate's Reader pulls bytes from an io.Reader and blocks until
// it has enough to make progress; it offers no way to hand it "whatever
// you have so far" and get partial output back. Inflater bridges that gap
// with a background goroutine: Write feeds newly-arrived compressed bytes
// into a channel that a chanReader blocks on, and drains whatever
// decompressed bytes the flate.Reader has produced out of a second
// channel. Every BLIP frame is a complete sync-flush block, so once fed
// a frame's bytes the pump is guaranteed to produce everything decodable
// from them without needing more input; Write blocks until the pump
// actually says so (via idle), rather than guessing with a single
// non-blocking poll.
type Inflater struct {
	in      chan []byte
	out     chan []byte
	idle    chan struct{}
	done    chan error
	pending []byte
	err     error
	// busy is true from the moment input is handed to the pump until it
	// reports idle (or done): it spans however many Write calls it takes
	// to drain a frame whose decompressed size outgrows output, so a call
	// that fed nothing new still knows whether to block or not.
	busy   bool
	closed bool
}

// NewInflater creates an Inflater ready to receive compressed bytes.
func NewInflater() *Inflater {
	// in is buffered by one so Write's send can never block on the pump
	// goroutine, which might itself be blocked trying to hand a
	// decompressed chunk to out; without this a Write call could deadlock
	// against the very goroutine it is trying to feed.
	in := make(chan []byte, 1)
	out := make(chan []byte, 4)
	idle := make(chan struct{}, 1)
	done := make(chan error, 1)

	fr := flate.NewReader(&chanReader{ch: in, idle: idle})

	infl := &Inflater{in: in, out: out, idle: idle, done: done}
	go infl.pump(fr)
	return infl
}

func (d *Inflater) pump(fr io.ReadCloser) {
	defer close(d.out)
	buf := make([]byte, 32*1024)
	for {
		n, err := fr.Read(buf)
		if n > 0 {
			chunk := append([]byte(nil), buf[:n]...)
			d.out <- chunk
		}
		if err != nil {
			d.done <- err
			return
		}
	}
}

// Write feeds input into the decompressor and appends whatever
// decompressed bytes that input yields into output, bounded by output's
// spare capacity. It blocks until the pump goroutine has produced
// everything it can from the bytes just fed (or output fills up), so a
// single call is enough to drain one complete sync-flush frame; call it
// again only if output was too small to hold all of it.
func (d *Inflater) Write(input, output *buffer.Buffer, _ Mode) error {
	if d.err != nil {
		return d.err
	}

	if len(d.pending) > 0 {
		n := min(len(d.pending), output.Spare())
		output.Add(d.pending[:n])
		d.pending = d.pending[n:]
	}

	if !d.busy {
		// Drop any idle notice left over from before the pump ever had
		// anything to report on (its startup, or a prior frame that
		// already resolved); otherwise the select below could fire on a
		// stale signal instead of genuinely waiting on this feed.
		select {
		case <-d.idle:
		default:
		}
	}

	if input.Len() > 0 && output.Spare() > 0 {
		chunk := append([]byte(nil), input.Bytes()...)
		input.MoveStart(input.Len())
		select {
		case d.in <- chunk:
			d.busy = true
		case err := <-d.done:
			d.err = err
			if errors.Is(err, io.EOF) {
				d.err = nil
			}
			return d.err
		}
	}

	for output.Spare() > 0 {
		var chunk []byte
		var ok, idle bool
		var doneErr error
		var haveDoneErr bool

		if d.busy {
			// The pump has something outstanding to produce from — either
			// fed just now, or left over from an earlier call that filled
			// output before the pump said it was done. Block until it
			// reports a chunk, idle (nothing more right now), or
			// termination: a non-blocking poll here is exactly what let
			// Write return empty-handed before the pump had run.
			select {
			case chunk, ok = <-d.out:
			case doneErr = <-d.done:
				haveDoneErr = true
			case <-d.idle:
				idle = true
			}
		} else {
			// Nothing outstanding: only take what's already sitting on
			// out, never block waiting on a pump with nothing new to do.
			select {
			case chunk, ok = <-d.out:
			default:
				return nil
			}
		}

		if idle {
			// The pump only goes idle after handing every chunk to out,
			// but select may pick idle ahead of chunks still queued there:
			// collect those without blocking before returning.
			d.busy = false
			continue
		}
		if haveDoneErr {
			d.busy = false
			if !errors.Is(doneErr, io.EOF) {
				d.err = doneErr
				return doneErr
			}
			return nil
		}
		if !ok {
			// out was closed: the pump is gone. It always sends to done
			// before returning, so a non-blocking check here picks up a
			// real error that raced against the close.
			d.busy = false
			select {
			case doneErr = <-d.done:
				if !errors.Is(doneErr, io.EOF) {
					d.err = doneErr
					return doneErr
				}
			default:
			}
			return nil
		}

		n := min(len(chunk), output.Spare())
		output.Add(chunk[:n])
		if n < len(chunk) {
			d.pending = chunk[n:]
		}
	}
	return nil
}

// Close shuts down the background decompression goroutine. Safe to call
// more than once.
func (d *Inflater) Close() {
	if d.closed {
		return
	}
	d.closed = true
	close(d.in)
}
