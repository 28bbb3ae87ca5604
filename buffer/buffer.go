// Package buffer implements a borrowable byte view used to pass partial
// frames between the transport, the compression codec, and the message
// assembler without copying.
//
// Go already gives slices of the same backing array for free and keeps
// that array alive for as long as any slice references it, so there is no
// need for the manual reference counting the protocol describes for
// other runtimes: a Buffer is simply a slice with the "capacity equals
// length once sliced" discipline spelled out below.
package buffer

// Buffer is a byte view over a shared backing array. buf[:len(buf)] is the
// logical content; cap(buf)-len(buf) is spare room that Grow/Add may use
// without reallocating.
type Buffer struct {
	buf []byte
}

// New allocates a Buffer with zero length and the given spare capacity.
func New(capacity int) *Buffer {
	return &Buffer{buf: make([]byte, 0, capacity)}
}

// Wrap adopts an existing slice as the buffer's backing storage. The
// Buffer takes ownership of b; callers must not mutate b afterward except
// through the returned Buffer.
func Wrap(b []byte) *Buffer {
	return &Buffer{buf: b}
}

// Len returns the logical length of the buffer.
func (b *Buffer) Len() int { return len(b.buf) }

// Cap returns the total capacity of the backing array.
func (b *Buffer) Cap() int { return cap(b.buf) }

// Spare returns the number of bytes that can be appended before Add would
// need to reallocate.
func (b *Buffer) Spare() int { return cap(b.buf) - len(b.buf) }

// Bytes returns the logical content. The returned slice aliases the
// buffer's storage and is invalidated by any later mutating call.
func (b *Buffer) Bytes() []byte { return b.buf }

// At returns the byte at index i.
func (b *Buffer) At(i int) byte { return b.buf[i] }

// Slice returns a new view over buf[i:j]. Its capacity is capped to its
// length (a three-index slice), so the returned view can never grow back
// into bytes that belong to the parent view.
func (b *Buffer) Slice(i, j int) *Buffer {
	return &Buffer{buf: b.buf[i:j:j]}
}

// MoveStart drops the first n bytes from the front of the buffer without
// reallocating; the backing array and remaining capacity are unaffected.
func (b *Buffer) MoveStart(n int) {
	b.buf = b.buf[n:]
}

// Grow ensures at least n bytes of spare capacity are available,
// reallocating and copying the logical content if necessary.
func (b *Buffer) Grow(n int) {
	if b.Spare() >= n {
		return
	}
	fresh := make([]byte, len(b.buf), len(b.buf)+n)
	copy(fresh, b.buf)
	b.buf = fresh
}

// SetLen resizes the logical length to n, growing the backing array if
// needed. Bytes beyond the previous length are zeroed.
func (b *Buffer) SetLen(n int) {
	if n <= len(b.buf) {
		b.buf = b.buf[:n]
		return
	}
	b.Grow(n - len(b.buf))
	old := len(b.buf)
	b.buf = b.buf[:n]
	clear(b.buf[old:])
}

// Clear truncates the buffer to zero length, retaining its capacity.
func (b *Buffer) Clear() {
	b.buf = b.buf[:0]
}

// Add appends p to the buffer, growing the backing array if needed.
func (b *Buffer) Add(p []byte) {
	b.buf = append(b.buf, p...)
}

// CopyTo copies as many bytes as fit into dst and returns the count
// copied.
func (b *Buffer) CopyTo(dst []byte) int {
	return copy(dst, b.buf)
}
