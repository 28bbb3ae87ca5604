package buffer_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/vitalvas/blip/buffer"
)

func TestNewAndAdd(t *testing.T) {
	b := buffer.New(4)
	assert.Equal(t, 0, b.Len())
	assert.Equal(t, 4, b.Cap())

	b.Add([]byte("hi"))
	assert.Equal(t, 2, b.Len())
	assert.Equal(t, []byte("hi"), b.Bytes())
}

func TestSliceCapsAtLength(t *testing.T) {
	b := buffer.Wrap([]byte("0123456789"))
	view := b.Slice(2, 5)

	assert.Equal(t, []byte("234"), view.Bytes())
	assert.Equal(t, 3, view.Cap())
	assert.Equal(t, 0, view.Spare())

	// Appending beyond the view's capped capacity must reallocate rather
	// than spill into the parent's backing array.
	view.Add([]byte("X"))
	assert.Equal(t, []byte("234X"), view.Bytes())
	assert.Equal(t, []byte("0123456789"), b.Bytes())
}

func TestMoveStartDropsFront(t *testing.T) {
	b := buffer.Wrap([]byte("abcdef"))
	b.MoveStart(2)
	assert.Equal(t, []byte("cdef"), b.Bytes())

	b.Add([]byte("Z"))
	assert.Equal(t, []byte("cdefZ"), b.Bytes())
}

func TestGrowSetLenClear(t *testing.T) {
	b := buffer.New(0)
	b.Grow(8)
	assert.GreaterOrEqual(t, b.Cap(), 8)

	b.SetLen(3)
	assert.Equal(t, 3, b.Len())
	assert.Equal(t, []byte{0, 0, 0}, b.Bytes())

	b.Clear()
	assert.Equal(t, 0, b.Len())
	assert.GreaterOrEqual(t, b.Cap(), 8)
}

func TestCopyTo(t *testing.T) {
	b := buffer.Wrap([]byte("hello world"))
	dst := make([]byte, 5)
	n := b.CopyTo(dst)
	assert.Equal(t, 5, n)
	assert.Equal(t, []byte("hello"), dst)
}
