package crc_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/vitalvas/blip/crc"
)

func TestAccumulatorMatchesSinglePassChecksum(t *testing.T) {
	data := []byte("Your mother was a hamster, and your father smelt of elderberries")

	a := crc.New()
	_, err := a.Write(data)
	assert.NoError(t, err)
	assert.Equal(t, crc.Of(data), a.Sum32())
}

func TestAccumulatorIsIncremental(t *testing.T) {
	full := []byte("the quick brown fox jumps over the lazy dog")

	a := crc.New()
	for i := 0; i < len(full); i += 7 {
		end := min(i+7, len(full))
		_, err := a.Write(full[i:end])
		assert.NoError(t, err)
	}

	assert.Equal(t, crc.Of(full), a.Sum32())
}

func TestAppendBE(t *testing.T) {
	a := crc.New()
	_, _ = a.Write([]byte("hello"))

	buf := a.AppendBE([]byte{0xAA})
	assert.Len(t, buf, 5)
	assert.Equal(t, byte(0xAA), buf[0])

	sum := a.Sum32()
	assert.Equal(t, byte(sum>>24), buf[1])
	assert.Equal(t, byte(sum>>16), buf[2])
	assert.Equal(t, byte(sum>>8), buf[3])
	assert.Equal(t, byte(sum), buf[4])
}

func TestReset(t *testing.T) {
	a := crc.New()
	_, _ = a.Write([]byte("anything"))
	a.Reset()

	fresh := crc.New()
	assert.Equal(t, fresh.Sum32(), a.Sum32())
}

func TestBitFlipChangesChecksum(t *testing.T) {
	data := []byte{0x01, 0x02, 0x03, 0x04}
	original := crc.Of(data)

	flipped := append([]byte(nil), data...)
	flipped[2] ^= 0x01

	assert.NotEqual(t, original, crc.Of(flipped))
}
