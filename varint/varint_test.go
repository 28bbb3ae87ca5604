package varint_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitalvas/blip/varint"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	values := []uint64{
		0, 1, 2, 127, 128, 129, 255, 256,
		16383, 16384, 1 << 20, 1 << 32,
		1<<64 - 1,
	}

	for _, v := range values {
		buf := varint.Encode(nil, v)
		assert.Len(t, buf, varint.SizeOf(v))

		got, n, err := varint.Decode(buf)
		require.NoError(t, err)
		assert.Equal(t, v, got)
		assert.Equal(t, len(buf), n)
	}
}

func TestEncodeAppendsToExistingSlice(t *testing.T) {
	dst := []byte{0xAA}
	dst = varint.Encode(dst, 300)
	assert.Equal(t, []byte{0xAA}, dst[:1])

	got, n, err := varint.Decode(dst[1:])
	require.NoError(t, err)
	assert.Equal(t, uint64(300), got)
	assert.Equal(t, 2, n)
}

func TestDecodeTruncated(t *testing.T) {
	tests := []struct {
		name string
		src  []byte
	}{
		{"empty", nil},
		{"continuation with no more bytes", []byte{0x80}},
		{"ten continuation bytes", []byte{0x80, 0x80, 0x80, 0x80, 0x80, 0x80, 0x80, 0x80, 0x80, 0x80}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := varint.Decode(tt.src)
			assert.ErrorIs(t, err, varint.ErrTruncated)
		})
	}
}

func TestSizeOfMatchesEncodedLength(t *testing.T) {
	for shift := 0; shift < 64; shift++ {
		v := uint64(1) << uint(shift)
		assert.Len(t, varint.Encode(nil, v), varint.SizeOf(v))
	}
}
