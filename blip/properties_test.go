package blip

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPropertiesSetRejectsNUL(t *testing.T) {
	p := NewProperties()
	err := p.Set("bad\x00key", "value")
	require.Error(t, err)
	var assertionErr *LocalAssertionError
	require.ErrorAs(t, err, &assertionErr)
}

func TestPropertiesGetDefault(t *testing.T) {
	p := NewProperties()
	require.NoError(t, p.Set("Profile", "Insult"))
	require.NoError(t, p.Set("Language", "French"))

	assert.Equal(t, "Insult", p.GetDefault("Profile", ""))
	assert.Equal(t, "coconuts", p.GetDefault("Horse", "coconuts"))
	_, ok := p.Get("Horse")
	assert.False(t, ok)
}

func TestPropertiesEncodeDecodeRoundTrip(t *testing.T) {
	p := NewProperties()
	require.NoError(t, p.Set("Profile", "Insult"))
	require.NoError(t, p.Set("Language", "French"))

	encoded := p.encode(nil)
	assert.Equal(t, p.encodedLen(), len(encoded))

	decoded, err := decodeProperties(encoded)
	require.NoError(t, err)
	assert.Equal(t, p.Len(), decoded.Len())

	v, ok := decoded.Get("Profile")
	require.True(t, ok)
	assert.Equal(t, "Insult", v)

	v, ok = decoded.Get("Language")
	require.True(t, ok)
	assert.Equal(t, "French", v)
}

func TestDecodePropertiesRejectsUnterminatedKey(t *testing.T) {
	_, err := decodeProperties([]byte("novalue"))
	require.Error(t, err)
}
