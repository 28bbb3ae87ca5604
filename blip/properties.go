package blip

import "bytes"

// Properties is an ordered list of key/value string pairs, BLIP's
// per-message header block. Order is preserved; duplicate keys are legal
// on the wire (first match wins when looked up by Get).
type Properties struct {
	pairs []string // flattened key, value, key, value, ...
}

// NewProperties returns an empty Properties.
func NewProperties() *Properties {
	return &Properties{}
}

// Set appends a key/value pair. Neither key nor value may contain a NUL
// byte; violating that is a LocalAssertionError, not a protocol error,
// since it is always a programmer mistake.
func (p *Properties) Set(key, value string) error {
	if bytes.ContainsRune([]byte(key), 0) || bytes.ContainsRune([]byte(value), 0) {
		return &LocalAssertionError{Msg: "property key/value must not contain NUL"}
	}
	p.pairs = append(p.pairs, key, value)
	return nil
}

// Get returns the value of the first pair with the given key, and
// whether it was present.
func (p *Properties) Get(key string) (string, bool) {
	for i := 0; i+1 < len(p.pairs); i += 2 {
		if p.pairs[i] == key {
			return p.pairs[i+1], true
		}
	}
	return "", false
}

// GetDefault returns the value for key, or def if absent.
func (p *Properties) GetDefault(key, def string) string {
	if v, ok := p.Get(key); ok {
		return v
	}
	return def
}

// Len returns the number of key/value pairs.
func (p *Properties) Len() int { return len(p.pairs) / 2 }

// ForEach calls fn for every (key, value) pair in insertion order. It
// stops early if fn returns false.
func (p *Properties) ForEach(fn func(key, value string) bool) {
	for i := 0; i+1 < len(p.pairs); i += 2 {
		if !fn(p.pairs[i], p.pairs[i+1]) {
			return
		}
	}
}

// encode appends the wire form of p (NUL-terminated key, NUL-terminated
// value, repeated) to dst.
func (p *Properties) encode(dst []byte) []byte {
	for _, s := range p.pairs {
		dst = append(dst, s...)
		dst = append(dst, 0)
	}
	return dst
}

// encodedLen returns the number of bytes encode would append.
func (p *Properties) encodedLen() int {
	n := 0
	for _, s := range p.pairs {
		n += len(s) + 1
	}
	return n
}

// decodeProperties scans a NUL-delimited key/value block, as produced by
// encode, into a Properties. It requires an even number of NUL-terminated
// strings.
func decodeProperties(block []byte) (*Properties, error) {
	p := &Properties{}
	for len(block) > 0 {
		key, rest, ok := cutNUL(block)
		if !ok {
			return nil, newProtocolError("property key missing NUL terminator")
		}
		value, rest2, ok := cutNUL(rest)
		if !ok {
			return nil, newProtocolError("property value missing NUL terminator")
		}
		p.pairs = append(p.pairs, string(key), string(value))
		block = rest2
	}
	return p, nil
}

func cutNUL(b []byte) (before, after []byte, ok bool) {
	i := bytes.IndexByte(b, 0)
	if i < 0 {
		return nil, nil, false
	}
	return b[:i], b[i+1:], true
}
