package blip

import "sync"

// Icebox holds MessageOuts that have been frozen because too many of
// their bytes are unacknowledged. They wait here until an ACK thaws them
// back into the outbox.
type Icebox struct {
	mu   sync.Mutex
	msgs []*MessageOut
}

func newIcebox() *Icebox {
	return &Icebox{}
}

// Add freezes msg into the icebox.
func (b *Icebox) Add(msg *MessageOut) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.msgs = append(b.msgs, msg)
}

// Find returns the index and message matching (t, number), or (-1, nil).
func (b *Icebox) Find(t MessageType, number MessageNo) (int, *MessageOut) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, m := range b.msgs {
		if m.Type() == t && m.Number() == number {
			return i, m
		}
	}
	return -1, nil
}

// Del removes the message at index i.
func (b *Icebox) Del(i int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.msgs = append(b.msgs[:i], b.msgs[i+1:]...)
}

// Empty reports whether the icebox currently holds no messages.
func (b *Icebox) Empty() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.msgs) == 0
}
