package memory

// Buffer is a bounded FIFO of messages. After every append its length is at
// most the limit and it holds the most recent messages in order. Buffer is
// not safe for concurrent use; Manager serialises access.
type Buffer struct {
	limit    int
	messages []Message
}

// NewBuffer creates a buffer holding at most limit messages.
func NewBuffer(limit int) *Buffer {
	if limit <= 0 {
		limit = 1
	}
	return &Buffer{limit: limit}
}

// Append adds msg and evicts the oldest messages beyond the limit.
func (b *Buffer) Append(msg Message) {
	b.messages = append(b.messages, msg)
	b.trim()
}

// Replace swaps the contents for msgs, keeping only the most recent ones.
func (b *Buffer) Replace(msgs []Message) {
	b.messages = append([]Message(nil), msgs...)
	b.trim()
}

func (b *Buffer) trim() {
	if over := len(b.messages) - b.limit; over > 0 {
		// Copy so the evicted prefix can be collected.
		b.messages = append([]Message(nil), b.messages[over:]...)
	}
}

// Messages returns a copy of the buffered messages, oldest first.
func (b *Buffer) Messages() []Message {
	return append([]Message(nil), b.messages...)
}

// Clear empties the buffer.
func (b *Buffer) Clear() {
	b.messages = nil
}

// Len returns the number of buffered messages.
func (b *Buffer) Len() int {
	return len(b.messages)
}

// Limit returns the capacity of the buffer.
func (b *Buffer) Limit() int {
	return b.limit
}
