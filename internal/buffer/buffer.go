package buffer

// Buffer accumulates the bytes of a value arriving split across feed calls,
// capped by a hard limit.
type Buffer struct {
	memory  []byte
	maxSize int
}

func New(initialSize, maxSize int) *Buffer {
	return &Buffer{
		memory:  make([]byte, 0, initialSize),
		maxSize: maxSize,
	}
}

// Append writes data unless the total size would exceed the limit, in which
// case nothing is written and false is returned.
func (b *Buffer) Append(data []byte) (ok bool) {
	if len(b.memory)+len(data) > b.maxSize {
		return false
	}

	b.memory = append(b.memory, data...)
	return true
}

// Len returns the number of buffered bytes.
func (b *Buffer) Len() int {
	return len(b.memory)
}

// Bytes returns the buffered bytes, valid until Clear.
func (b *Buffer) Bytes() []byte {
	return b.memory
}

// Clear drops the buffered bytes, keeping the allocation.
func (b *Buffer) Clear() {
	b.memory = b.memory[:0]
}
