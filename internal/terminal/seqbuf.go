package terminal

// DefaultMaxSequenceLen bounds a partially received escape sequence.
// Real key reports are well under this; anything longer is corrupt.
const DefaultMaxSequenceLen = 64

// SequenceBuffer holds the tail of an input chunk that ended inside an
// escape sequence or a multi-byte rune. It never grows past its bound:
// an append that would overflow discards the whole buffer instead.
type SequenceBuffer struct {
	max  int
	data []byte
}

// NewSequenceBuffer returns an empty buffer bounded at max bytes. A
// non-positive max selects DefaultMaxSequenceLen.
func NewSequenceBuffer(max int) *SequenceBuffer {
	if max <= 0 {
		max = DefaultMaxSequenceLen
	}
	return &SequenceBuffer{max: max}
}

// Append adds p. It returns false, leaving the buffer empty, when the
// result would exceed the bound.
func (b *SequenceBuffer) Append(p []byte) bool {
	if len(b.data)+len(p) > b.max {
		b.Reset()
		return false
	}
	b.data = append(b.data, p...)
	return true
}

// Take returns the buffered bytes and empties the buffer.
func (b *SequenceBuffer) Take() []byte {
	out := b.data
	b.data = nil
	return out
}

func (b *SequenceBuffer) Bytes() []byte { return b.data }

func (b *SequenceBuffer) Len() int { return len(b.data) }

func (b *SequenceBuffer) Max() int { return b.max }

func (b *SequenceBuffer) Reset() { b.data = nil }
