// Package bytebuf provides a growable byte buffer made of fixed chunks.
//
// Growing never copies bytes that were already written: an overflowing write
// allocates one more chunk and continues there. Only Bytes and WriteTo walk
// the chunks, so assembling N bytes across many writes costs O(N).
package bytebuf

import (
	"io"
)

// DefaultSize 默认首个分块大小
const DefaultSize = 1024

// Buffer 分块缓冲区，不可在多个 goroutine 间共享
type Buffer struct {
	chunks   [][]byte
	index    int // 当前写入的分块
	offset   int // 当前分块内已写入的字节数
	size     int
	minChunk int
}

// New returns an empty buffer whose first chunk holds sizeHint bytes.
func New(sizeHint int) *Buffer {
	if sizeHint <= 0 {
		sizeHint = DefaultSize
	}
	return &Buffer{
		chunks:   [][]byte{make([]byte, sizeHint)},
		minChunk: sizeHint,
	}
}

// Write appends p. It never fails.
func (b *Buffer) Write(p []byte) (int, error) {
	n := len(p)
	for len(p) > 0 {
		cur := b.chunks[b.index]
		if b.offset == len(cur) {
			b.advance(len(p))
			cur = b.chunks[b.index]
		}
		copied := copy(cur[b.offset:], p)
		b.offset += copied
		p = p[copied:]
	}
	b.size += n
	return n, nil
}

// WriteString appends s.
func (b *Buffer) WriteString(s string) (int, error) {
	n := len(s)
	for len(s) > 0 {
		cur := b.chunks[b.index]
		if b.offset == len(cur) {
			b.advance(len(s))
			cur = b.chunks[b.index]
		}
		copied := copy(cur[b.offset:], s)
		b.offset += copied
		s = s[copied:]
	}
	b.size += n
	return n, nil
}

// WriteByte appends c.
func (b *Buffer) WriteByte(c byte) error {
	if b.offset == len(b.chunks[b.index]) {
		b.advance(1)
	}
	b.chunks[b.index][b.offset] = c
	b.offset++
	b.size++
	return nil
}

// advance moves the cursor to the next chunk, reusing one kept by Reset or
// allocating a chunk large enough for the pending bytes.
func (b *Buffer) advance(pending int) {
	b.index++
	b.offset = 0
	if b.index < len(b.chunks) {
		return
	}
	size := pending
	if size < b.minChunk {
		size = b.minChunk
	}
	b.chunks = append(b.chunks, make([]byte, size))
}

// Len returns the number of bytes written since the last Reset.
func (b *Buffer) Len() int {
	return b.size
}

// Reset empties the buffer but keeps its chunks for reuse.
func (b *Buffer) Reset() {
	b.index = 0
	b.offset = 0
	b.size = 0
}

// WriteTo drains every chunk up to the cursor into w, in order.
func (b *Buffer) WriteTo(w io.Writer) (int64, error) {
	var total int64
	for i := 0; i < b.index; i++ {
		n, err := w.Write(b.chunks[i])
		total += int64(n)
		if err != nil {
			return total, err
		}
	}
	n, err := w.Write(b.chunks[b.index][:b.offset])
	total += int64(n)
	return total, err
}

// Bytes returns a contiguous copy of the content. It is the only call that copies.
func (b *Buffer) Bytes() []byte {
	out := make([]byte, 0, b.size)
	for i := 0; i < b.index; i++ {
		out = append(out, b.chunks[i]...)
	}
	return append(out, b.chunks[b.index][:b.offset]...)
}

func (b *Buffer) String() string {
	return string(b.Bytes())
}

// Close is a no-op; the buffer only holds memory.
func (b *Buffer) Close() error {
	return nil
}
