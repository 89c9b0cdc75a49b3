// Package codebuf implements the append-only code buffer that the x86
// emitter writes into: bounded byte/word appends and rel32
// backpatching over a fixed-size window, with an error that sticks
// until reset instead of a panic mid-emit.
package codebuf

import "encoding/binary"

// Buffer is a non-resizable, append-only byte window. It either
// borrows a slice from a region.Allocation or owns a private slice for
// tests.
type Buffer struct {
	data   []byte
	offset int
	errors bool
}

// New wraps an existing byte slice (typically a region allocation) as
// a Buffer starting at offset 0.
func New(backing []byte) *Buffer {
	return &Buffer{data: backing}
}

// NewScratch allocates a private buffer of the given capacity, used by
// tests and by callers that want to measure a block before installing
// it into the code region.
func NewScratch(capacity int) *Buffer {
	return &Buffer{data: make([]byte, capacity)}
}

// AppendU8 writes one byte at the current offset. Once the buffer is
// full, the byte is silently dropped and the error flag latches; every
// subsequent append/patch is a no-op until Reset.
func (b *Buffer) AppendU8(v byte) {
	if b.errors || b.offset >= len(b.data) {
		b.errors = true
		return
	}
	b.data[b.offset] = v
	b.offset++
}

// AppendU32LE writes four bytes in little-endian order.
func (b *Buffer) AppendU32LE(v uint32) {
	b.AppendU8(byte(v))
	b.AppendU8(byte(v >> 8))
	b.AppendU8(byte(v >> 16))
	b.AppendU8(byte(v >> 24))
}

// AppendU64LE writes eight bytes in little-endian order, used by
// mov_reg_imm64 and other wide immediates.
func (b *Buffer) AppendU64LE(v uint64) {
	b.AppendU32LE(uint32(v))
	b.AppendU32LE(uint32(v >> 32))
}

// AppendBytes writes a raw byte sequence, one AppendU8 at a time.
func (b *Buffer) AppendBytes(bs []byte) {
	for _, v := range bs {
		b.AppendU8(v)
	}
}

// Offset returns the current write position.
func (b *Buffer) Offset() int {
	return b.offset
}

// Bytes returns the written prefix of the buffer. The returned slice
// aliases the backing storage.
func (b *Buffer) Bytes() []byte {
	return b.data[:b.offset]
}

// PatchU32LE replaces four bytes at a previously recorded offset with
// the little-endian encoding of word. Used to backpatch rel32
// displacements once a branch target is known. Requires at+4 to be
// within the buffer's capacity (not only its written prefix); otherwise
// it is a no-op and the error flag latches.
func (b *Buffer) PatchU32LE(at int, word uint32) {
	if b.errors || at < 0 || at+4 > len(b.data) {
		b.errors = true
		return
	}
	binary.LittleEndian.PutUint32(b.data[at:at+4], word)
}

// Error reports whether any append or patch has been dropped since
// the last Reset.
func (b *Buffer) Error() bool {
	return b.errors
}

// Reset rewinds the buffer to offset 0 and clears the error flag,
// without altering the backing storage's capacity.
func (b *Buffer) Reset() {
	b.offset = 0
	b.errors = false
}

// Cap returns the buffer's total capacity.
func (b *Buffer) Cap() int {
	return len(b.data)
}
