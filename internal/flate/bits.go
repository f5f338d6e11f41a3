// Copyright Elliot Nunn. Portions copyright 2009 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package flate

// cursor reads little-endian bit fields from a fully materialised buffer.
// Bit 0 of the stream is the least significant bit of data[0].
type cursor struct {
	data []byte
	pos  int64 // bits consumed
}

func (c *cursor) remaining() int64 {
	return int64(len(c.data))*8 - c.pos
}

// peek returns the next n bits (n <= 32) without consuming them,
// zero-filled where the buffer runs out.
func (c *cursor) peek(n uint) uint32 {
	i := c.pos >> 3
	var w uint64
	for k := int64(0); k < 5 && i+k < int64(len(c.data)); k++ {
		w |= uint64(c.data[i+k]) << (8 * k)
	}
	return uint32(w>>(c.pos&7)) & (uint32(1)<<n - 1)
}

// bits consumes an n-bit field, n <= 32.
func (c *cursor) bits(n uint) uint32 {
	if int64(n) > c.remaining() {
		truncated()
	}
	v := c.peek(n)
	c.pos += int64(n)
	return v
}

func (c *cursor) skip(n uint) {
	if int64(n) > c.remaining() {
		truncated()
	}
	c.pos += int64(n)
}

// align discards bits up to the next byte boundary.
func (c *cursor) align() {
	c.pos = (c.pos + 7) &^ 7
}

// bytes consumes n whole bytes. The cursor must be aligned.
func (c *cursor) bytes(n int) []byte {
	start := c.pos >> 3
	if int64(n) > int64(len(c.data))-start {
		truncated()
	}
	c.pos += int64(n) * 8
	return c.data[start : start+int64(n)]
}
