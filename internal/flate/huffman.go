// Copyright Elliot Nunn. Portions copyright 2009 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package flate

import (
	"math/bits"
	"sync"
)

const (
	maxCodeLen = 15 // max length of Huffman code

	// entry & 15 is the code length, entry >> 4 is the symbol
	tableCountMask  = 15
	tableValueShift = 4
)

// table decodes one Huffman alphabet with a single lookup.
// It is indexed by the next maxBits bits of the stream, so every code
// appears at each index whose low bits equal the code reversed.
// An entry of zero marks a bit pattern that no symbol owns.
type table struct {
	entries []uint16
	maxBits uint
}

// canonicalCodes assigns codes to symbols from their lengths alone (RFC 1951 3.2.2).
// Shorter codes come first, and within a length, lower symbols come first.
// It fails if a length is too long or if the lengths are over-subscribed.
// Incomplete codes are allowed: their unused patterns decode as corrupt.
func canonicalCodes(lengths []uint8) (codes []uint16, maxBits uint, ok bool) {
	var count [maxCodeLen + 1]int
	for _, n := range lengths {
		if n > maxCodeLen {
			return nil, 0, false
		}
		count[n]++
		maxBits = max(maxBits, uint(n))
	}
	count[0] = 0

	// Kraft's inequality, in units of 2^-len
	left := 1
	for n := 1; n <= maxCodeLen; n++ {
		left <<= 1
		left -= count[n]
		if left < 0 {
			return nil, 0, false
		}
	}

	var next [maxCodeLen + 1]int
	code := 0
	for n := 1; n <= maxCodeLen; n++ {
		code = (code + count[n-1]) << 1
		next[n] = code
	}

	codes = make([]uint16, len(lengths))
	for sym, n := range lengths {
		if n == 0 {
			continue
		}
		codes[sym] = uint16(next[n])
		next[n]++
	}
	return codes, maxBits, true
}

// build replaces the contents of t, reusing its storage where possible.
func (t *table) build(lengths []uint8) bool {
	codes, maxBits, ok := canonicalCodes(lengths)
	if !ok {
		return false
	}

	size := 1 << maxBits
	if cap(t.entries) >= size {
		t.entries = t.entries[:size]
		clear(t.entries)
	} else {
		t.entries = make([]uint16, size)
	}
	t.maxBits = maxBits

	for sym, n := range lengths {
		if n == 0 {
			continue
		}
		reverse := int(bits.Reverse16(codes[sym]) >> (16 - n))
		entry := uint16(sym)<<tableValueShift | uint16(n)
		for off := reverse; off < size; off += 1 << n {
			t.entries[off] = entry
		}
	}
	return true
}

// Initialize the fixed tables only once upon first use.
// They are never written again, so concurrent decoders may share them.
var (
	fixedOnce          sync.Once
	fixedLit, fixedDst table
)

func fixedTablesInit() {
	fixedOnce.Do(func() {
		// These come from the RFC section 3.2.6.
		var lengths [288]uint8
		for i := 0; i < 144; i++ {
			lengths[i] = 8
		}
		for i := 144; i < 256; i++ {
			lengths[i] = 9
		}
		for i := 256; i < 280; i++ {
			lengths[i] = 7
		}
		for i := 280; i < 288; i++ {
			lengths[i] = 8
		}
		fixedLit.build(lengths[:])

		var dist [32]uint8
		for i := range dist {
			dist[i] = 5
		}
		fixedDst.build(dist[:])
	})
}
