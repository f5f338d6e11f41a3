// Copyright Elliot Nunn. Portions copyright 2009 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package flate decodes the DEFLATE compressed data format, described in
// RFC 1951, from a buffer that is already entirely in memory.
//
// Every call builds its own decoder state, so calls may run concurrently.
package flate

import "fmt"

const (
	// The next three numbers come from the RFC section 3.2.7, with the
	// additional proviso in section 3.2.5 which implies that distance codes
	// 30 and 31 should never occur in compressed data.
	maxNumLit      = 286
	maxNumDist     = 30
	numCodes       = 19 // number of codes in Huffman meta-code
	endBlockMarker = 256
)

// Base values and extra bit counts for length codes 257..285 and
// distance codes 0..29 (RFC section 3.2.5).
var (
	lengthBase  = [...]uint16{3, 4, 5, 6, 7, 8, 9, 10, 11, 13, 15, 17, 19, 23, 27, 31, 35, 43, 51, 59, 67, 83, 99, 115, 131, 163, 195, 227, 258}
	lengthExtra = [...]uint8{0, 0, 0, 0, 0, 0, 0, 0, 1, 1, 1, 1, 2, 2, 2, 2, 3, 3, 3, 3, 4, 4, 4, 4, 5, 5, 5, 5, 0}
	distBase    = [...]uint16{1, 2, 3, 4, 5, 7, 9, 13, 17, 25, 33, 49, 65, 97, 129, 193, 257, 385, 513, 769, 1025, 1537, 2049, 3073, 4097, 6145, 8193, 12289, 16385, 24577}
	distExtra   = [...]uint8{0, 0, 0, 0, 1, 1, 2, 2, 3, 3, 4, 4, 5, 5, 6, 6, 7, 7, 8, 8, 9, 9, 10, 10, 11, 11, 12, 12, 13, 13}
)

var codeOrder = [...]int{16, 17, 18, 0, 8, 7, 9, 6, 10, 5, 11, 4, 12, 3, 13, 2, 14, 1, 15}

// Stats describes the block structure of a decoded stream.
type Stats struct {
	Blocks, Stored, Fixed, Dynamic int
	InputBits                      int64 // consumed, including the final block's padding bits
}

// Inflate decodes a raw DEFLATE stream.
//
// If size is not negative the output is allocated once and the stream
// must decode to exactly size bytes. Otherwise the output grows as needed.
func Inflate(src []byte, size int) ([]byte, error) {
	out, _, err := InflateStats(src, size)
	return out, err
}

// MaxExpansion is the most that n bytes of DEFLATE can decode to:
// a 258-byte match costs at least two bits, one for the length and one for the distance.
func MaxExpansion(n int) int64 {
	return int64(n)*8/2*258 + 258
}

// InflateStats is [Inflate], also reporting what was decoded.
func InflateStats(src []byte, size int) ([]byte, Stats, error) {
	if int64(size) > MaxExpansion(len(src)) {
		err := &DataError{Err: ErrCorrupt, Detail: fmt.Sprintf("%d bytes cannot decode to %d", len(src), size)}
		return nil, Stats{}, err
	}
	d := decoder{
		in:  cursor{data: src},
		out: newOutput(size, 2*len(src)),
	}
	out, err := d.run()
	d.stats.InputBits = d.in.pos
	return out, d.stats, err
}

// Decompress state, private to one call.
type decoder struct {
	in    cursor
	out   output
	stats Stats

	// scratch for dynamic blocks, reused block to block
	lit, dist, clen table
	lengths         [maxNumLit + 32]uint8
}

func (d *decoder) run() (ret []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			b, ok := r.(bail)
			if !ok {
				panic(r)
			}
			ret, err = nil, &DataError{Offset: d.in.pos, Err: b.err, Detail: b.detail}
		}
	}()

	fixedTablesInit()
	for !d.nextBlock() {
	}
	return d.out.bytes(), nil
}

// nextBlock decodes one block and reports whether it was the last.
func (d *decoder) nextBlock() (final bool) {
	final = d.in.bits(1) == 1
	typ := d.in.bits(2)
	d.stats.Blocks++

	switch typ {
	case 0:
		d.stats.Stored++
		d.dataBlock()
	case 1:
		// compressed, fixed Huffman tables
		d.stats.Fixed++
		d.huffmanBlock(&fixedLit, &fixedDst)
	case 2:
		// compressed, dynamic Huffman tables
		d.stats.Dynamic++
		d.readHuffman()
		d.huffmanBlock(&d.lit, &d.dist)
	default:
		// 3 is reserved.
		corrupt("reserved block type")
	}
	return final
}

// RFC 1951 section 3.2.7.
// Compression with dynamic Huffman codes
func (d *decoder) readHuffman() {
	// HLIT[5], HDIST[5], HCLEN[4].
	nlit := int(d.in.bits(5)) + 257
	if nlit > maxNumLit {
		corrupt("too many literal/length codes")
	}
	ndist := int(d.in.bits(5)) + 1 // 31 and 32 are legal here but not when decoded
	nclen := int(d.in.bits(4)) + 4 // numCodes is 19, so nclen is always valid.

	// (HCLEN+4)*3 bits: code lengths in the magic codeOrder order.
	var codebits [numCodes]uint8
	for i := 0; i < nclen; i++ {
		codebits[codeOrder[i]] = uint8(d.in.bits(3))
	}
	if !d.clen.build(codebits[:]) {
		corrupt("bad code length code")
	}

	// HLIT + 257 code lengths, HDIST + 1 code lengths,
	// using the code length Huffman code.
	lengths := d.lengths[:nlit+ndist]
	for i, n := 0, len(lengths); i < n; {
		x := d.sym(&d.clen)
		if x < 16 {
			// Actual length.
			lengths[i] = uint8(x)
			i++
			continue
		}
		// Repeat previous length or zero.
		var rep int
		var nb uint
		var b uint8
		switch x {
		case 16:
			rep, nb = 3, 2
			if i == 0 {
				corrupt("repeat with no previous length")
			}
			b = lengths[i-1]
		case 17:
			rep, nb = 3, 3
		case 18:
			rep, nb = 11, 7
		default:
			corrupt("bad code length symbol")
		}
		rep += int(d.in.bits(nb))
		if i+rep > n {
			corrupt("code length repeat overflows")
		}
		for j := 0; j < rep; j++ {
			lengths[i] = b
			i++
		}
	}

	if lengths[endBlockMarker] == 0 {
		corrupt("no end-of-block code")
	}
	if !d.lit.build(lengths[:nlit]) || !d.dist.build(lengths[nlit:]) {
		corrupt("bad literal/length or distance code")
	}
}

// Decode a single Huffman block.
// hl and hd are the tables for the lit/length values
// and the distance values, respectively.
func (d *decoder) huffmanBlock(hl, hd *table) {
	for {
		// Read literal and/or (length, distance) according to RFC section 3.2.3.
		v := d.sym(hl)
		switch {
		case v < 256:
			d.out.writeByte(byte(v))
			continue
		case v == endBlockMarker:
			return
		case v >= maxNumLit:
			corrupt("bad length symbol")
		}

		v -= 257
		length := int(lengthBase[v]) + int(d.in.bits(uint(lengthExtra[v])))

		dv := d.sym(hd)
		if dv >= maxNumDist {
			corrupt("bad distance symbol")
		}
		dist := int(distBase[dv]) + int(d.in.bits(uint(distExtra[dv])))

		d.out.copyBack(dist, length)
	}
}

// Copy a single uncompressed data block from input to output.
func (d *decoder) dataBlock() {
	// Discard current half-byte.
	d.in.align()

	// Length then ones-complement of length.
	n := d.in.bits(16)
	nn := d.in.bits(16)
	if uint16(nn) != ^uint16(n) {
		corrupt("stored block length check")
	}
	d.out.write(d.in.bytes(int(n)))
}

// Read the next Huffman-encoded symbol according to t.
func (d *decoder) sym(t *table) int {
	entry := t.entries[d.in.peek(t.maxBits)]
	n := uint(entry & tableCountMask)
	if n == 0 {
		// either an unused code, or zero fill past the end of the input
		if d.in.remaining() < int64(t.maxBits) {
			truncated()
		}
		corrupt("invalid Huffman code")
	}
	d.in.skip(n)
	return int(entry >> tableValueShift)
}
