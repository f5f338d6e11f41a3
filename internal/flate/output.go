// Copyright Elliot Nunn
// Licensed under the MIT license

package flate

// output accumulates decompressed bytes and expands back-references.
// When fixed is set the buffer was sized from a trusted header
// and must be filled exactly; otherwise it grows by doubling.
type output struct {
	buf   []byte
	n     int
	fixed bool
}

func newOutput(size int, guess int) output {
	if size >= 0 {
		return output{buf: make([]byte, size), fixed: true}
	}
	return output{buf: make([]byte, max(guess, 64))}
}

// ensure makes room for extra more bytes.
func (o *output) ensure(extra int) {
	need := o.n + extra
	if need <= len(o.buf) {
		return
	}
	if o.fixed {
		corrupt("output exceeds declared size")
	}
	grown := make([]byte, max(2*len(o.buf), need))
	copy(grown, o.buf[:o.n])
	o.buf = grown
}

func (o *output) writeByte(b byte) {
	o.ensure(1)
	o.buf[o.n] = b
	o.n++
}

func (o *output) write(p []byte) {
	o.ensure(len(p))
	o.n += copy(o.buf[o.n:], p)
}

// copyBack appends length bytes starting distance bytes back.
// The copy runs forward one byte at a time, so a distance shorter than
// the length repeats the tail of the output (distance 1 is a run of one byte).
func (o *output) copyBack(distance, length int) {
	if distance < 1 || distance > o.n {
		corrupt("distance too far back")
	}
	o.ensure(length)
	dst := o.buf[o.n : o.n+length]
	src := o.n - distance
	for i := range dst {
		dst[i] = o.buf[src+i]
	}
	o.n += length
}

func (o *output) bytes() []byte {
	if o.fixed && o.n != len(o.buf) {
		corrupt("short output")
	}
	return o.buf[:o.n:o.n]
}
