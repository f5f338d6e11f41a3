// Copyright Elliot Nunn. Portions copyright 2009 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package flate

import (
	"errors"
	"fmt"
)

var (
	// ErrCorrupt means the stream broke a rule of RFC 1951: a reserved block type,
	// an invalid code, an out-of-range symbol or a distance reaching before the output.
	ErrCorrupt = errors.New("flate: corrupt input")

	// ErrTruncated means the stream ended before the final block did.
	ErrTruncated = errors.New("flate: truncated input")
)

// DataError locates a decoding failure in the compressed stream.
type DataError struct {
	Offset int64 // in bits from the start of the stream
	Err    error // ErrCorrupt or ErrTruncated
	Detail string
}

func (e *DataError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("%v at bit %d", e.Err, e.Offset)
	}
	return fmt.Sprintf("%v at bit %d: %s", e.Err, e.Offset, e.Detail)
}

func (e *DataError) Unwrap() error { return e.Err }

// bail is the panic value used inside the decoder, recovered by decode
type bail struct {
	err    error
	detail string
}

func corrupt(detail string) { panic(bail{ErrCorrupt, detail}) }
func truncated()            { panic(bail{ErrTruncated, ""}) }
