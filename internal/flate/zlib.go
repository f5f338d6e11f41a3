// Copyright Elliot Nunn
// Licensed under the MIT license

package flate

import (
	"errors"
	"fmt"
)

var ErrHeader = errors.New("flate: invalid zlib header")

// InflateZlib decodes a zlib stream (RFC 1950) wrapping a DEFLATE stream.
// The Adler-32 trailer must be present but is not checked.
func InflateZlib(src []byte) ([]byte, error) {
	if len(src) < 2 {
		return nil, &DataError{Offset: int64(len(src)) * 8, Err: ErrTruncated, Detail: "zlib header"}
	}
	cmf, flg := src[0], src[1]
	switch {
	case cmf&0x0f != 8:
		return nil, fmt.Errorf("%w: compression method %d", ErrHeader, cmf&0x0f)
	case cmf>>4 > 7:
		return nil, fmt.Errorf("%w: window size 2^%d", ErrHeader, cmf>>4+8)
	case (uint(cmf)<<8|uint(flg))%31 != 0:
		return nil, fmt.Errorf("%w: check bits", ErrHeader)
	case flg&0x20 != 0:
		return nil, fmt.Errorf("%w: preset dictionary", ErrHeader)
	}

	body := src[2:]
	out, stats, err := InflateStats(body, -1)
	if err != nil {
		return nil, err
	}
	end := (stats.InputBits + 7) / 8
	if int64(len(body))-end < 4 {
		return nil, &DataError{Offset: (2 + int64(len(body))) * 8, Err: ErrTruncated, Detail: "zlib trailer"}
	}
	return out, nil
}
