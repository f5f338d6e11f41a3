package main

import (
	"bytes"
	"compress/bzip2"
	"compress/gzip"
	"errors"
	"io"
	"log/slog"

	"github.com/therootcompany/xz"
)

// an archive wrapped more deeply than this is probably hostile
const maxLayers = 4

var errTooDeep = errors.New("too many layers of compression")

// unwrap removes any gzip, bzip2 or xz layers around an archive.
// Data that is not recognised is returned unchanged.
func unwrap(data []byte) ([]byte, error) {
	for range maxLayers {
		var kind string
		var r io.Reader
		var err error
		switch {
		case bytes.HasPrefix(data, []byte("\x1f\x8b")):
			kind = "gzip"
			r, err = gzip.NewReader(bytes.NewReader(data))
		case bytes.HasPrefix(data, []byte("BZh")):
			kind = "bzip2"
			r = bzip2.NewReader(bytes.NewReader(data))
		case bytes.HasPrefix(data, []byte("\xfd7zXZ\x00")):
			kind = "xz"
			r, err = xz.NewReader(bytes.NewReader(data), xz.DefaultDictMax)
		default:
			return data, nil
		}
		if err != nil {
			return nil, err
		}
		inner, err := io.ReadAll(r)
		if err != nil {
			return nil, err
		}
		slog.Debug("unwrapped", "kind", kind, "from", len(data), "to", len(inner))
		data = inner
	}
	return nil, errTooDeep
}
