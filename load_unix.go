//go:build unix

package main

import (
	"io"
	"log/slog"
	"os"

	"golang.org/x/sys/unix"
)

// load maps a file into memory, or reads it if it cannot be mapped.
// The release function must be called once the data is no longer used.
func load(name string) ([]byte, func(), error) {
	if name == "-" {
		b, err := io.ReadAll(os.Stdin)
		return b, func() {}, err
	}
	f, err := os.Open(name)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return nil, nil, err
	}
	size := st.Size()
	if !st.Mode().IsRegular() || size == 0 || int64(int(size)) != size {
		b, err := io.ReadAll(f)
		return b, func() {}, err
	}

	data, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		slog.Debug("mmapFailed", "path", name, "err", err)
		b, err := io.ReadAll(f)
		return b, func() {}, err
	}
	return data, func() {
		if err := unix.Munmap(data); err != nil {
			slog.Warn("munmapFailed", "path", name, "err", err)
		}
	}, nil
}
