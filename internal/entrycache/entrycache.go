// Copyright (c) Elliot Nunn
// Licensed under the MIT license

// Package entrycache keeps decoded zip entries so that they need not be inflated twice.
package entrycache

import (
	"fmt"

	"github.com/cespare/xxhash/v2"
	"github.com/elliotnunn/memzip/internal/zip"
)

// Store is a byte-slice cache keyed by string.
// Implementations must not retain or modify a slice passed to Add
// in a way visible to a caller of Get, and vice versa.
type Store interface {
	Get(key string) ([]byte, bool)
	Add(key string, content []byte)
}

// Entries binds a Store to one archive.
type Entries struct {
	store   Store
	archive uint64
}

// ForArchive returns a per-archive view of s.
// Two archives with the same bytes share cache entries.
func ForArchive(s Store, data []byte) *Entries {
	return &Entries{store: s, archive: Digest(data)}
}

func (e *Entries) Get(f *zip.File) ([]byte, bool) { return e.store.Get(Key(e.archive, f)) }
func (e *Entries) Add(f *zip.File, content []byte) { e.store.Add(Key(e.archive, f), content) }

// Digest identifies a buffer.
func Digest(data []byte) uint64 {
	return xxhash.Sum64(data)
}

// Key names one entry of an archive.
// The header offset is part of the key because names can repeat.
func Key(archive uint64, f *zip.File) string {
	return fmt.Sprintf("%016x:%08x:%s", archive, f.HeaderOffset, f.Name)
}
