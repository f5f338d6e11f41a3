// Copyright (c) Elliot Nunn
// Licensed under the MIT license

package entrycache

import (
	"errors"
	"log/slog"
	"slices"

	"github.com/cockroachdb/pebble/v2"
)

// Disk is a Store that survives the process, backed by a Pebble database.
type Disk struct {
	db *pebble.DB
}

// OpenDisk opens or creates the database in dir.
func OpenDisk(dir string) (*Disk, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, err
	}
	return &Disk{db: db}, nil
}

func (d *Disk) Get(key string) ([]byte, bool) {
	v, closer, err := d.db.Get([]byte(key))
	if err != nil {
		if !errors.Is(err, pebble.ErrNotFound) {
			slog.Warn("cacheReadError", "key", key, "err", err)
		}
		return nil, false
	}
	defer closer.Close()
	return slices.Clone(v), true // v is only valid until closer.Close
}

func (d *Disk) Add(key string, content []byte) {
	err := d.db.Set([]byte(key), content, pebble.NoSync)
	if err != nil {
		slog.Warn("cacheWriteError", "key", key, "err", err)
	}
}

func (d *Disk) Close() error {
	return d.db.Close()
}
