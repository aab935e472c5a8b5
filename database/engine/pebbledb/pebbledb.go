// Copyright (c) 2024 The posd developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package pebbledb implements engine.Engine on top of pebble.
package pebbledb

import (
	"errors"
	"runtime"
	"sync/atomic"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/bloom"
	"github.com/posmint/posd/database/engine"
)

// DB is a pebble backed engine.
type DB struct {
	pdb    *pebble.DB
	wopts  *pebble.WriteOptions
	closed atomic.Bool
}

// Enforce DB implements the engine.Engine interface.
var _ engine.Engine = (*DB)(nil)

// levelOptions returns per level table options.  The stake index holds one
// small record per header, so tables start small and double per level.
func levelOptions() []pebble.LevelOptions {
	levels := make([]pebble.LevelOptions, 4)
	size := int64(2 * 1024 * 1024)
	for i := range levels {
		levels[i] = pebble.LevelOptions{
			TargetFileSize: size,
			FilterPolicy:   bloom.FilterPolicy(10),
		}
		size *= 2
	}
	return levels
}

// Open opens or creates the database at dbPath.
func Open(dbPath string, opts *engine.Options) (*DB, error) {
	cache := pebble.NewCache(opts.CacheBytes())
	defer cache.Unref()

	pdb, err := pebble.Open(dbPath, &pebble.Options{
		Cache:                    cache,
		ErrorIfExists:            opts != nil && opts.Create,
		MaxOpenFiles:             opts.HandleCount(),
		MaxConcurrentCompactions: runtime.NumCPU,
		Levels:                   levelOptions(),
	})
	if err != nil {
		return nil, err
	}

	wopts := pebble.Sync
	if opts != nil && opts.NoSync {
		wopts = pebble.NoSync
	}
	return &DB{pdb: pdb, wopts: wopts}, nil
}

// NewBatch starts a write-only pebble batch.
func (d *DB) NewBatch() (engine.Batch, error) {
	if d.closed.Load() {
		return nil, engine.ErrClosed
	}
	return &batch{db: d, b: d.pdb.NewBatch()}, nil
}

// Snapshot returns a read view pinned to the current sequence number.
func (d *DB) Snapshot() (engine.Snapshot, error) {
	if d.closed.Load() {
		return nil, engine.ErrClosed
	}
	return &snapshot{snap: d.pdb.NewSnapshot()}, nil
}

// Close closes the database.
func (d *DB) Close() error {
	if d.closed.Swap(true) {
		return engine.ErrClosed
	}
	return d.pdb.Close()
}

// convertErr maps pebble errors onto the engine errors.
func convertErr(err error) error {
	switch {
	case errors.Is(err, pebble.ErrNotFound):
		return engine.ErrNotFound
	case errors.Is(err, pebble.ErrClosed):
		return engine.ErrClosed
	}
	return err
}
