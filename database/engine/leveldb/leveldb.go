// Copyright (c) 2024 The posd developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package leveldb implements engine.Engine on top of goleveldb.
package leveldb

import (
	"sync/atomic"

	"github.com/posmint/posd/database/engine"
	"github.com/syndtr/goleveldb/leveldb"
	ldberrors "github.com/syndtr/goleveldb/leveldb/errors"
	"github.com/syndtr/goleveldb/leveldb/filter"
	"github.com/syndtr/goleveldb/leveldb/opt"
)

// DB is a goleveldb backed engine.
type DB struct {
	ldb    *leveldb.DB
	wopts  *opt.WriteOptions
	closed atomic.Bool
}

// Enforce DB implements the engine.Engine interface.
var _ engine.Engine = (*DB)(nil)

// Open opens or creates the database at dbPath.  A corrupted database is
// recovered from its table files before it is returned.
func Open(dbPath string, opts *engine.Options) (*DB, error) {
	lopts := opt.Options{
		ErrorIfExist:           opts != nil && opts.Create,
		Strict:                 opt.DefaultStrict,
		Compression:            opt.NoCompression,
		Filter:                 filter.NewBloomFilter(10),
		BlockCacheCapacity:     int(opts.CacheBytes()),
		OpenFilesCacheCapacity: opts.HandleCount(),
	}
	ldb, err := leveldb.OpenFile(dbPath, &lopts)
	if ldberrors.IsCorrupted(err) {
		ldb, err = leveldb.RecoverFile(dbPath, &lopts)
	}
	if err != nil {
		return nil, err
	}

	return &DB{
		ldb:   ldb,
		wopts: &opt.WriteOptions{Sync: opts == nil || !opts.NoSync},
	}, nil
}

// NewBatch starts a batch that is written with a single leveldb write.
func (d *DB) NewBatch() (engine.Batch, error) {
	if d.closed.Load() {
		return nil, engine.ErrClosed
	}
	return &batch{db: d}, nil
}

// Snapshot returns a read view pinned to the current sequence number.
func (d *DB) Snapshot() (engine.Snapshot, error) {
	if d.closed.Load() {
		return nil, engine.ErrClosed
	}
	snap, err := d.ldb.GetSnapshot()
	if err != nil {
		return nil, convertErr(err)
	}
	return &snapshot{snap: snap}, nil
}

// Close closes the database.
func (d *DB) Close() error {
	if d.closed.Swap(true) {
		return engine.ErrClosed
	}
	return d.ldb.Close()
}

// convertErr maps goleveldb errors onto the engine errors.
func convertErr(err error) error {
	switch err {
	case leveldb.ErrNotFound:
		return engine.ErrNotFound
	case leveldb.ErrClosed:
		return engine.ErrClosed
	case leveldb.ErrSnapshotReleased, leveldb.ErrIterReleased:
		return engine.ErrReleased
	}
	return err
}
