// Copyright (c) 2024 The posd developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package engine defines the ordered key/value store the stake index is kept
// in.  The leveldb and pebbledb subpackages provide the backends.
package engine

import "errors"

var (
	// ErrNotFound is returned by Snapshot.Get when the key does not exist.
	// Every backend maps its native not-found error onto it.
	ErrNotFound = errors.New("engine: key not found")

	// ErrClosed is returned by operations on a closed database.
	ErrClosed = errors.New("engine: database closed")

	// ErrReleased is returned by operations on a released snapshot or
	// iterator.
	ErrReleased = errors.New("engine: snapshot released")

	// ErrBatchDone is returned when a batch is used after Commit or
	// Discard.
	ErrBatchDone = errors.New("engine: batch already committed or discarded")
)

const (
	// DefaultCacheMB is the block cache size used when Options.CacheMB is
	// not set.
	DefaultCacheMB = 8

	// DefaultHandles is the open file limit used when Options.Handles is
	// not set.
	DefaultHandles = 64
)

// Options configure a backend when it is opened.
type Options struct {
	// Create makes opening fail when a database already exists at the
	// path.
	Create bool

	// CacheMB is the block cache size in MiB.
	CacheMB int

	// Handles limits the number of open table files.
	Handles int

	// NoSync skips the fsync when a batch is committed.
	NoSync bool
}

// CacheBytes returns the configured cache size in bytes.
func (o *Options) CacheBytes() int64 {
	if o == nil || o.CacheMB <= 0 {
		return DefaultCacheMB * 1024 * 1024
	}
	return int64(o.CacheMB) * 1024 * 1024
}

// HandleCount returns the configured open file limit.
func (o *Options) HandleCount() int {
	if o == nil || o.Handles <= 0 {
		return DefaultHandles
	}
	return o.Handles
}

// Engine is an ordered key/value store.  Reads go through snapshots and
// writes through batches, so readers never observe a partially applied
// record.
type Engine interface {
	// NewBatch starts a batch of writes.
	NewBatch() (Batch, error)

	// Snapshot returns a consistent read-only view of the database.
	Snapshot() (Snapshot, error)

	// Close closes the database.  Closing twice returns ErrClosed.
	Close() error
}

// Batch collects writes that Commit applies atomically.  A batch must be
// finished with exactly one Commit or any number of Discard calls.
type Batch interface {
	Put(key, value []byte) error
	Delete(key []byte) error

	// Len returns the number of buffered writes.
	Len() int

	Commit() error
	Discard()
}

// Snapshot is a point in time view of the database.  Values returned by Get
// are owned by the caller.
type Snapshot interface {
	Get(key []byte) ([]byte, error)
	Has(key []byte) (bool, error)
	NewIterator(r *Range) Iterator

	// Release frees the snapshot.  It is safe to call more than once.
	Release()
}
