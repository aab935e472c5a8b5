// Copyright (c) 2024 The posd developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package pebbledb

import (
	"github.com/cockroachdb/pebble"
	"github.com/posmint/posd/database/engine"
)

type batch struct {
	db *DB
	b  *pebble.Batch
}

func (b *batch) Put(key, value []byte) error {
	if b.b == nil {
		return engine.ErrBatchDone
	}
	return b.b.Set(key, value, nil)
}

func (b *batch) Delete(key []byte) error {
	if b.b == nil {
		return engine.ErrBatchDone
	}
	return b.b.Delete(key, nil)
}

func (b *batch) Len() int {
	if b.b == nil {
		return 0
	}
	return int(b.b.Count())
}

// Commit applies the batch atomically and returns it to pebble's pool.
func (b *batch) Commit() error {
	if b.b == nil {
		return engine.ErrBatchDone
	}
	pb := b.b
	b.b = nil
	defer pb.Close()

	if b.db.closed.Load() {
		return engine.ErrClosed
	}
	return convertErr(pb.Commit(b.db.wopts))
}

func (b *batch) Discard() {
	if b.b != nil {
		b.b.Close()
		b.b = nil
	}
}
