// Copyright (c) 2024 The posd developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package leveldb

import (
	"github.com/posmint/posd/database/engine"
	"github.com/syndtr/goleveldb/leveldb"
)

type batch struct {
	db   *DB
	b    leveldb.Batch
	done bool
}

func (b *batch) Put(key, value []byte) error {
	if b.done {
		return engine.ErrBatchDone
	}
	b.b.Put(key, value)
	return nil
}

func (b *batch) Delete(key []byte) error {
	if b.done {
		return engine.ErrBatchDone
	}
	b.b.Delete(key)
	return nil
}

func (b *batch) Len() int {
	return b.b.Len()
}

// Commit writes every buffered record atomically.
func (b *batch) Commit() error {
	if b.done {
		return engine.ErrBatchDone
	}
	b.done = true
	if b.db.closed.Load() {
		return engine.ErrClosed
	}
	err := b.db.ldb.Write(&b.b, b.db.wopts)
	b.b.Reset()
	return convertErr(err)
}

func (b *batch) Discard() {
	b.done = true
	b.b.Reset()
}
