// Copyright (c) 2024 The posd developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package leveldb

import (
	"github.com/posmint/posd/database/engine"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/util"
)

type snapshot struct {
	snap     *leveldb.Snapshot
	released bool
}

func (s *snapshot) Get(key []byte) ([]byte, error) {
	if s.released {
		return nil, engine.ErrReleased
	}
	val, err := s.snap.Get(key, nil)
	if err != nil {
		return nil, convertErr(err)
	}
	return val, nil
}

func (s *snapshot) Has(key []byte) (bool, error) {
	if s.released {
		return false, engine.ErrReleased
	}
	has, err := s.snap.Has(key, nil)
	return has, convertErr(err)
}

// NewIterator returns a goleveldb iterator, which already follows the
// Next-first contract of engine.Iterator.
func (s *snapshot) NewIterator(r *engine.Range) engine.Iterator {
	if s.released {
		return engine.EmptyIterator(engine.ErrReleased)
	}
	var slice *util.Range
	if r != nil {
		slice = &util.Range{Start: r.Start, Limit: r.Limit}
	}
	return s.snap.NewIterator(slice, nil)
}

func (s *snapshot) Release() {
	if !s.released {
		s.released = true
		s.snap.Release()
	}
}
