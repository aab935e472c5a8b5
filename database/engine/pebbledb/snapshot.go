// Copyright (c) 2024 The posd developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package pebbledb

import (
	"github.com/cockroachdb/pebble"
	"github.com/posmint/posd/database/engine"
)

type snapshot struct {
	snap     *pebble.Snapshot
	released bool
}

// Get copies the value out of pebble's buffer before the closer runs.
func (s *snapshot) Get(key []byte) ([]byte, error) {
	if s.released {
		return nil, engine.ErrReleased
	}
	raw, closer, err := s.snap.Get(key)
	if err != nil {
		return nil, convertErr(err)
	}
	defer closer.Close()

	val := make([]byte, len(raw))
	copy(val, raw)
	return val, nil
}

func (s *snapshot) Has(key []byte) (bool, error) {
	_, err := s.Get(key)
	switch err {
	case nil:
		return true, nil
	case engine.ErrNotFound:
		return false, nil
	}
	return false, err
}

func (s *snapshot) NewIterator(r *engine.Range) engine.Iterator {
	if s.released {
		return engine.EmptyIterator(engine.ErrReleased)
	}
	var iopts pebble.IterOptions
	if r != nil {
		iopts.LowerBound = r.Start
		iopts.UpperBound = r.Limit
	}
	it, err := s.snap.NewIter(&iopts)
	if err != nil {
		return engine.EmptyIterator(convertErr(err))
	}
	return &iterator{it: it}
}

func (s *snapshot) Release() {
	if !s.released {
		s.released = true
		s.snap.Close()
	}
}

// iterator adapts pebble's positioned iterator, which must be seeked before
// use, to the Next-first contract of engine.Iterator.
type iterator struct {
	it      *pebble.Iterator
	started bool
	err     error
}

func (i *iterator) Next() bool {
	if i.it == nil {
		return false
	}
	if !i.started {
		i.started = true
		return i.it.First()
	}
	return i.it.Next()
}

func (i *iterator) Key() []byte {
	if i.it == nil || !i.it.Valid() {
		return nil
	}
	return i.it.Key()
}

func (i *iterator) Value() []byte {
	if i.it == nil || !i.it.Valid() {
		return nil
	}
	return i.it.Value()
}

func (i *iterator) Error() error {
	if i.it == nil {
		return i.err
	}
	return i.it.Error()
}

// Release closes the pebble iterator and keeps any error it reported.
func (i *iterator) Release() {
	if i.it != nil {
		i.err = i.it.Close()
		i.it = nil
	}
}
