// Copyright (c) 2024 The posd developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package engine

// Iterator walks the key/value pairs of a range in ascending key order.
type Iterator interface {
	// Next moves to the next pair.  The first call positions the iterator
	// on the first pair of its range.  It returns false once the range is
	// exhausted.
	Next() bool

	// Error returns any accumulated error.  Exhausting the range is not
	// an error.
	Error() error

	// Key and Value return the current pair, or nil when done.  The
	// slices are only valid until the next call to Next.
	Key() []byte
	Value() []byte

	// Release frees the iterator.  It is safe to call more than once.
	Release()
}

// Range is a half open key range.  A nil Start begins at the first key and a
// nil Limit runs to the last one.
type Range struct {
	Start []byte
	Limit []byte
}

// BytesPrefix returns the range of keys starting with prefix.
func BytesPrefix(prefix []byte) *Range {
	var limit []byte
	for i := len(prefix) - 1; i >= 0; i-- {
		if prefix[i] < 0xff {
			limit = make([]byte, i+1)
			copy(limit, prefix)
			limit[i]++
			break
		}
	}
	return &Range{Start: prefix, Limit: limit}
}

// emptyIterator yields nothing and reports err.
type emptyIterator struct {
	err error
}

// EmptyIterator returns an iterator over no pairs whose Error method returns
// err.  Backends return it when an iterator cannot be created.
func EmptyIterator(err error) Iterator {
	return emptyIterator{err: err}
}

func (emptyIterator) Next() bool     { return false }
func (i emptyIterator) Error() error { return i.err }
func (emptyIterator) Key() []byte    { return nil }
func (emptyIterator) Value() []byte  { return nil }
func (emptyIterator) Release()       {}
