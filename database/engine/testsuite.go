// Copyright (c) 2024 The posd developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package engine

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
)

// heightKey builds a key shaped like the stake index height records so the
// suite exercises the same ordering the index relies on.
func heightKey(prefix byte, height uint32) []byte {
	key := make([]byte, 5)
	key[0] = prefix
	binary.BigEndian.PutUint32(key[1:], height)
	return key
}

// TestSuiteEngine runs the behaviour every Engine backend must share.
func TestSuiteEngine(t *testing.T, open func() Engine) {
	t.Run("BatchSnapshot", func(t *testing.T) {
		engine := open()
		defer engine.Close()

		b, err := engine.NewBatch()
		require.NoErrorf(t, err, "failed to create batch")

		key := heightKey('h', 7)
		value := []byte("header-7")
		err = b.Put(key, value)
		require.NoErrorf(t, err, "failed to put data into batch")
		require.Equal(t, 1, b.Len())

		// Uncommitted writes are invisible to snapshots.
		snapshot, err := engine.Snapshot()
		require.NoErrorf(t, err, "failed to create snapshot")

		has, err := snapshot.Has(key)
		require.NoErrorf(t, err, "failed to check if key exists in snapshot")
		require.Falsef(t, has, "expected key to not exist in snapshot")

		gotValue, err := snapshot.Get(key)
		require.ErrorIs(t, err, ErrNotFound)
		require.Nil(t, gotValue, "expected to get nil value from snapshot")
		snapshot.Release()

		err = b.Commit()
		require.NoErrorf(t, err, "failed to commit batch")

		snapshot, err = engine.Snapshot()
		require.NoErrorf(t, err, "failed to create snapshot")

		gotValue, err = snapshot.Get(key)
		require.NoErrorf(t, err, "failed to get value from snapshot")
		require.Equalf(t, value, gotValue, "snapshot value mismatch")

		has, err = snapshot.Has(key)
		require.NoError(t, err)
		require.True(t, has)
		snapshot.Release()
	})

	t.Run("DeleteCommitted", func(t *testing.T) {
		engine := open()
		defer engine.Close()

		key := heightKey('b', 1)
		b, err := engine.NewBatch()
		require.NoError(t, err)
		require.NoError(t, b.Put(key, []byte{1}))
		require.NoError(t, b.Commit())

		b, err = engine.NewBatch()
		require.NoError(t, err)
		require.NoError(t, b.Delete(key))
		require.NoError(t, b.Commit())

		snapshot, err := engine.Snapshot()
		require.NoError(t, err)
		defer snapshot.Release()

		_, err = snapshot.Get(key)
		require.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("PrefixIteration", func(t *testing.T) {
		for _, test := range []struct {
			name    string
			heights []uint32 // written in this order under 'h'
			others  []uint32 // written under 'b', never returned
			ranges  *Range
			expect  []uint32
		}{
			{
				name:    "ascending by height",
				heights: []uint32{3, 1, 2},
				ranges:  BytesPrefix([]byte{'h'}),
				expect:  []uint32{1, 2, 3},
			},
			{
				name:    "big endian ordering across bytes",
				heights: []uint32{256, 255, 65536},
				others:  []uint32{1},
				ranges:  BytesPrefix([]byte{'h'}),
				expect:  []uint32{255, 256, 65536},
			},
			{
				name:    "bounded range",
				heights: []uint32{10, 20, 30, 40},
				ranges:  &Range{Start: heightKey('h', 20), Limit: heightKey('h', 40)},
				expect:  []uint32{20, 30},
			},
			{
				name:    "empty range",
				heights: []uint32{10},
				ranges:  &Range{Start: heightKey('h', 20), Limit: heightKey('h', 20)},
				expect:  nil,
			},
		} {
			t.Run(test.name, func(t *testing.T) {
				engine := open()
				defer engine.Close()

				b, err := engine.NewBatch()
				require.NoErrorf(t, err, "failed to create batch")
				for _, h := range test.heights {
					require.NoError(t, b.Put(heightKey('h', h), heightKey('v', h)))
				}
				for _, h := range test.others {
					require.NoError(t, b.Put(heightKey('b', h), nil))
				}
				require.NoErrorf(t, b.Commit(), "failed to commit batch")

				snapshot, err := engine.Snapshot()
				require.NoErrorf(t, err, "failed to create snapshot")

				iter := snapshot.NewIterator(test.ranges)
				var got []uint32
				for iter.Next() {
					require.Equal(t, heightKey('v', binary.BigEndian.Uint32(iter.Key()[1:])), iter.Value())
					got = append(got, binary.BigEndian.Uint32(iter.Key()[1:]))
				}
				require.NoError(t, iter.Error())
				require.Equal(t, test.expect, got)

				iter.Release()
				snapshot.Release()
			})
		}
	})

	t.Run("DbClose", func(t *testing.T) {
		engine := open()

		b, err := engine.NewBatch()
		require.NoErrorf(t, err, "failed to create batch")

		b.Discard()
		b.Discard() // multiple calls to discard should be safe
		err = b.Commit()
		require.ErrorIs(t, err, ErrBatchDone)

		snapshot, err := engine.Snapshot()
		require.NoErrorf(t, err, "failed to create snapshot")

		iterator := snapshot.NewIterator(nil)
		require.NoErrorf(t, iterator.Error(), "failed to create iterator")
		iterator.Release()
		iterator.Release() // multiple calls to release should be safe

		snapshot.Release()
		snapshot.Release() // multiple calls to release should be safe
		_, err = snapshot.Get([]byte("key"))
		require.ErrorIs(t, err, ErrReleased)

		err = engine.Close()
		require.NoErrorf(t, err, "failed to close engine")

		err = engine.Close()
		require.ErrorIs(t, err, ErrClosed)

		_, err = engine.NewBatch()
		require.ErrorIs(t, err, ErrClosed)

		_, err = engine.Snapshot()
		require.ErrorIs(t, err, ErrClosed)
	})
}
