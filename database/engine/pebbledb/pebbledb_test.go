// Copyright (c) 2024 The posd developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package pebbledb

import (
	"path/filepath"
	"testing"

	"github.com/posmint/posd/database/engine"
	"github.com/stretchr/testify/require"
)

func TestSuitePebbleDB(t *testing.T) {
	engine.TestSuiteEngine(t, func() engine.Engine {
		dbPath := filepath.Join(t.TempDir(), "stakeindex-pebble")

		db, err := Open(dbPath, &engine.Options{Create: true, NoSync: true})
		require.NoErrorf(t, err, "failed to create pebbledb")
		return db
	})
}

func TestReleasedSnapshot(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "stakeindex-pebble"),
		&engine.Options{Create: true, CacheMB: 1, Handles: 4})
	require.NoError(t, err)
	defer db.Close()

	snapshot, err := db.Snapshot()
	require.NoError(t, err)
	snapshot.Release()

	_, err = snapshot.Has([]byte("h"))
	require.ErrorIs(t, err, engine.ErrReleased)

	iter := snapshot.NewIterator(engine.BytesPrefix([]byte("h")))
	require.False(t, iter.Next())
	require.ErrorIs(t, iter.Error(), engine.ErrReleased)
	iter.Release()
}

func TestDiscardedBatchInvisible(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "stakeindex-pebble"), nil)
	require.NoError(t, err)
	defer db.Close()

	b, err := db.NewBatch()
	require.NoError(t, err)
	require.NoError(t, b.Put([]byte("h1"), []byte{1}))
	require.NoError(t, b.Put([]byte("h2"), []byte{2}))
	require.Equal(t, 2, b.Len())
	b.Discard()
	require.Zero(t, b.Len())
	require.ErrorIs(t, b.Commit(), engine.ErrBatchDone)

	snapshot, err := db.Snapshot()
	require.NoError(t, err)
	defer snapshot.Release()

	has, err := snapshot.Has([]byte("h1"))
	require.NoError(t, err)
	require.False(t, has)
}
