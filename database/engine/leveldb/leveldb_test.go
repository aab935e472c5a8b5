// Copyright (c) 2024 The posd developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package leveldb

import (
	"path/filepath"
	"testing"

	"github.com/posmint/posd/database/engine"
	"github.com/stretchr/testify/require"
)

func TestSuiteLevelDB(t *testing.T) {
	engine.TestSuiteEngine(t, func() engine.Engine {
		dbPath := filepath.Join(t.TempDir(), "stakeindex-leveldb")

		db, err := Open(dbPath, &engine.Options{Create: true, NoSync: true})
		require.NoErrorf(t, err, "failed to create leveldb")
		return db
	})
}

func TestReopenExisting(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "stakeindex-leveldb")

	db, err := Open(dbPath, &engine.Options{Create: true})
	require.NoError(t, err)
	require.NoError(t, db.Close())

	// create refuses to clobber an existing index.
	_, err = Open(dbPath, &engine.Options{Create: true})
	require.Error(t, err)

	db, err = Open(dbPath, nil)
	require.NoError(t, err)
	require.NoError(t, db.Close())
}

func TestCommitAfterClose(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "stakeindex-leveldb"), nil)
	require.NoError(t, err)

	b, err := db.NewBatch()
	require.NoError(t, err)
	require.NoError(t, b.Put([]byte("h"), []byte{1}))
	require.Equal(t, 1, b.Len())

	require.NoError(t, db.Close())
	require.ErrorIs(t, b.Commit(), engine.ErrClosed)
	require.ErrorIs(t, b.Put([]byte("h"), nil), engine.ErrBatchDone)
}
