// Copyright (c) 2024 The posd developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package stakechain

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/posmint/posd/blockchain"
	"github.com/posmint/posd/database/engine"
	"github.com/posmint/posd/database/engine/leveldb"
	"github.com/posmint/posd/database/engine/pebbledb"
	"github.com/stretchr/testify/require"
)

// backends opens a fresh engine of every supported type.
var backends = map[string]func(t *testing.T) engine.Engine{
	"leveldb": func(t *testing.T) engine.Engine {
		db, err := leveldb.Open(filepath.Join(t.TempDir(), "stake"),
			&engine.Options{Create: true, NoSync: true})
		require.NoError(t, err)
		return db
	},
	"pebble": func(t *testing.T) engine.Engine {
		db, err := pebbledb.Open(filepath.Join(t.TempDir(), "stake"),
			&engine.Options{Create: true, NoSync: true, CacheMB: 1})
		require.NoError(t, err)
		return db
	},
}

// testChain returns n+1 headers starting with a root, one minute apart.
func testChain(n int) []*wire.BlockHeader {
	prev := &wire.BlockHeader{
		Version:   1,
		Timestamp: time.Unix(1470467000, 0),
		Bits:      0x1e0fffff,
	}
	headers := []*wire.BlockHeader{prev}
	for i := 0; i < n; i++ {
		h := &wire.BlockHeader{
			Version:   1,
			PrevBlock: prev.BlockHash(),
			Timestamp: prev.Timestamp.Add(time.Minute),
			Bits:      0x1df88f6f,
		}
		headers = append(headers, h)
		prev = h
	}
	return headers
}

func TestStoreClassify(t *testing.T) {
	for name, open := range backends {
		t.Run(name, func(t *testing.T) {
			db := open(t)
			defer db.Close()

			store := New(db, 0)
			headers := testChain(4)
			for i, h := range headers {
				kind := ProofOfStake
				if i%2 == 0 {
					kind = ProofOfWork
				}
				require.NoError(t, store.PutBlock(h, int32(i), kind))
			}

			for i, h := range headers {
				hash := h.BlockHash()
				kind, err := store.ClassifyBlock(&hash)
				require.NoError(t, err)
				require.Equal(t, i%2 == 1, kind == ProofOfStake, "height %d", i)
			}

			// A fresh store reads the kinds back from the database.
			cold := New(db, 1)
			hash := headers[3].BlockHash()
			kind, err := cold.ClassifyBlock(&hash)
			require.NoError(t, err)
			require.Equal(t, ProofOfStake, kind)

			unknown := chainhash.Hash{0xaa}
			_, err = cold.ClassifyBlock(&unknown)
			require.ErrorIs(t, err, ErrUnknownBlock)

			require.Error(t, store.PutBlock(headers[0], -1, ProofOfWork))
		})
	}
}

func TestStoreLoadHeaders(t *testing.T) {
	for name, open := range backends {
		t.Run(name, func(t *testing.T) {
			db := open(t)
			defer db.Close()

			store := New(db, 0)
			idx := blockchain.NewHeaderIndex()
			count, err := store.LoadHeaders(idx)
			require.NoError(t, err)
			require.Zero(t, count)
			require.Nil(t, idx.CurrentTip())

			// Write out of order and rooted above genesis; more than 256
			// headers so height ordering crosses a byte boundary.
			headers := testChain(300)
			const rootHeight = 5000
			for i := len(headers) - 1; i >= 0; i-- {
				require.NoError(t, store.PutBlock(headers[i],
					rootHeight+int32(i), ProofOfStake))
			}

			count, err = store.LoadHeaders(idx)
			require.NoError(t, err)
			require.Equal(t, len(headers), count)

			tip := idx.CurrentTip()
			require.NotNil(t, tip)
			require.Equal(t, int32(rootHeight+300), tip.Height())
			require.Equal(t, headers[300].BlockHash(), tip.Hash())
			require.Equal(t, int32(rootHeight), idx.Root().Height())
			require.Equal(t, headers[150].BlockHash(),
				idx.HeaderByHeight(rootHeight+150).Hash())
		})
	}
}

func TestStoreLoadHeadersHeightMismatch(t *testing.T) {
	db := backends["leveldb"](t)
	defer db.Close()

	store := New(db, 0)
	headers := testChain(2)
	require.NoError(t, store.PutBlock(headers[0], 0, ProofOfWork))
	require.NoError(t, store.PutBlock(headers[1], 1, ProofOfStake))
	// Stored two above where it connects.
	require.NoError(t, store.PutBlock(headers[2], 3, ProofOfStake))

	_, err := store.LoadHeaders(blockchain.NewHeaderIndex())
	require.ErrorIs(t, err, ErrCorruptRecord)
}

func TestStakeKindString(t *testing.T) {
	require.Equal(t, "proof-of-work", ProofOfWork.String())
	require.Equal(t, "proof-of-stake", ProofOfStake.String())
	require.Equal(t, "Unknown StakeKind (9)", StakeKind(9).String())
}
