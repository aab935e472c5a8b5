// Copyright (c) 2024 The posd developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package blockchain

import (
	"bytes"
	"testing"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/require"
)

// chainHeaders returns n headers extending prev, spaced one minute apart.
// The nonce keeps sibling branches distinct.
func chainHeaders(prev *wire.BlockHeader, n int, nonce uint32) []*wire.BlockHeader {
	headers := make([]*wire.BlockHeader, 0, n)
	for i := 0; i < n; i++ {
		h := &wire.BlockHeader{
			Version:   1,
			PrevBlock: prev.BlockHash(),
			Timestamp: prev.Timestamp.Add(time.Minute),
			Bits:      0x1df88f6f,
			Nonce:     nonce,
		}
		headers = append(headers, h)
		prev = h
	}
	return headers
}

func rootHeader() *wire.BlockHeader {
	return &wire.BlockHeader{
		Version:   1,
		Timestamp: time.Unix(1470467000, 0),
		Bits:      0x1e0fffff,
	}
}

func TestHeaderIndexEmpty(t *testing.T) {
	idx := NewHeaderIndex()
	require.Nil(t, idx.CurrentTip())
	require.Nil(t, idx.Root())
	require.Nil(t, idx.HeaderByHeight(0))
	require.Zero(t, idx.Len())

	_, err := idx.AddHeader(rootHeader())
	require.True(t, IsErrorCode(err, ErrMissingParent))
}

func TestHeaderIndexLinear(t *testing.T) {
	idx := NewHeaderIndex()
	root, err := idx.AddRoot(rootHeader(), 0)
	require.NoError(t, err)
	require.Equal(t, root, idx.CurrentTip())

	_, err = idx.AddRoot(rootHeader(), 0)
	require.True(t, IsErrorCode(err, ErrIndexRooted))

	headers := chainHeaders(rootHeader(), 10, 0)
	for i, h := range headers {
		node, err := idx.AddHeader(h)
		require.NoError(t, err)
		require.Equal(t, int32(i+1), node.Height())
		require.Equal(t, node, idx.CurrentTip())
	}

	_, err = idx.AddHeader(headers[3])
	require.True(t, IsErrorCode(err, ErrDuplicateBlock))

	tip := idx.CurrentTip()
	require.Equal(t, int32(10), tip.Height())
	require.Equal(t, headers[9].BlockHash(), tip.Hash())
	require.Equal(t, headers[8].BlockHash(), idx.Parent(tip).Hash())
	require.Nil(t, idx.Parent(root))

	require.Equal(t, root, idx.Ancestor(tip, 0))
	require.Equal(t, headers[4].BlockHash(), idx.Ancestor(tip, 5).Hash())
	require.Nil(t, idx.Ancestor(tip, 11))
	require.Equal(t, 11, idx.Len())
}

func TestHeaderIndexReorg(t *testing.T) {
	idx := NewHeaderIndex()
	_, err := idx.AddRoot(rootHeader(), 0)
	require.NoError(t, err)

	main := chainHeaders(rootHeader(), 6, 0)
	for _, h := range main {
		_, err := idx.AddHeader(h)
		require.NoError(t, err)
	}

	// A side branch forking after height 3 does not move the tip.
	side := chainHeaders(main[2], 5, 1)
	var sideTip *ChainedHeader
	for _, h := range side {
		sideTip, err = idx.AddHeader(h)
		require.NoError(t, err)
	}
	require.Equal(t, main[5].BlockHash(), idx.CurrentTip().Hash())
	require.Equal(t, int32(8), sideTip.Height())

	sideHash := side[0].BlockHash()
	require.False(t, idx.MainChainHasHeader(&sideHash))
	require.Equal(t, main[2].BlockHash(), idx.Ancestor(sideTip, 3).Hash())
	require.Equal(t, sideHash, idx.Ancestor(sideTip, 4).Hash())

	tipHash := sideTip.Hash()
	require.NoError(t, idx.SetTip(&tipHash))
	require.Equal(t, sideTip, idx.CurrentTip())
	require.True(t, idx.MainChainHasHeader(&sideHash))
	require.Equal(t, sideHash, idx.HeaderByHeight(4).Hash())
	require.Equal(t, main[2].BlockHash(), idx.HeaderByHeight(3).Hash())

	// Switching back to the shorter branch truncates the view.
	mainTip := main[5].BlockHash()
	require.NoError(t, idx.SetTip(&mainTip))
	require.Nil(t, idx.HeaderByHeight(7))
	require.Equal(t, main[3].BlockHash(), idx.HeaderByHeight(4).Hash())

	unknown := chainhash.Hash{0x01}
	err = idx.SetTip(&unknown)
	require.True(t, IsErrorCode(err, ErrUnknownBlock))
	require.Nil(t, idx.LookupHeader(&unknown))
}

func TestHeaderIndexRootedAboveGenesis(t *testing.T) {
	idx := NewHeaderIndex()
	_, err := idx.AddRoot(rootHeader(), 1000)
	require.NoError(t, err)

	headers := chainHeaders(rootHeader(), 3, 0)
	for _, h := range headers {
		_, err := idx.AddHeader(h)
		require.NoError(t, err)
	}

	tip := idx.CurrentTip()
	require.Equal(t, int32(1003), tip.Height())
	require.Equal(t, int32(1000), idx.Root().Height())
	require.Nil(t, idx.HeaderByHeight(999))
	require.Nil(t, idx.Ancestor(tip, 999))
	require.Equal(t, headers[0].BlockHash(), idx.HeaderByHeight(1001).Hash())

	_, err = NewHeaderIndex().AddRoot(rootHeader(), -1)
	require.True(t, IsErrorCode(err, ErrBadHeight))
}

func TestBetterTip(t *testing.T) {
	idx := NewHeaderIndex()
	root, err := idx.AddRoot(rootHeader(), 0)
	require.NoError(t, err)

	a, err := idx.AddHeader(chainHeaders(rootHeader(), 1, 1)[0])
	require.NoError(t, err)
	b, err := idx.AddHeader(chainHeaders(rootHeader(), 1, 2)[0])
	require.NoError(t, err)

	require.True(t, BetterTip(root, nil))
	require.True(t, BetterTip(a, root))
	require.False(t, BetterTip(root, a))

	// Siblings are ordered by hash bytes, never both ways.
	aHash, bHash := a.Hash(), b.Hash()
	lower := bytes.Compare(aHash[:], bHash[:]) < 0
	require.Equal(t, lower, BetterTip(a, b))
	require.Equal(t, !lower, BetterTip(b, a))
	require.False(t, BetterTip(a, a))
}

func TestConnectHeight(t *testing.T) {
	idx := NewHeaderIndex()
	_, err := idx.AddRoot(rootHeader(), 10)
	require.NoError(t, err)

	next := chainHeaders(rootHeader(), 1, 0)[0]
	height, err := idx.ConnectHeight(next)
	require.NoError(t, err)
	require.Equal(t, int32(11), height)
	require.Equal(t, 1, idx.Len())

	_, err = idx.AddHeader(next)
	require.NoError(t, err)
	_, err = idx.ConnectHeight(next)
	require.True(t, IsErrorCode(err, ErrDuplicateBlock))

	orphan := *next
	orphan.PrevBlock = chainhash.Hash{0x01}
	_, err = idx.ConnectHeight(&orphan)
	require.True(t, IsErrorCode(err, ErrMissingParent))
}
