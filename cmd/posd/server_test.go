// Copyright (c) 2024 The posd developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/posmint/posd/blockchain"
	"github.com/posmint/posd/blockchain/stakechain"
	"github.com/posmint/posd/chaincfg"
	"github.com/posmint/posd/database/engine"
	"github.com/posmint/posd/mining/posminer"
	"github.com/stretchr/testify/require"
)

const (
	testRPCUser = "user"
	testRPCPass = "pass"

	// diffOneBits is the compact target with a difficulty of exactly one.
	diffOneBits = 0x1d00ffff
)

// newTestConfig returns a regtest configuration storing its data in a
// temporary directory.  The RPC server listens on an ephemeral port.
func newTestConfig(t *testing.T, dbType string) *config {
	t.Helper()

	return &config{
		DataDir:        t.TempDir(),
		DbType:         dbType,
		StakeCacheSize: 16,
		WalletName:     defaultWalletName,
		WalletSnapshot: writeSnapshot(t, testSnapshot),
		RPCListeners:   []string{"127.0.0.1:0"},
		RPCUser:        testRPCUser,
		RPCPass:        testRPCPass,
		params:         &chaincfg.RegressionNetParams,
	}
}

// startTestServer opens the stake index described by cfg and starts a
// server on it.  Both are shut down when the test ends.
func startTestServer(t *testing.T, cfg *config) *server {
	t.Helper()

	db, err := openStakeDB(cfg)
	require.NoError(t, err)

	s, err := newServer(cfg, db)
	if err != nil {
		db.Close()
		require.NoError(t, err)
	}
	require.NoError(t, s.Start())

	t.Cleanup(func() {
		require.NoError(t, s.Stop())
		require.NoError(t, db.Close())
	})
	return s
}

// nextHeader returns a header building on parent with the given spacing.
func nextHeader(parent *blockchain.ChainedHeader, spacing time.Duration,
	bits uint32) *wire.BlockHeader {

	return &wire.BlockHeader{
		Version:   1,
		PrevBlock: parent.Hash(),
		Timestamp: parent.Timestamp().Add(spacing),
		Bits:      bits,
	}
}

func TestServerSeedsGenesis(t *testing.T) {
	for _, dbType := range knownDbTypes {
		t.Run(dbType, func(t *testing.T) {
			s := startTestServer(t, newTestConfig(t, dbType))

			tip := s.index.CurrentTip()
			require.NotNil(t, tip)
			require.Equal(t, int32(0), tip.Height())
			require.Equal(t, *chaincfg.RegressionNetParams.GenesisHash,
				tip.Hash())

			hash := tip.Hash()
			kind, err := s.store.ClassifyBlock(&hash)
			require.NoError(t, err)
			require.Equal(t, stakechain.ProofOfWork, kind)
			require.Equal(t, posminer.StateIdle, s.minter.State())
		})
	}
}

func TestServerReloadsHeaders(t *testing.T) {
	cfg := newTestConfig(t, "leveldb")
	cfg.DisableRPC = true

	db, err := openStakeDB(cfg)
	require.NoError(t, err)
	s, err := newServer(cfg, db)
	require.NoError(t, err)

	var last *blockchain.ChainedHeader
	tip := s.index.CurrentTip()
	for i := 0; i < 3; i++ {
		kind := stakechain.ProofOfStake
		if i == 1 {
			kind = stakechain.ProofOfWork
		}
		last, err = s.submitHeader(nextHeader(tip, time.Minute,
			diffOneBits), kind)
		require.NoError(t, err)
		tip = last
	}
	require.NoError(t, s.Stop())
	require.NoError(t, db.Close())

	s = startTestServer(t, cfg)
	tip = s.index.CurrentTip()
	require.Equal(t, int32(3), tip.Height())
	require.Equal(t, last.Hash(), tip.Hash())

	middle := s.index.HeaderByHeight(2)
	require.NotNil(t, middle)
	hash := middle.Hash()
	kind, err := s.store.ClassifyBlock(&hash)
	require.NoError(t, err)
	require.Equal(t, stakechain.ProofOfWork, kind)
}

func TestServerSubmitHeaderErrors(t *testing.T) {
	cfg := newTestConfig(t, "leveldb")
	cfg.DisableRPC = true
	s := startTestServer(t, cfg)

	header := nextHeader(s.index.CurrentTip(), time.Minute, diffOneBits)
	_, err := s.submitHeader(header, stakechain.ProofOfStake)
	require.NoError(t, err)

	_, err = s.submitHeader(header, stakechain.ProofOfStake)
	require.True(t, blockchain.IsErrorCode(err, blockchain.ErrDuplicateBlock))
	require.True(t, isRuleError(err))

	orphan := *header
	orphan.PrevBlock = chainhash.Hash{0x01}
	_, err = s.submitHeader(&orphan, stakechain.ProofOfStake)
	require.True(t, blockchain.IsErrorCode(err, blockchain.ErrMissingParent))
}

func TestServerAutoStake(t *testing.T) {
	cfg := newTestConfig(t, "pebble")
	cfg.DisableRPC = true
	cfg.Stake = true
	cfg.WalletPass = "secret"

	s := startTestServer(t, cfg)
	require.Equal(t, posminer.StateRunning, s.minter.State())

	require.NoError(t, s.Stop())
	require.Equal(t, posminer.StateIdle, s.minter.State())
}

func TestTipAgeSyncState(t *testing.T) {
	idx := blockchain.NewHeaderIndex()
	clock := &fixedTime{now: time.Unix(1700000000, 0)}
	state := &tipAgeSyncState{chain: idx, clock: clock, maxAge: time.Hour}

	require.True(t, state.IsSyncing())

	_, err := idx.AddRoot(&wire.BlockHeader{
		Timestamp: clock.now.Add(-time.Hour),
	}, 0)
	require.NoError(t, err)
	require.False(t, state.IsSyncing())

	clock.now = clock.now.Add(time.Second)
	require.True(t, state.IsSyncing())
}

// fixedTime is a TimeSource returning a settable time.
type fixedTime struct {
	now time.Time
}

func (f *fixedTime) AdjustedTime() time.Time {
	return f.now
}

// flakyEngine fails to start batches while failing is set.
type flakyEngine struct {
	engine.Engine
	failing atomic.Bool
}

var errDiskFull = errors.New("disk full")

func (e *flakyEngine) NewBatch() (engine.Batch, error) {
	if e.failing.Load() {
		return nil, errDiskFull
	}
	return e.Engine.NewBatch()
}

// newTestServer builds a server without RPC over db and stops it when the
// test ends.
func newTestServer(t *testing.T, cfg *config, db engine.Engine) *server {
	t.Helper()

	cfg.DisableRPC = true
	s, err := newServer(cfg, db)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, s.Stop()) })
	return s
}

// TestServerSubmitHeaderStoreFailure ensures a header that could not be
// stored is not indexed and can be submitted again.
func TestServerSubmitHeaderStoreFailure(t *testing.T) {
	cfg := newTestConfig(t, "leveldb")
	raw, err := openStakeDB(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { raw.Close() })
	db := &flakyEngine{Engine: raw}
	s := newTestServer(t, cfg, db)

	genesis := s.index.CurrentTip()
	header := nextHeader(genesis, time.Minute, diffOneBits)
	hash := header.BlockHash()

	db.failing.Store(true)
	_, err = s.submitHeader(header, stakechain.ProofOfStake)
	require.ErrorIs(t, err, errDiskFull)
	require.False(t, isRuleError(err))
	require.Nil(t, s.index.LookupHeader(&hash))
	require.Equal(t, 1, s.index.Len())
	require.Equal(t, genesis, s.index.CurrentTip())

	_, err = s.minter.GetStatus()
	require.NoError(t, err)

	db.failing.Store(false)
	node, err := s.submitHeader(header, stakechain.ProofOfStake)
	require.NoError(t, err)
	require.Equal(t, node, s.index.CurrentTip())

	kind, err := s.store.ClassifyBlock(&hash)
	require.NoError(t, err)
	require.Equal(t, stakechain.ProofOfStake, kind)
	_, err = s.minter.GetStatus()
	require.NoError(t, err)
}

// TestServerTipMatchesReload ensures a longer side branch becomes the tip
// while running, the same tip a restart selects.
func TestServerTipMatchesReload(t *testing.T) {
	cfg := newTestConfig(t, "pebble")
	db, err := openStakeDB(cfg)
	require.NoError(t, err)
	cfg.DisableRPC = true
	s, err := newServer(cfg, db)
	require.NoError(t, err)

	genesis := s.index.CurrentTip()
	submit := func(parent *blockchain.ChainedHeader, n int,
		nonce uint32) *blockchain.ChainedHeader {

		for i := 0; i < n; i++ {
			header := nextHeader(parent, time.Minute, diffOneBits)
			header.Nonce = nonce
			parent, err = s.submitHeader(header, stakechain.ProofOfStake)
			require.NoError(t, err)
		}
		return parent
	}

	mainTip := submit(genesis, 2, 0)
	require.Equal(t, mainTip, s.index.CurrentTip())

	// A lower side branch does not move the tip, a higher one does.
	sideRoot := submit(genesis, 1, 1)
	require.Equal(t, mainTip, s.index.CurrentTip())
	sideTip := submit(sideRoot, 3, 1)
	require.Equal(t, sideTip, s.index.CurrentTip())
	require.Equal(t, int32(4), sideTip.Height())

	sideHash := sideRoot.Hash()
	require.True(t, s.index.MainChainHasHeader(&sideHash))

	require.NoError(t, s.Stop())
	require.NoError(t, db.Close())

	s = startTestServer(t, cfg)
	require.Equal(t, sideTip.Hash(), s.index.CurrentTip().Hash())
}

// TestServerSamplesHeaderTime ensures headers extending the best chain feed
// the network adjusted clock the minter checks before staking.
func TestServerSamplesHeaderTime(t *testing.T) {
	cfg := newTestConfig(t, "leveldb")
	db, err := openStakeDB(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	s := newTestServer(t, cfg, db)

	// The regtest genesis is years old, so headers following it disagree
	// with the local clock.
	tip := s.index.CurrentTip()
	for i := 0; i < 5; i++ {
		tip, err = s.submitHeader(nextHeader(tip, time.Minute,
			diffOneBits), stakechain.ProofOfStake)
		require.NoError(t, err)
	}
	require.True(t, s.timeSource.IsSystemTimeOutOfSync())

	// Headers close to the local time outvote them.
	now := time.Unix(time.Now().Unix(), 0)
	for i := 0; i < 6; i++ {
		header := nextHeader(tip, time.Minute, diffOneBits)
		header.Timestamp = now.Add(time.Duration(i) * time.Second)
		tip, err = s.submitHeader(header, stakechain.ProofOfStake)
		require.NoError(t, err)
	}
	require.False(t, s.timeSource.IsSystemTimeOutOfSync())
	require.Less(t, s.timeSource.Offset().Abs(), time.Minute)
}
