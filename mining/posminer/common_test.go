// Copyright (c) 2024 The posd developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package posminer

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/posmint/posd/blockchain"
	"github.com/posmint/posd/blockchain/stakechain"
	"github.com/posmint/posd/chaincfg"
	"github.com/posmint/posd/internal/asyncloop"
	"github.com/stretchr/testify/require"
)

// genesisTime is the timestamp of the root of every test chain.
var genesisTime = time.Unix(1470467000, 0)

// testChain is a header index with an in-memory stake classification.
// Headers are proof of stake unless marked otherwise.
type testChain struct {
	*blockchain.HeaderIndex

	mtx  sync.Mutex
	pow  map[chainhash.Hash]struct{}
	errs map[chainhash.Hash]error
}

var (
	_ ChainTipProvider = (*testChain)(nil)
	_ StakeChain       = (*testChain)(nil)
)

// newTestChain returns a chain rooted at the given height.
func newTestChain(t *testing.T, rootHeight int32) *testChain {
	t.Helper()

	idx := blockchain.NewHeaderIndex()
	_, err := idx.AddRoot(&wire.BlockHeader{
		Version:   1,
		Timestamp: genesisTime,
		Bits:      0x1e0fffff,
	}, rootHeight)
	require.NoError(t, err)

	return &testChain{
		HeaderIndex: idx,
		pow:         make(map[chainhash.Hash]struct{}),
		errs:        make(map[chainhash.Hash]error),
	}
}

// extend adds n headers on top of the tip.  The first one carries the tip's
// timestamp and each following one is spacing later.
func (c *testChain) extend(t *testing.T, n int, spacing time.Duration,
	bits uint32) []*blockchain.ChainedHeader {

	t.Helper()

	tip := c.CurrentTip()
	prevHash := tip.Hash()
	blockTime := tip.Timestamp()
	nodes := make([]*blockchain.ChainedHeader, 0, n)
	for i := 0; i < n; i++ {
		node, err := c.AddHeader(&wire.BlockHeader{
			Version:   1,
			PrevBlock: prevHash,
			Timestamp: blockTime,
			Bits:      bits,
		})
		require.NoError(t, err)
		nodes = append(nodes, node)
		prevHash = node.Hash()
		blockTime = blockTime.Add(spacing)
	}
	return nodes
}

// extendTo grows the chain until its tip is at height.
func (c *testChain) extendTo(t *testing.T, height int32) {
	t.Helper()

	n := int(height - c.CurrentTip().Height())
	c.extend(t, n, time.Minute, 0x1df88f6f)
}

func (c *testChain) markProofOfWork(nodes ...*blockchain.ChainedHeader) {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	for _, node := range nodes {
		c.pow[node.Hash()] = struct{}{}
	}
}

func (c *testChain) failClassify(node *blockchain.ChainedHeader, err error) {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	c.errs[node.Hash()] = err
}

// ClassifyBlock implements StakeChain.
func (c *testChain) ClassifyBlock(hash *chainhash.Hash) (stakechain.StakeKind, error) {
	c.mtx.Lock()
	defer c.mtx.Unlock()

	if err, ok := c.errs[*hash]; ok {
		return 0, err
	}
	if _, ok := c.pow[*hash]; ok {
		return stakechain.ProofOfWork, nil
	}
	return stakechain.ProofOfStake, nil
}

// utxoAt returns a normal staking output created in the block at height.
func utxoAt(t *testing.T, chain *testChain, height int32,
	value int64) *UtxoStakeDescription {

	t.Helper()

	node := chain.HeaderByHeight(height)
	require.NotNil(t, node, "no header at height %d", height)
	return &UtxoStakeDescription{
		OutPoint:  wire.OutPoint{Index: uint32(height)},
		TxOut:     wire.NewTxOut(value, []byte{0x51}),
		BlockHash: node.Hash(),
	}
}

type fixedClock struct {
	mtx sync.Mutex
	now time.Time
}

func (c *fixedClock) AdjustedTime() time.Time {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	return c.now
}

func (c *fixedClock) advance(d time.Duration) {
	c.mtx.Lock()
	c.now = c.now.Add(d)
	c.mtx.Unlock()
}

type testLifetime struct {
	ctx context.Context
}

func (l testLifetime) Context() context.Context {
	return l.ctx
}

// manualLoop is a loop handle whose iterations are driven by the test.
type manualLoop struct {
	name        string
	ctx         context.Context
	fn          asyncloop.Func
	repeatEvery time.Duration
	startAfter  time.Duration

	disposed atomic.Int32
	once     sync.Once
	done     chan struct{}

	mtx sync.Mutex
	err error
}

func (l *manualLoop) Name() string { return l.name }

func (l *manualLoop) Dispose() {
	l.disposed.Add(1)
	l.once.Do(func() { close(l.done) })
}

func (l *manualLoop) Done() <-chan struct{} { return l.done }

func (l *manualLoop) Err() error {
	l.mtx.Lock()
	defer l.mtx.Unlock()
	return l.err
}

// exit ends the loop goroutine on its own, as asyncloop does when an
// iteration fails or panics.
func (l *manualLoop) exit(err error) {
	l.mtx.Lock()
	l.err = err
	l.mtx.Unlock()
	l.once.Do(func() { close(l.done) })
}

// iterate runs one iteration the way asyncloop does.
func (l *manualLoop) iterate() error {
	if err := l.ctx.Err(); err != nil {
		return err
	}
	return l.fn(l.ctx)
}

// manualLoops is an asyncloop.Provider that records the loops it starts.
type manualLoops struct {
	mtx   sync.Mutex
	loops []*manualLoop
}

func (p *manualLoops) Run(ctx context.Context, name string, fn asyncloop.Func,
	repeatEvery, startAfter time.Duration) asyncloop.Handle {

	p.mtx.Lock()
	defer p.mtx.Unlock()

	l := &manualLoop{
		name:        name,
		ctx:         ctx,
		fn:          fn,
		repeatEvery: repeatEvery,
		startAfter:  startAfter,
		done:        make(chan struct{}),
	}
	p.loops = append(p.loops, l)
	return l
}

func (p *manualLoops) count() int {
	p.mtx.Lock()
	defer p.mtx.Unlock()
	return len(p.loops)
}

func (p *manualLoops) last() *manualLoop {
	p.mtx.Lock()
	defer p.mtx.Unlock()
	if len(p.loops) == 0 {
		return nil
	}
	return p.loops[len(p.loops)-1]
}

// minterHarness bundles a minter with its test collaborators.
type minterHarness struct {
	chain   *testChain
	wallet  *MockWallet
	builder *MockBlockBuilder
	sync    *MockSyncState
	clock   *fixedClock
	loops   *manualLoops
	cancel  context.CancelFunc
	minter  *PoSMinter
}

// newHarness returns a minter on regtest over a chain of tipHeight headers
// spaced a minute apart, with the clock a few minutes past the tip.
func newHarness(t *testing.T, tipHeight int32) *minterHarness {
	t.Helper()

	chain := newTestChain(t, 0)
	if tipHeight > 0 {
		chain.extendTo(t, tipHeight)
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	h := &minterHarness{
		chain:   chain,
		wallet:  new(MockWallet),
		builder: new(MockBlockBuilder),
		sync:    new(MockSyncState),
		clock:   &fixedClock{now: chain.CurrentTip().Timestamp().Add(5 * time.Minute)},
		loops:   new(manualLoops),
		cancel:  cancel,
	}
	minter, err := New(&Config{
		ChainParams:  &chaincfg.RegressionNetParams,
		Chain:        chain,
		StakeChain:   chain,
		Wallet:       h.wallet,
		BlockBuilder: h.builder,
		SyncState:    h.sync,
		TimeSource:   h.clock,
		Lifetime:     testLifetime{ctx: ctx},
		Loops:        h.loops,
	})
	require.NoError(t, err)
	h.minter = minter
	return h
}
