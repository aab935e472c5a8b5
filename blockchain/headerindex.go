// Copyright (c) 2015-2017 The btcsuite developers
// Copyright (c) 2024 The posd developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package blockchain

import (
	"bytes"
	"fmt"
	"sync"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
)

// approxHeadersPerWeek is an approximation of the number of new headers there
// are in a week on average with 64 second blocks.
const approxHeadersPerWeek = 9450

// noParent marks the root of an index.
const noParent int32 = -1

// ChainedHeader is a block header positioned in the chain.  It is immutable
// once created.  The parent is referenced by its slot in the owning
// HeaderIndex rather than by pointer, so use HeaderIndex.Parent to walk back.
type ChainedHeader struct {
	hash   chainhash.Hash
	header wire.BlockHeader
	height int32
	slot   int32
	parent int32
}

// Hash returns the block hash of the header.
func (h *ChainedHeader) Hash() chainhash.Hash {
	return h.hash
}

// Height returns the height of the header in the chain.
func (h *ChainedHeader) Height() int32 {
	return h.height
}

// Header returns a copy of the underlying wire header.
func (h *ChainedHeader) Header() wire.BlockHeader {
	return h.header
}

// Bits returns the compact difficulty target of the header.
func (h *ChainedHeader) Bits() uint32 {
	return h.header.Bits
}

// Timestamp returns the block time of the header.
func (h *ChainedHeader) Timestamp() time.Time {
	return h.header.Timestamp
}

// String returns the hash and height of the header.
func (h *ChainedHeader) String() string {
	return fmt.Sprintf("%v (height %d)", h.hash, h.height)
}

// HeaderIndex is an append-only arena of chained headers together with a flat
// view of the currently selected best chain.  The index can be rooted at any
// height, which allows it to hold only a recent suffix of the chain.
//
// Selecting the best chain is the caller's job: AddHeader only advances the
// tip when the new header extends it, and SetTip switches branches.
type HeaderIndex struct {
	mtx        sync.RWMutex
	arena      []*ChainedHeader
	byHash     map[chainhash.Hash]int32
	best       []int32
	rootHeight int32
}

// NewHeaderIndex returns an empty index.  The first header must be added with
// AddRoot.
func NewHeaderIndex() *HeaderIndex {
	return &HeaderIndex{
		byHash: make(map[chainhash.Hash]int32),
	}
}

// AddRoot adds the first header of the index at the given height and makes it
// the tip.
func (idx *HeaderIndex) AddRoot(header *wire.BlockHeader, height int32) (*ChainedHeader, error) {
	if height < 0 {
		str := fmt.Sprintf("root height %d is negative", height)
		return nil, ruleError(ErrBadHeight, str)
	}

	idx.mtx.Lock()
	defer idx.mtx.Unlock()

	if len(idx.arena) != 0 {
		str := fmt.Sprintf("index is already rooted at %v", idx.arena[0])
		return nil, ruleError(ErrIndexRooted, str)
	}

	idx.rootHeight = height
	node := idx.append(header, height, noParent)
	idx.best = append(idx.best[:0], node.slot)
	return node, nil
}

// append stores a new header in the arena.
//
// This function MUST be called with the index lock held (for writes).
func (idx *HeaderIndex) append(header *wire.BlockHeader, height, parent int32) *ChainedHeader {
	node := &ChainedHeader{
		hash:   header.BlockHash(),
		header: *header,
		height: height,
		slot:   int32(len(idx.arena)),
		parent: parent,
	}
	idx.arena = append(idx.arena, node)
	idx.byHash[node.hash] = node.slot
	return node
}

// parentSlot returns the arena slot of the parent header connects to.
//
// This function MUST be called with the index lock held (for reads).
func (idx *HeaderIndex) parentSlot(header *wire.BlockHeader,
	hash *chainhash.Hash) (int32, error) {

	if _, ok := idx.byHash[*hash]; ok {
		str := fmt.Sprintf("already have header %v", hash)
		return noParent, ruleError(ErrDuplicateBlock, str)
	}
	slot, ok := idx.byHash[header.PrevBlock]
	if !ok {
		str := fmt.Sprintf("previous header %v of %v is unknown",
			header.PrevBlock, hash)
		return noParent, ruleError(ErrMissingParent, str)
	}
	return slot, nil
}

// ConnectHeight returns the height header would be added at without adding
// it.  It fails with the same rule errors as AddHeader.
//
// This function is safe for concurrent access.
func (idx *HeaderIndex) ConnectHeight(header *wire.BlockHeader) (int32, error) {
	hash := header.BlockHash()

	idx.mtx.RLock()
	defer idx.mtx.RUnlock()

	slot, err := idx.parentSlot(header, &hash)
	if err != nil {
		return 0, err
	}
	return idx.arena[slot].height + 1, nil
}

// AddHeader connects a header to its parent, which must already be in the
// index.  When the parent is the current tip the new header becomes the tip.
func (idx *HeaderIndex) AddHeader(header *wire.BlockHeader) (*ChainedHeader, error) {
	hash := header.BlockHash()

	idx.mtx.Lock()
	defer idx.mtx.Unlock()

	parentSlot, err := idx.parentSlot(header, &hash)
	if err != nil {
		return nil, err
	}

	parent := idx.arena[parentSlot]
	node := idx.append(header, parent.height+1, parentSlot)
	if tip := idx.tip(); tip != nil && tip.slot == parentSlot {
		idx.best = append(idx.best, node.slot)
	}
	return node, nil
}

// BetterTip reports whether candidate should replace tip as the chain tip.
// The higher header wins.  At equal heights the lower hash wins, which is the
// order headers of one height are stored in, so a reload picks the same tip.
func BetterTip(candidate, tip *ChainedHeader) bool {
	if tip == nil {
		return true
	}
	if candidate.height != tip.height {
		return candidate.height > tip.height
	}
	return bytes.Compare(candidate.hash[:], tip.hash[:]) < 0
}

// tip returns the best chain tip or nil for an empty index.
//
// This function MUST be called with the index lock held (for reads).
func (idx *HeaderIndex) tip() *ChainedHeader {
	if len(idx.best) == 0 {
		return nil
	}
	return idx.arena[idx.best[len(idx.best)-1]]
}

// CurrentTip returns the tip of the best chain, or nil when the index is
// empty.
//
// This function is safe for concurrent access.
func (idx *HeaderIndex) CurrentTip() *ChainedHeader {
	idx.mtx.RLock()
	tip := idx.tip()
	idx.mtx.RUnlock()
	return tip
}

// Root returns the lowest header of the index.
func (idx *HeaderIndex) Root() *ChainedHeader {
	idx.mtx.RLock()
	defer idx.mtx.RUnlock()

	if len(idx.arena) == 0 {
		return nil
	}
	return idx.arena[0]
}

// Len returns the number of headers held in the arena, including those not on
// the best chain.
func (idx *HeaderIndex) Len() int {
	idx.mtx.RLock()
	n := len(idx.arena)
	idx.mtx.RUnlock()
	return n
}

// SetTip makes the header with the given hash the tip of the best chain.
// The flat best chain view is repaired from the new tip back to the point
// where it rejoins the previous one.
//
// This function is safe for concurrent access.
func (idx *HeaderIndex) SetTip(hash *chainhash.Hash) error {
	idx.mtx.Lock()
	defer idx.mtx.Unlock()

	slot, ok := idx.byHash[*hash]
	if !ok {
		str := fmt.Sprintf("cannot set tip to unknown header %v", hash)
		return ruleError(ErrUnknownBlock, str)
	}

	node := idx.arena[slot]
	needed := int(node.height-idx.rootHeight) + 1
	if cap(idx.best) < needed {
		best := make([]int32, needed, needed+approxHeadersPerWeek)
		n := copy(best, idx.best)
		for i := n; i < needed; i++ {
			best[i] = noParent
		}
		idx.best = best
	} else {
		prevLen := len(idx.best)
		idx.best = idx.best[:needed]
		for i := prevLen; i < needed; i++ {
			idx.best[i] = noParent
		}
	}

	var replaced int
	for node != nil {
		pos := node.height - idx.rootHeight
		if idx.best[pos] == node.slot {
			break
		}
		if idx.best[pos] != noParent {
			replaced++
		}
		idx.best[pos] = node.slot
		node = idx.parent(node)
	}
	if replaced > 0 {
		log.Debugf("Best header chain switched to %v, %d headers replaced",
			hash, replaced)
	}
	return nil
}

// LookupHeader returns the header with the given hash or nil when it is not
// in the index.
func (idx *HeaderIndex) LookupHeader(hash *chainhash.Hash) *ChainedHeader {
	idx.mtx.RLock()
	defer idx.mtx.RUnlock()

	slot, ok := idx.byHash[*hash]
	if !ok {
		return nil
	}
	return idx.arena[slot]
}

// parent returns the parent of node or nil for the root.
//
// This function MUST be called with the index lock held (for reads).
func (idx *HeaderIndex) parent(node *ChainedHeader) *ChainedHeader {
	if node.parent == noParent {
		return nil
	}
	return idx.arena[node.parent]
}

// Parent returns the parent of h, or nil when h is the root of the index.
//
// This function is safe for concurrent access.
func (idx *HeaderIndex) Parent(h *ChainedHeader) *ChainedHeader {
	idx.mtx.RLock()
	parent := idx.parent(h)
	idx.mtx.RUnlock()
	return parent
}

// onBestChain reports whether node is part of the best chain view.
//
// This function MUST be called with the index lock held (for reads).
func (idx *HeaderIndex) onBestChain(node *ChainedHeader) bool {
	pos := int(node.height - idx.rootHeight)
	return pos >= 0 && pos < len(idx.best) && idx.best[pos] == node.slot
}

// Ancestor returns the ancestor of h at the given height, or nil when the
// height is above h or below the root of the index.
//
// This function is safe for concurrent access.
func (idx *HeaderIndex) Ancestor(h *ChainedHeader, height int32) *ChainedHeader {
	if height > h.height || height < 0 {
		return nil
	}

	idx.mtx.RLock()
	defer idx.mtx.RUnlock()

	if height < idx.rootHeight {
		return nil
	}
	if idx.onBestChain(h) {
		return idx.arena[idx.best[height-idx.rootHeight]]
	}

	node := h
	for node != nil && node.height != height {
		node = idx.parent(node)
	}
	return node
}

// HeaderByHeight returns the best chain header at the given height.
//
// This function is safe for concurrent access.
func (idx *HeaderIndex) HeaderByHeight(height int32) *ChainedHeader {
	idx.mtx.RLock()
	defer idx.mtx.RUnlock()

	pos := int(height - idx.rootHeight)
	if height < idx.rootHeight || pos >= len(idx.best) {
		return nil
	}
	return idx.arena[idx.best[pos]]
}

// MainChainHasHeader reports whether the header with the given hash is on
// the best chain.
//
// This function is safe for concurrent access.
func (idx *HeaderIndex) MainChainHasHeader(hash *chainhash.Hash) bool {
	idx.mtx.RLock()
	defer idx.mtx.RUnlock()

	slot, ok := idx.byHash[*hash]
	return ok && idx.onBestChain(idx.arena[slot])
}
