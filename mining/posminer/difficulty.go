// Copyright (c) 2024 The posd developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package posminer

import (
	"github.com/posmint/posd/blockchain"
	"github.com/posmint/posd/blockchain/stakechain"
	"github.com/posmint/posd/chaincfg"
)

// lastProofOfStake returns the closest proof-of-stake header at or below
// node, or nil if there is none.
func lastProofOfStake(chain ChainTipProvider, classifier StakeChain,
	node *blockchain.ChainedHeader) (*blockchain.ChainedHeader, error) {

	for ; node != nil; node = chain.Parent(node) {
		hash := node.Hash()
		kind, err := classifier.ClassifyBlock(&hash)
		if err != nil {
			return nil, err
		}
		if kind == stakechain.ProofOfStake {
			return node, nil
		}
	}
	return nil, nil
}

// StakeDifficulty returns the proof-of-stake difficulty of header.  A nil
// header selects the chain tip, or its last proof-of-stake ancestor when the
// tip was mined with proof of work.  An empty chain has difficulty 1.
func StakeDifficulty(chain ChainTipProvider, classifier StakeChain,
	header *blockchain.ChainedHeader, params *chaincfg.Params) (float64, error) {

	if header == nil {
		tip := chain.CurrentTip()
		if tip == nil {
			return 1.0, nil
		}
		pos, err := lastProofOfStake(chain, classifier, tip)
		if err != nil {
			return 0, err
		}
		header = tip
		if pos != nil {
			header = pos
		}
	}

	return blockchain.CompactDifficulty(header.Bits(), params.DifficultyOneBits)
}
