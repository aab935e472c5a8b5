// Copyright (c) 2024 The posd developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package posminer

import (
	"github.com/posmint/posd/blockchain"
	"github.com/posmint/posd/blockchain/stakechain"
	"github.com/posmint/posd/chaincfg"
)

const (
	// networkWeightIntervals is the number of proof-of-stake block
	// intervals averaged by the network weight estimate.
	networkWeightIntervals = 72

	// kernelsPerDifficulty is the expected number of kernel hashes per
	// unit of difficulty.
	kernelsPerDifficulty = 4294967296.0
)

// EstimateNetworkWeight estimates the total value staking on the network
// from the difficulty and spacing of the most recent proof-of-stake blocks
// ending at tip.  Proof-of-work blocks are skipped.  It returns 0 when there
// is no tip or the sampled blocks span no time.
func EstimateNetworkWeight(chain ChainTipProvider, classifier StakeChain,
	tip *blockchain.ChainedHeader, params *chaincfg.Params) (float64, error) {

	if tip == nil {
		return 0, nil
	}

	var (
		kernels   float64
		span      int64
		intervals int
		newer     *blockchain.ChainedHeader
	)
	for node := tip; node != nil && intervals < networkWeightIntervals; node = chain.Parent(node) {
		hash := node.Hash()
		kind, err := classifier.ClassifyBlock(&hash)
		if err != nil {
			return 0, err
		}
		if kind != stakechain.ProofOfStake {
			continue
		}

		if newer != nil {
			diff, err := blockchain.CompactDifficulty(newer.Bits(),
				params.DifficultyOneBits)
			if err != nil {
				return 0, err
			}
			kernels += diff * kernelsPerDifficulty
			span += newer.Timestamp().Unix() - node.Timestamp().Unix()
			intervals++
		}
		newer = node
	}

	if span <= 0 {
		return 0, nil
	}
	scale := float64(params.StakeTimestampMask) + 1
	return kernels / float64(span) * scale, nil
}
