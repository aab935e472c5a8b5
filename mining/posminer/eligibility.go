// Copyright (c) 2024 The posd developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package posminer

import (
	"context"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/posmint/posd/blockchain"
	"github.com/posmint/posd/chaincfg"
)

// eligibilityFilter selects the outputs that consensus allows to stake on
// top of a given tip.
type eligibilityFilter struct {
	chain    ChainTipProvider
	params   *chaincfg.Params
	minValue btcutil.Amount
}

// depthOf returns the number of confirmations of a block at originHeight
// when tip is the best header.
func depthOf(tip *blockchain.ChainedHeader, originHeight int32) int32 {
	return tip.Height() - originHeight + 1
}

// suitable reports whether a single candidate may stake.  The reason is
// only meaningful when it returns false.
func (f *eligibilityFilter) suitable(utxo *UtxoStakeDescription,
	tip *blockchain.ChainedHeader, blockTime time.Time,
	maxAllowed btcutil.Amount) (bool, string) {

	value := utxo.Amount()
	if value < f.minValue {
		return false, "below minimum staking value"
	}
	if value > maxAllowed {
		return false, "above spendable balance"
	}

	origin := f.chain.LookupHeader(&utxo.BlockHash)
	if origin == nil {
		return false, "origin block unknown"
	}
	if f.chain.Ancestor(tip, origin.Height()) != origin {
		return false, "origin block not on the best chain"
	}
	if origin.Timestamp().After(blockTime) {
		return false, "origin block newer than block time"
	}

	// The rule in force is the one for the block being minted.
	required := f.params.StakeMinConfirmations(tip.Height()+1,
		utxo.IsCoinstake) - 1
	if depthOf(tip, origin.Height()) < required {
		return false, "not enough confirmations"
	}
	return true, ""
}

// filter returns the candidates allowed to stake, in their original order.
// It only fails when ctx is canceled.
func (f *eligibilityFilter) filter(ctx context.Context,
	candidates []*UtxoStakeDescription, tip *blockchain.ChainedHeader,
	blockTime time.Time, maxAllowed btcutil.Amount) ([]*UtxoStakeDescription, error) {

	suitable := make([]*UtxoStakeDescription, 0, len(candidates))
	for _, utxo := range candidates {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		ok, reason := f.suitable(utxo, tip, blockTime, maxAllowed)
		if !ok {
			log.Tracef("Output %v not suitable for staking: %s",
				utxo.OutPoint, reason)
			continue
		}
		suitable = append(suitable, utxo)
	}
	return suitable, nil
}
