// Copyright (c) 2024 The posd developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"context"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/wire"
	"github.com/posmint/posd/mining/posminer"
)

// dryRunBuilder stands in for the block builder when the node has no signing
// backend.  Every attempt reports what would have been staked and fails with
// a minting error, which keeps the staking loop running.
type dryRunBuilder struct{}

// Ensure dryRunBuilder implements the posminer.BlockBuilder interface.
var _ posminer.BlockBuilder = dryRunBuilder{}

// AttemptStake implements posminer.BlockBuilder.
func (dryRunBuilder) AttemptStake(ctx context.Context,
	req *posminer.StakeRequest) (*wire.MsgBlock, error) {

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var weight btcutil.Amount
	for _, utxo := range req.Utxos {
		weight += utxo.Amount()
	}
	posdLog.Tracef("Dry run stake request: %v", spewClosure(req.Utxos))

	return nil, posminer.NewMintingError("dry run: %d eligible outputs "+
		"worth %v at height %d", len(req.Utxos), weight,
		req.Tip.Height()+1)
}
