// Copyright (c) 2024 The posd developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package chaincfg

import (
	"time"

	"github.com/btcsuite/btcd/wire"
)

// MainNetParams defines the network parameters for the main network.
var MainNetParams = Params{
	Name:        "mainnet",
	Net:         wire.BitcoinNet(0x5223570),
	DefaultPort: "16178",
	RPCPort:     "16174",

	// Chain parameters
	GenesisHeader:      &genesisHeader,
	GenesisHash:        &genesisHash,
	PowLimit:           stakePowLimit,
	PowLimitBits:       0x1e0fffff,
	DifficultyOneBits:  DifficultyOneBits,
	TargetTimePerBlock: time.Second * 64,
	StakeTimestampMask: DefaultStakeTimestampMask,
	CoinbaseMaturity:   50,
	MaxTipAge:          time.Hour * 2,

	// Staking parameters
	StakeConfirmations: StakeConfirmationRule{
		ActivationHeight:          1005250,
		BeforeActivation:          50,
		AfterActivation:           500,
		CoinstakeBeforeActivation: 100,
		CoinstakeAfterActivation:  1000,
	},
	MinimumStakingCoinValue: 10000000,
}
