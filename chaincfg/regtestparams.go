// Copyright (c) 2024 The posd developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package chaincfg

import (
	"time"

	"github.com/btcsuite/btcd/wire"
)

// RegressionNetParams defines the network parameters for the regression test
// network.  Not to be confused with the test network, this network is
// sometimes simply called "regtest".
var RegressionNetParams = Params{
	Name:        "regtest",
	Net:         wire.BitcoinNet(0xdab5bffa),
	DefaultPort: "18444",
	RPCPort:     "18443",

	// Chain parameters
	GenesisHeader:      &regTestGenesisHeader,
	GenesisHash:        &regTestGenesisHash,
	PowLimit:           regressionPowLimit,
	PowLimitBits:       0x207fffff,
	DifficultyOneBits:  DifficultyOneBits,
	TargetTimePerBlock: time.Second * 64,
	StakeTimestampMask: DefaultStakeTimestampMask,
	CoinbaseMaturity:   5,
	MaxTipAge:          time.Hour * 24 * 365,

	// Staking parameters
	StakeConfirmations: StakeConfirmationRule{
		ActivationHeight:          100,
		BeforeActivation:          2,
		AfterActivation:           4,
		CoinstakeBeforeActivation: 4,
		CoinstakeAfterActivation:  8,
	},
	MinimumStakingCoinValue: 100000,
}
