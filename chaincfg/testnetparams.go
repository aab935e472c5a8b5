// Copyright (c) 2024 The posd developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package chaincfg

import (
	"time"

	"github.com/btcsuite/btcd/wire"
)

// TestNetParams defines the network parameters for the test network.
var TestNetParams = Params{
	Name:        "testnet",
	Net:         wire.BitcoinNet(0x11213171),
	DefaultPort: "26178",
	RPCPort:     "26174",

	// Chain parameters
	GenesisHeader:      &testNetGenesisHeader,
	GenesisHash:        &testNetGenesisHash,
	PowLimit:           stakePowLimit,
	PowLimitBits:       0x1e0fffff,
	DifficultyOneBits:  DifficultyOneBits,
	TargetTimePerBlock: time.Second * 64,
	StakeTimestampMask: DefaultStakeTimestampMask,
	CoinbaseMaturity:   10,
	MaxTipAge:          time.Hour * 2,

	// Staking parameters
	StakeConfirmations: StakeConfirmationRule{
		ActivationHeight:          436600,
		BeforeActivation:          10,
		AfterActivation:           20,
		CoinstakeBeforeActivation: 20,
		CoinstakeAfterActivation:  40,
	},
	MinimumStakingCoinValue: 10000000,
}
