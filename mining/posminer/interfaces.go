// Copyright (c) 2024 The posd developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package posminer

import (
	"context"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/posmint/posd/blockchain"
	"github.com/posmint/posd/blockchain/stakechain"
)

// ChainTipProvider gives read access to the header chain.  It is satisfied
// by *blockchain.HeaderIndex.
type ChainTipProvider interface {
	// CurrentTip returns the consensus tip or nil before the chain has
	// been loaded.
	CurrentTip() *blockchain.ChainedHeader

	// LookupHeader returns the header with the given hash or nil.
	LookupHeader(hash *chainhash.Hash) *blockchain.ChainedHeader

	// Parent returns the parent of h or nil for the root.
	Parent(h *blockchain.ChainedHeader) *blockchain.ChainedHeader

	// Ancestor returns the ancestor of h at height or nil.
	Ancestor(h *blockchain.ChainedHeader, height int32) *blockchain.ChainedHeader
}

// StakeChain tells proof-of-stake blocks apart from proof-of-work blocks.
// It is satisfied by *stakechain.Store.
type StakeChain interface {
	ClassifyBlock(hash *chainhash.Hash) (stakechain.StakeKind, error)
}

// Wallet provides the outputs a wallet is willing to stake.
type Wallet interface {
	// SpendableUtxosForStaking returns the wallet's outputs with at least
	// minConfirmations confirmations.
	SpendableUtxosForStaking(ctx context.Context, walletName string,
		minConfirmations int32) ([]*UtxoStakeDescription, error)
}

// BlockBuilder performs the kernel search over the eligible outputs and, on
// success, assembles, signs and submits the block.  Expected failures are
// reported as a *MintingError.
type BlockBuilder interface {
	AttemptStake(ctx context.Context, req *StakeRequest) (*wire.MsgBlock, error)
}

// SyncState reports whether the node is still catching up with the network.
type SyncState interface {
	IsSyncing() bool
}

// TimeSyncState reports whether the local clock disagrees with the network.
type TimeSyncState interface {
	IsSystemTimeOutOfSync() bool
}

// TimeSource provides the network adjusted time.
type TimeSource interface {
	AdjustedTime() time.Time
}

// NodeLifetime provides the context that ends when the node shuts down.
type NodeLifetime interface {
	Context() context.Context
}

// UtxoStakeDescription is one wallet output considered for staking.  It is
// built for a single attempt and never modified by the minter.
type UtxoStakeDescription struct {
	OutPoint wire.OutPoint
	TxOut    *wire.TxOut

	// BlockHash is the hash of the block that created the output.
	BlockHash chainhash.Hash

	// IsCoinstake is set when the output was created by a coinstake
	// transaction, which raises the confirmations it needs.
	IsCoinstake bool
}

// Amount returns the value of the output.
func (u *UtxoStakeDescription) Amount() btcutil.Amount {
	if u.TxOut == nil {
		return 0
	}
	return btcutil.Amount(u.TxOut.Value)
}

// WalletSecret unlocks the staking wallet.
type WalletSecret struct {
	WalletName string
	Passphrase []byte
}

// zero overwrites the passphrase.
func (s *WalletSecret) zero() {
	for i := range s.Passphrase {
		s.Passphrase[i] = 0
	}
	s.Passphrase = nil
}

// StakeRequest is handed to the BlockBuilder for one staking attempt.
type StakeRequest struct {
	// Tip is the header the new block will build on.
	Tip *blockchain.ChainedHeader

	// Utxos are the outputs that passed the eligibility filter.
	Utxos []*UtxoStakeDescription

	// BlockTime is the masked timestamp proposed for the new block.
	BlockTime time.Time

	// Secret unlocks the wallet for signing.
	Secret WalletSecret
}
