// Copyright (c) 2024 The posd developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/posmint/posd/mining/posminer"
)

// snapshotOutput is one output of a wallet snapshot file.
type snapshotOutput struct {
	TxID      string  `json:"txid"`
	Vout      uint32  `json:"vout"`
	Amount    float64 `json:"amount"`
	PkScript  string  `json:"pkscript"`
	BlockHash string  `json:"blockhash"`
	Coinstake bool    `json:"coinstake"`
}

// walletSnapshot is the content of a wallet snapshot file: the outputs each
// wallet offers for staking, keyed by wallet name.
type walletSnapshot struct {
	Wallets map[string][]snapshotOutput `json:"wallets"`
}

// snapshotWallet serves staking outputs from a JSON file maintained by an
// external wallet.  The file is read again on every request so updates are
// picked up without a restart.
type snapshotWallet struct {
	path string
}

// Ensure snapshotWallet implements the posminer.Wallet interface.
var _ posminer.Wallet = (*snapshotWallet)(nil)

func newSnapshotWallet(path string) *snapshotWallet {
	return &snapshotWallet{path: path}
}

// decodeOutput converts a snapshot entry into a staking candidate.
func decodeOutput(out *snapshotOutput) (*posminer.UtxoStakeDescription, error) {
	txHash, err := chainhash.NewHashFromStr(out.TxID)
	if err != nil {
		return nil, fmt.Errorf("txid %q: %w", out.TxID, err)
	}
	blockHash, err := chainhash.NewHashFromStr(out.BlockHash)
	if err != nil {
		return nil, fmt.Errorf("blockhash %q: %w", out.BlockHash, err)
	}
	pkScript, err := hex.DecodeString(out.PkScript)
	if err != nil {
		return nil, fmt.Errorf("pkscript of %v:%d: %w", txHash, out.Vout, err)
	}
	amount, err := btcutil.NewAmount(out.Amount)
	if err != nil {
		return nil, fmt.Errorf("amount of %v:%d: %w", txHash, out.Vout, err)
	}

	return &posminer.UtxoStakeDescription{
		OutPoint:    *wire.NewOutPoint(txHash, out.Vout),
		TxOut:       wire.NewTxOut(int64(amount), pkScript),
		BlockHash:   *blockHash,
		IsCoinstake: out.Coinstake,
	}, nil
}

// SpendableUtxosForStaking returns the outputs listed for the wallet.  A
// missing file or wallet is reported as a minting error so staking retries
// once the wallet publishes its snapshot.  The confirmation count is applied
// by the wallet when it writes the file.
func (w *snapshotWallet) SpendableUtxosForStaking(ctx context.Context,
	walletName string, minConfirmations int32) ([]*posminer.UtxoStakeDescription, error) {

	if w.path == "" {
		return nil, posminer.NewMintingError("no wallet snapshot configured")
	}
	data, err := os.ReadFile(w.path)
	if os.IsNotExist(err) {
		return nil, &posminer.MintingError{
			Description: "wallet snapshot not available",
			Err:         err,
		}
	} else if err != nil {
		return nil, err
	}

	var snapshot walletSnapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, &posminer.MintingError{
			Description: "malformed wallet snapshot",
			Err:         err,
		}
	}
	outputs, ok := snapshot.Wallets[walletName]
	if !ok {
		return nil, posminer.NewMintingError("wallet %q not found in "+
			"snapshot", walletName)
	}

	utxos := make([]*posminer.UtxoStakeDescription, 0, len(outputs))
	for i := range outputs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		utxo, err := decodeOutput(&outputs[i])
		if err != nil {
			return nil, &posminer.MintingError{
				Description: "malformed wallet snapshot",
				Err:         err,
			}
		}
		utxos = append(utxos, utxo)
	}
	posdLog.Tracef("Wallet %q offers %d outputs for staking", walletName,
		len(utxos))
	return utxos, nil
}
