// Copyright (c) 2014-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package chaincfg

import (
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
)

// genesisMerkleRoot is the merkle root of the genesis coinbase shared by all
// default networks.
var genesisMerkleRoot = newHashFromStr("65a26bc20b0351aebf05829daefa8f7db2f800623439f3c114257c91447f1518")

// genesisHeader is the first block header of the main network.
var genesisHeader = wire.BlockHeader{
	Version:    1,
	PrevBlock:  chainhash.Hash{},
	MerkleRoot: *genesisMerkleRoot,
	Timestamp:  time.Unix(1470467000, 0), // 6 Aug 2016 07:03:20 +0000 UTC
	Bits:       0x1e0fffff,
	Nonce:      1831645,
}

// genesisHash is the hash of the first block in the block chain for the main
// network.
var genesisHash = genesisHeader.BlockHash()

// testNetGenesisHeader is the first block header of the test network.
var testNetGenesisHeader = wire.BlockHeader{
	Version:    1,
	PrevBlock:  chainhash.Hash{},
	MerkleRoot: *genesisMerkleRoot,
	Timestamp:  time.Unix(1470467000, 0),
	Bits:       0x1e0fffff,
	Nonce:      2433759,
}

var testNetGenesisHash = testNetGenesisHeader.BlockHash()

// regTestGenesisHeader is the first block header of the regression test
// network.
var regTestGenesisHeader = wire.BlockHeader{
	Version:    1,
	PrevBlock:  chainhash.Hash{},
	MerkleRoot: *genesisMerkleRoot,
	Timestamp:  time.Unix(1470467000, 0),
	Bits:       0x207fffff,
	Nonce:      2,
}

var regTestGenesisHash = regTestGenesisHeader.BlockHash()
