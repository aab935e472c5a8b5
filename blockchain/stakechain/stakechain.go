// Copyright (c) 2024 The posd developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package stakechain

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/decred/dcrd/lru"
	"github.com/posmint/posd/blockchain"
	"github.com/posmint/posd/database/engine"
)

// StakeKind classifies how a block was produced.
type StakeKind uint8

const (
	// ProofOfWork marks a block whose header satisfied a hash target.
	ProofOfWork StakeKind = iota

	// ProofOfStake marks a block minted with a coinstake transaction.
	ProofOfStake
)

// String returns the StakeKind as a human-readable name.
func (k StakeKind) String() string {
	switch k {
	case ProofOfWork:
		return "proof-of-work"
	case ProofOfStake:
		return "proof-of-stake"
	}
	return fmt.Sprintf("Unknown StakeKind (%d)", uint8(k))
}

const (
	// DefaultCacheSize is the number of classifications kept in memory.
	DefaultCacheSize = 4096

	// headerRecordSize is height, kind and the serialized header.
	headerRecordSize = 4 + 1 + wire.MaxBlockHeaderPayload

	// blockRecordSize is height and kind.
	blockRecordSize = 4 + 1
)

var (
	// headerPrefix keys records by height then hash so a prefix scan
	// yields parents before children.
	headerPrefix = []byte{'h'}

	// blockPrefix keys the classification of a block by its hash.
	blockPrefix = []byte{'b'}
)

var (
	// ErrUnknownBlock is returned when a block was never recorded.
	ErrUnknownBlock = errors.New("stakechain: unknown block")

	// ErrCorruptRecord is returned when a stored record cannot be decoded.
	ErrCorruptRecord = errors.New("stakechain: corrupt record")
)

// Store persists the stake classification and header of every block the node
// learns about.
type Store struct {
	db    engine.Engine
	cache lru.KVCache
}

// New returns a Store backed by db.  A zero cacheSize selects
// DefaultCacheSize.
func New(db engine.Engine, cacheSize uint) *Store {
	if cacheSize == 0 {
		cacheSize = DefaultCacheSize
	}
	return &Store{
		db:    db,
		cache: lru.NewKVCache(cacheSize),
	}
}

func headerKey(height int32, hash *chainhash.Hash) []byte {
	key := make([]byte, 0, 1+4+chainhash.HashSize)
	key = append(key, headerPrefix...)
	key = binary.BigEndian.AppendUint32(key, uint32(height))
	return append(key, hash[:]...)
}

func blockKey(hash *chainhash.Hash) []byte {
	key := make([]byte, 0, 1+chainhash.HashSize)
	key = append(key, blockPrefix...)
	return append(key, hash[:]...)
}

// PutBlock records a block header with its height and stake kind.
func (s *Store) PutBlock(header *wire.BlockHeader, height int32, kind StakeKind) error {
	if height < 0 {
		return fmt.Errorf("stakechain: negative height %d", height)
	}
	hash := header.BlockHash()

	var buf bytes.Buffer
	buf.Grow(headerRecordSize)
	var prefix [blockRecordSize]byte
	binary.BigEndian.PutUint32(prefix[:4], uint32(height))
	prefix[4] = byte(kind)
	buf.Write(prefix[:])
	if err := header.Serialize(&buf); err != nil {
		return err
	}

	batch, err := s.db.NewBatch()
	if err != nil {
		return err
	}
	if err := batch.Put(headerKey(height, &hash), buf.Bytes()); err != nil {
		batch.Discard()
		return err
	}
	if err := batch.Put(blockKey(&hash), prefix[:]); err != nil {
		batch.Discard()
		return err
	}
	if err := batch.Commit(); err != nil {
		return err
	}

	s.cache.Add(hash, kind)
	log.Tracef("Recorded %v block %v at height %d", kind, hash, height)
	return nil
}

// ClassifyBlock returns whether the block with the given hash is a
// proof-of-work or proof-of-stake block.
func (s *Store) ClassifyBlock(hash *chainhash.Hash) (StakeKind, error) {
	if v, ok := s.cache.Lookup(*hash); ok {
		return v.(StakeKind), nil
	}

	snapshot, err := s.db.Snapshot()
	if err != nil {
		return 0, err
	}
	defer snapshot.Release()

	record, err := snapshot.Get(blockKey(hash))
	if errors.Is(err, engine.ErrNotFound) {
		return 0, fmt.Errorf("%w: %v", ErrUnknownBlock, hash)
	} else if err != nil {
		return 0, err
	}
	if len(record) != blockRecordSize {
		return 0, fmt.Errorf("%w: block %v has %d bytes", ErrCorruptRecord,
			hash, len(record))
	}

	kind := StakeKind(record[4])
	s.cache.Add(*hash, kind)
	return kind, nil
}

// LoadHeaders replays every stored header into idx in height order.  The
// lowest stored header becomes the root of the index and the first header
// seen at the greatest height becomes the tip.  It returns the number of
// headers loaded.
func (s *Store) LoadHeaders(idx *blockchain.HeaderIndex) (int, error) {
	snapshot, err := s.db.Snapshot()
	if err != nil {
		return 0, err
	}
	defer snapshot.Release()

	iter := snapshot.NewIterator(engine.BytesPrefix(headerPrefix))
	defer iter.Release()

	var (
		count int
		best  *blockchain.ChainedHeader
	)
	for iter.Next() {
		record := iter.Value()
		if len(record) != headerRecordSize {
			return count, fmt.Errorf("%w: header record has %d bytes",
				ErrCorruptRecord, len(record))
		}
		height := int32(binary.BigEndian.Uint32(record[:4]))
		kind := StakeKind(record[4])

		var header wire.BlockHeader
		err := header.Deserialize(bytes.NewReader(record[blockRecordSize:]))
		if err != nil {
			return count, fmt.Errorf("%w: %v", ErrCorruptRecord, err)
		}

		var node *blockchain.ChainedHeader
		if count == 0 {
			node, err = idx.AddRoot(&header, height)
		} else {
			node, err = idx.AddHeader(&header)
		}
		if err != nil {
			return count, fmt.Errorf("loading header at height %d: %w",
				height, err)
		}
		if node.Height() != height {
			return count, fmt.Errorf("%w: header %v stored at height %d "+
				"connects at %d", ErrCorruptRecord, node.Hash(), height,
				node.Height())
		}

		s.cache.Add(node.Hash(), kind)
		if blockchain.BetterTip(node, best) {
			best = node
		}
		count++
	}
	if err := iter.Error(); err != nil {
		return count, err
	}

	if best != nil {
		hash := best.Hash()
		if err := idx.SetTip(&hash); err != nil {
			return count, err
		}
		log.Infof("Loaded %d headers, tip %v", count, best)
	}
	return count, nil
}
