// Copyright (c) 2013-2017 The btcsuite developers
// Copyright (c) 2024 The posd developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/btcsuite/btcd/wire"
	"github.com/posmint/posd/blockchain"
	"github.com/posmint/posd/blockchain/stakechain"
	"github.com/posmint/posd/database/engine"
	"github.com/posmint/posd/database/engine/leveldb"
	"github.com/posmint/posd/database/engine/pebbledb"
	"github.com/posmint/posd/internal/log"
	"github.com/posmint/posd/mining/posminer"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// stakeDbNamePrefix is the prefix for the stake index database name.  The
// database type is appended to it to form the full name.
const stakeDbNamePrefix = "stakeindex"

// openStakeDB opens the stake index database of the configured type,
// creating it when it does not exist yet.
func openStakeDB(cfg *config) (engine.Engine, error) {
	dbPath := filepath.Join(cfg.DataDir, stakeDbNamePrefix+"_"+cfg.DbType)

	_, err := os.Stat(dbPath)
	create := os.IsNotExist(err)
	if create {
		if err := os.MkdirAll(cfg.DataDir, 0700); err != nil {
			return nil, err
		}
		bcdbLog.Infof("Creating stake index in %s", dbPath)
	} else {
		bcdbLog.Infof("Loading stake index from %s", dbPath)
	}

	opts := &engine.Options{Create: create, CacheMB: cfg.DbCache}
	switch cfg.DbType {
	case "leveldb":
		db, err := leveldb.Open(dbPath, opts)
		if err != nil {
			return nil, err
		}
		return db, nil
	case "pebble":
		db, err := pebbledb.Open(dbPath, opts)
		if err != nil {
			return nil, err
		}
		return db, nil
	}
	return nil, fmt.Errorf("unsupported database type %q", cfg.DbType)
}

// server ties the header chain, the stake index and the minter together and
// exposes them over RPC.
type server struct {
	started  int32
	shutdown int32

	cfg        *config
	db         engine.Engine
	store      *stakechain.Store
	index      *blockchain.HeaderIndex
	timeSource blockchain.MedianTimeSource
	registry   *prometheus.Registry
	minter     *posminer.PoSMinter
	rpcServer  *rpcServer

	// headerMtx serializes header submissions so the index and the stake
	// index see headers in the same order.
	headerMtx sync.Mutex

	ctx    context.Context
	cancel context.CancelFunc
}

// newServer loads the header chain from db and prepares the minter and the
// RPC server.  Nothing runs until Start is called.
func newServer(cfg *config, db engine.Engine) (*server, error) {
	store := stakechain.New(db, cfg.StakeCacheSize)
	index := blockchain.NewHeaderIndex()

	count, err := store.LoadHeaders(index)
	if err != nil {
		return nil, err
	}
	if count == 0 {
		genesis := cfg.params.GenesisHeader
		err := store.PutBlock(genesis, 0, stakechain.ProofOfWork)
		if err != nil {
			return nil, err
		}
		if _, err := index.AddRoot(genesis, 0); err != nil {
			return nil, err
		}
		count = 1
	}
	tip := index.CurrentTip()
	posdLog.Infof("Loaded %d %s, tip %v", count,
		log.PickNoun(uint64(count), "header", "headers"), tip)

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(
		collectors.ProcessCollectorOpts{}))

	ctx, cancel := context.WithCancel(context.Background())
	s := &server{
		cfg:        cfg,
		db:         db,
		store:      store,
		index:      index,
		timeSource: blockchain.NewMedianTime(),
		registry:   registry,
		ctx:        ctx,
		cancel:     cancel,
	}

	var wallet posminer.Wallet = newSnapshotWallet(cfg.WalletSnapshot)
	s.minter, err = posminer.New(&posminer.Config{
		ChainParams:  cfg.params,
		Chain:        index,
		StakeChain:   store,
		Wallet:       wallet,
		BlockBuilder: dryRunBuilder{},
		SyncState: &tipAgeSyncState{
			chain:  index,
			clock:  s.timeSource,
			maxAge: cfg.params.MaxTipAge,
		},
		TimeSync:            s.timeSource,
		TimeSource:          s.timeSource,
		Lifetime:            nodeLifetime{ctx: ctx},
		ReserveBalance:      cfg.reserve,
		MinimumStakingValue: cfg.minStaking,
		Metrics:             posminer.NewMetrics(registry),
	})
	if err != nil {
		cancel()
		return nil, err
	}

	if !cfg.DisableRPC {
		s.rpcServer, err = newRPCServer(&rpcserverConfig{
			ListenAddrs: cfg.RPCListeners,
			RPCUser:     cfg.RPCUser,
			RPCPass:     cfg.RPCPass,
			Server:      s,
		})
		if err != nil {
			cancel()
			return nil, err
		}
	}

	return s, nil
}

// Start begins serving RPC requests and, when configured, starts staking.
func (s *server) Start() error {
	if atomic.AddInt32(&s.started, 1) != 1 {
		return nil
	}

	posdLog.Trace("Starting server")
	if s.rpcServer != nil {
		s.rpcServer.Start()
	}

	if s.cfg.Stake {
		err := s.minter.Stake(posminer.WalletSecret{
			WalletName: s.cfg.WalletName,
			Passphrase: []byte(s.cfg.WalletPass),
		})
		if err != nil {
			return fmt.Errorf("unable to start staking: %w", err)
		}
		posdLog.Infof("Staking from wallet %q", s.cfg.WalletName)
	}
	return nil
}

// Stop shuts the minter and the RPC server down.  The database is left for
// the caller to close.
func (s *server) Stop() error {
	if atomic.AddInt32(&s.shutdown, 1) != 1 {
		posdLog.Infof("Server is already in the process of shutting down")
		return nil
	}

	posdLog.Warnf("Server shutting down")
	s.minter.StopStake()
	s.cancel()

	if s.rpcServer != nil {
		if err := s.rpcServer.Stop(); err != nil {
			return err
		}
	}
	return nil
}

// submitHeader connects header to the header chain and records its stake
// kind.  Headers must arrive parent first.  The header is stored before it
// enters the index, so a storage failure leaves no trace and may be retried.
// A header on a side branch becomes the tip once its branch is the best one,
// the same rule LoadHeaders applies at startup.
func (s *server) submitHeader(header *wire.BlockHeader,
	kind stakechain.StakeKind) (*blockchain.ChainedHeader, error) {

	s.headerMtx.Lock()
	defer s.headerMtx.Unlock()

	height, err := s.index.ConnectHeight(header)
	if err != nil {
		return nil, err
	}
	if err := s.store.PutBlock(header, height, kind); err != nil {
		return nil, fmt.Errorf("header %v not stored: %w",
			header.BlockHash(), err)
	}
	node, err := s.index.AddHeader(header)
	if err != nil {
		return nil, err
	}
	if tip := s.index.CurrentTip(); tip != node && blockchain.BetterTip(node, tip) {
		hash := node.Hash()
		if err := s.index.SetTip(&hash); err != nil {
			return nil, err
		}
		posdLog.Infof("Best header chain switched to %v", node)
	}

	// The timestamps of headers extending the best chain are the node's
	// outside view of the network time.
	if s.index.CurrentTip() == node {
		s.timeSource.AddTimeSample(node.Hash().String(), node.Timestamp())
	}

	posdLog.Debugf("Accepted %v header %v", kind, node)
	return node, nil
}

// isRuleError returns whether err was caused by a header that does not
// connect to the chain.
func isRuleError(err error) bool {
	var ruleErr blockchain.RuleError
	return errors.As(err, &ruleErr)
}
