// Copyright (c) 2024 The posd developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"time"

	"github.com/posmint/posd/mining/posminer"
)

// tipAgeSyncState considers the node to be syncing while its best header is
// older than the network's maximum tip age.
type tipAgeSyncState struct {
	chain  posminer.ChainTipProvider
	clock  posminer.TimeSource
	maxAge time.Duration
}

// Ensure tipAgeSyncState implements the posminer.SyncState interface.
var _ posminer.SyncState = (*tipAgeSyncState)(nil)

// IsSyncing implements posminer.SyncState.
func (s *tipAgeSyncState) IsSyncing() bool {
	tip := s.chain.CurrentTip()
	if tip == nil {
		return true
	}
	return s.clock.AdjustedTime().Sub(tip.Timestamp()) > s.maxAge
}

// nodeLifetime ends when the node starts shutting down.
type nodeLifetime struct {
	ctx context.Context
}

// Ensure nodeLifetime implements the posminer.NodeLifetime interface.
var _ posminer.NodeLifetime = nodeLifetime{}

// Context implements posminer.NodeLifetime.
func (l nodeLifetime) Context() context.Context {
	return l.ctx
}
