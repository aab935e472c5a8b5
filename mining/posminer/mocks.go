// Copyright (c) 2024 The posd developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package posminer

import (
	"context"

	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/mock"
)

// MockWallet is a mock implementation of the Wallet interface.
type MockWallet struct {
	mock.Mock
}

// Ensure the MockWallet implements the Wallet interface.
var _ Wallet = (*MockWallet)(nil)

// SpendableUtxosForStaking returns the mocked outputs.
func (m *MockWallet) SpendableUtxosForStaking(ctx context.Context,
	walletName string, minConfirmations int32) ([]*UtxoStakeDescription, error) {

	args := m.Called(ctx, walletName, minConfirmations)

	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*UtxoStakeDescription), args.Error(1)
}

// MockBlockBuilder is a mock implementation of the BlockBuilder interface.
type MockBlockBuilder struct {
	mock.Mock
}

// Ensure the MockBlockBuilder implements the BlockBuilder interface.
var _ BlockBuilder = (*MockBlockBuilder)(nil)

// AttemptStake returns the mocked block.
func (m *MockBlockBuilder) AttemptStake(ctx context.Context,
	req *StakeRequest) (*wire.MsgBlock, error) {

	args := m.Called(ctx, req)

	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*wire.MsgBlock), args.Error(1)
}

// MockSyncState is a mock implementation of the SyncState interface.
type MockSyncState struct {
	mock.Mock
}

// Ensure the MockSyncState implements the SyncState interface.
var _ SyncState = (*MockSyncState)(nil)

// IsSyncing returns the mocked sync flag.
func (m *MockSyncState) IsSyncing() bool {
	args := m.Called()
	return args.Bool(0)
}

// MockTimeSyncState is a mock implementation of the TimeSyncState interface.
type MockTimeSyncState struct {
	mock.Mock
}

// Ensure the MockTimeSyncState implements the TimeSyncState interface.
var _ TimeSyncState = (*MockTimeSyncState)(nil)

// IsSystemTimeOutOfSync returns the mocked clock state.
func (m *MockTimeSyncState) IsSystemTimeOutOfSync() bool {
	args := m.Called()
	return args.Bool(0)
}
