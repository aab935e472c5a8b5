// Copyright (c) 2024 The posd developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package chaincfg_test

import (
	"testing"

	. "github.com/posmint/posd/chaincfg"
	"github.com/stretchr/testify/require"
)

var mockNetParams = Params{
	Name: "mocknet",
	Net:  1<<32 - 1,
}

func TestRegister(t *testing.T) {
	tests := []struct {
		name   string
		params *Params
		err    error
	}{
		{"duplicate mainnet", &MainNetParams, ErrDuplicateNet},
		{"duplicate testnet", &TestNetParams, ErrDuplicateNet},
		{"duplicate regtest", &RegressionNetParams, ErrDuplicateNet},
		{"new mocknet", &mockNetParams, nil},
		{"duplicate mocknet", &mockNetParams, ErrDuplicateNet},
	}

	for _, test := range tests {
		err := Register(test.params)
		require.Equalf(t, test.err, err, test.name)
	}

	got, err := ParamsByName("MockNet")
	require.NoError(t, err)
	require.Same(t, &mockNetParams, got)
}

func TestParamsByName(t *testing.T) {
	for _, name := range []string{"mainnet", "testnet", "regtest"} {
		params, err := ParamsByName(name)
		require.NoError(t, err)
		require.Equal(t, name, params.Name)
	}

	_, err := ParamsByName("simnet")
	require.ErrorIs(t, err, ErrUnknownNet)
}
