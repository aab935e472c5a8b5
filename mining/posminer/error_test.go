// Copyright (c) 2024 The posd developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package posminer

import (
	"errors"
	"fmt"
	"testing"

	"github.com/posmint/posd/blockchain"
	"github.com/stretchr/testify/require"
)

// TestErrorCodeStringer tests the stringized output for the ErrorCode type.
func TestErrorCodeStringer(t *testing.T) {
	tests := []struct {
		in   ErrorCode
		want string
	}{
		{ErrAlreadyStaking, "ErrAlreadyStaking"},
		{ErrMissingWalletName, "ErrMissingWalletName"},
		{ErrInvalidConfig, "ErrInvalidConfig"},
		{0xffff, "Unknown ErrorCode (65535)"},
	}

	// Detect additional error codes that don't have the stringer added.
	require.Equal(t, int(numErrorCodes), len(tests)-1,
		"It appears an error code was added without adding an associated "+
			"stringer test")

	for i, test := range tests {
		require.Equalf(t, test.want, test.in.String(), "#%d", i)
	}
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"minting error", NewMintingError("kernel above target"), true},
		{"wrapped minting error", fmt.Errorf("attempt: %w",
			&MintingError{Description: "locked", Err: errors.New("wallet")}), true},
		{"missing parent", blockchain.RuleError{
			ErrorCode: blockchain.ErrMissingParent}, true},
		{"duplicate block", fmt.Errorf("submit: %w", blockchain.RuleError{
			ErrorCode: blockchain.ErrDuplicateBlock}), true},
		{"invalid target", blockchain.RuleError{
			ErrorCode: blockchain.ErrInvalidTarget}, false},
		{"second root", blockchain.RuleError{
			ErrorCode: blockchain.ErrIndexRooted}, false},
		{"plain error", errors.New("disk on fire"), false},
		{"config error", minerError(ErrInvalidConfig, "bad"), false},
	}

	for _, test := range tests {
		require.Equalf(t, test.want, isTransient(test.err), test.name)
	}
}

func TestMintingErrorMessage(t *testing.T) {
	inner := errors.New("wallet locked")
	err := &MintingError{Description: "cannot sign", Err: inner}
	require.Equal(t, "cannot sign: wallet locked", err.Error())
	require.ErrorIs(t, err, inner)
	require.Equal(t, "no kernel at 16", NewMintingError("no kernel at %d", 16).Error())
}
