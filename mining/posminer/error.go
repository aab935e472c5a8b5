// Copyright (c) 2024 The posd developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package posminer

import (
	"errors"
	"fmt"

	"github.com/posmint/posd/blockchain"
)

// ErrorCode identifies a kind of error.
type ErrorCode int

// These constants are used to identify a specific Error.
const (
	// ErrAlreadyStaking indicates Stake was called while the staking loop
	// is running.
	ErrAlreadyStaking ErrorCode = iota

	// ErrMissingWalletName indicates Stake was called without naming the
	// wallet to stake from.
	ErrMissingWalletName

	// ErrInvalidConfig indicates the minter was configured with missing or
	// inconsistent collaborators or parameters.
	ErrInvalidConfig

	// numErrorCodes is the maximum error code number used in tests.
	numErrorCodes
)

// Map of ErrorCode values back to their constant names for pretty printing.
var errorCodeStrings = map[ErrorCode]string{
	ErrAlreadyStaking:    "ErrAlreadyStaking",
	ErrMissingWalletName: "ErrMissingWalletName",
	ErrInvalidConfig:     "ErrInvalidConfig",
}

// String returns the ErrorCode as a human-readable name.
func (e ErrorCode) String() string {
	if s := errorCodeStrings[e]; s != "" {
		return s
	}
	return fmt.Sprintf("Unknown ErrorCode (%d)", int(e))
}

// Error reports a misuse of the minter or a configuration problem.  These are
// returned to the caller of Stake and never reach the staking loop.
type Error struct {
	ErrorCode   ErrorCode // Describes the kind of error
	Description string    // Human readable description of the issue
}

// Error satisfies the error interface and prints human-readable errors.
func (e Error) Error() string {
	return e.Description
}

// minerError creates an Error given a set of arguments.
func minerError(c ErrorCode, desc string) Error {
	return Error{ErrorCode: c, Description: desc}
}

// IsErrorCode returns whether err wraps an Error with the given code.
func IsErrorCode(err error, c ErrorCode) bool {
	var merr Error
	return errors.As(err, &merr) && merr.ErrorCode == c
}

// MintingError is an expected failure of a single staking attempt, such as
// a kernel that missed its target or a wallet that is briefly locked.  The
// staking loop records it and tries again on the next tick.
type MintingError struct {
	Description string
	Err         error
}

// NewMintingError returns a MintingError with the given description.
func NewMintingError(format string, args ...interface{}) *MintingError {
	return &MintingError{Description: fmt.Sprintf(format, args...)}
}

// Error satisfies the error interface.
func (e *MintingError) Error() string {
	if e.Err != nil {
		return e.Description + ": " + e.Err.Error()
	}
	return e.Description
}

// Unwrap returns the underlying error.
func (e *MintingError) Unwrap() error {
	return e.Err
}

// transientRuleErrors are the rule violations a candidate block can run into
// because the chain moved under it.  The next tick starts from the new tip.
var transientRuleErrors = map[blockchain.ErrorCode]struct{}{
	blockchain.ErrDuplicateBlock: {},
	blockchain.ErrMissingParent:  {},
	blockchain.ErrUnknownBlock:   {},
	blockchain.ErrBadHeight:      {},
}

// isTransient reports whether a staking attempt that failed with err may be
// retried on the next tick.
func isTransient(err error) bool {
	var merr *MintingError
	if errors.As(err, &merr) {
		return true
	}
	var rerr blockchain.RuleError
	if !errors.As(err, &rerr) {
		return false
	}
	_, ok := transientRuleErrors[rerr.ErrorCode]
	return ok
}
