// Copyright (c) 2014-2016 The btcsuite developers
// Copyright (c) 2024 The posd developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package blockchain

import (
	"errors"
	"fmt"
)

// AssertError identifies an error that indicates an internal code consistency
// issue and should be treated as a critical and unrecoverable error.
type AssertError string

// Error returns the assertion error as a human-readable string and satisfies
// the error interface.
func (e AssertError) Error() string {
	return "assertion failed: " + string(e)
}

// ErrorCode identifies a kind of error.
type ErrorCode int

// These constants are used to identify a specific RuleError.
const (
	// ErrDuplicateBlock indicates a header with the same hash already
	// exists in the index.
	ErrDuplicateBlock ErrorCode = iota

	// ErrMissingParent indicates the parent of a header is not known to
	// the index.
	ErrMissingParent

	// ErrUnknownBlock indicates a hash that is not in the index was
	// referenced.
	ErrUnknownBlock

	// ErrInvalidTarget indicates a difficulty target that is zero or
	// negative.
	ErrInvalidTarget

	// ErrIndexRooted indicates a second root was offered to an index that
	// already has one.
	ErrIndexRooted

	// ErrBadHeight indicates a header height that does not fit the chain.
	ErrBadHeight

	// numErrorCodes is the maximum error code number used in tests.
	numErrorCodes
)

// Map of ErrorCode values back to their constant names for pretty printing.
var errorCodeStrings = map[ErrorCode]string{
	ErrDuplicateBlock: "ErrDuplicateBlock",
	ErrMissingParent:  "ErrMissingParent",
	ErrUnknownBlock:   "ErrUnknownBlock",
	ErrInvalidTarget:  "ErrInvalidTarget",
	ErrIndexRooted:    "ErrIndexRooted",
	ErrBadHeight:      "ErrBadHeight",
}

// String returns the ErrorCode as a human-readable name.
func (e ErrorCode) String() string {
	if s := errorCodeStrings[e]; s != "" {
		return s
	}
	return fmt.Sprintf("Unknown ErrorCode (%d)", int(e))
}

// RuleError identifies a rule violation.  It is used to indicate that
// processing of a header or a difficulty target failed due to one of the
// consensus rules.  The caller can use type assertions to determine if a
// failure was specifically due to a rule violation and access the ErrorCode
// field to ascertain the specific reason for the rule violation.
type RuleError struct {
	ErrorCode   ErrorCode // Describes the kind of error
	Description string    // Human readable description of the issue
}

// Error satisfies the error interface and prints human-readable errors.
func (e RuleError) Error() string {
	return e.Description
}

// ruleError creates an RuleError given a set of arguments.
func ruleError(c ErrorCode, desc string) RuleError {
	return RuleError{ErrorCode: c, Description: desc}
}

// IsErrorCode returns whether err wraps a RuleError with the given code.
func IsErrorCode(err error, c ErrorCode) bool {
	var rerr RuleError
	return errors.As(err, &rerr) && rerr.ErrorCode == c
}
