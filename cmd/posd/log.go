// Copyright (c) 2024 The posd developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"github.com/davecgh/go-spew/spew"
	"github.com/posmint/posd/internal/log"
)

var (
	posdLog = log.PosdLog
	rpcsLog = log.RpcsLog
	bcdbLog = log.BcdbLog
)

// logClosure is used to provide a closure over expensive logging operations so
// don't have to be performed when the logging level doesn't warrant it.
type logClosure func() string

// String invokes the underlying function and returns the result.
func (c logClosure) String() string {
	return c()
}

// newLogClosure returns a new closure over a function that returns a string
// which itself provides a Stringer interface so that it can be used with the
// logging system.
func newLogClosure(c func() string) logClosure {
	return logClosure(c)
}

// spewClosure dumps v at trace level.
func spewClosure(v interface{}) logClosure {
	return newLogClosure(func() string {
		return spew.Sdump(v)
	})
}
