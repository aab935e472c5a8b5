// Copyright (c) 2024 The posd developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

/*
Package posjson registers the posd specific JSON-RPC commands with btcjson.

Importing the package makes the commands known to btcjson.NewCmd,
btcjson.MarshalCmd and btcjson.UnmarshalCmd, so servers and clients share one
definition of each command and its parameters.  The standard getdifficulty and
stop commands are served as defined by btcjson.
*/
package posjson
