// Copyright (c) 2024 The posd developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package posjson

// NetworkWeightResult models the data from the getnetworkweight command.
type NetworkWeightResult struct {
	NetStakeWeight int64  `json:"netstakeweight"`
	TipHash        string `json:"tiphash,omitempty"`
	TipHeight      int32  `json:"tipheight"`
}

// SubmitHeaderResult models the data from the submitheader command.
type SubmitHeaderResult struct {
	Hash   string `json:"hash"`
	Height int32  `json:"height"`
	Kind   string `json:"kind"`
	IsTip  bool   `json:"istip"`
}
