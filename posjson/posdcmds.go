// Copyright (c) 2024 The posd developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package posjson

import (
	"github.com/btcsuite/btcd/btcjson"
)

// GetStakingInfoCmd defines the getstakinginfo JSON-RPC command.
type GetStakingInfoCmd struct{}

// NewGetStakingInfoCmd returns a new instance which can be used to issue a
// getstakinginfo JSON-RPC command.
func NewGetStakingInfoCmd() *GetStakingInfoCmd {
	return &GetStakingInfoCmd{}
}

// GetNetworkWeightCmd defines the getnetworkweight JSON-RPC command.
type GetNetworkWeightCmd struct{}

// NewGetNetworkWeightCmd returns a new instance which can be used to issue a
// getnetworkweight JSON-RPC command.
func NewGetNetworkWeightCmd() *GetNetworkWeightCmd {
	return &GetNetworkWeightCmd{}
}

// StartStakingCmd defines the startstaking JSON-RPC command.
type StartStakingCmd struct {
	WalletName string
	Passphrase *string
}

// NewStartStakingCmd returns a new instance which can be used to issue a
// startstaking JSON-RPC command.
//
// The parameters which are pointers indicate they are optional.  Passing nil
// for optional parameters will use the default value.
func NewStartStakingCmd(walletName string, passphrase *string) *StartStakingCmd {
	return &StartStakingCmd{
		WalletName: walletName,
		Passphrase: passphrase,
	}
}

// StopStakingCmd defines the stopstaking JSON-RPC command.
type StopStakingCmd struct{}

// NewStopStakingCmd returns a new instance which can be used to issue a
// stopstaking JSON-RPC command.
func NewStopStakingCmd() *StopStakingCmd {
	return &StopStakingCmd{}
}

// SubmitHeaderCmd defines the submitheader JSON-RPC command.  The header
// extends the header chain and is recorded as proof of stake unless
// ProofOfStake is false.
type SubmitHeaderCmd struct {
	HexHeader    string
	ProofOfStake *bool `jsonrpcdefault:"true"`
}

// NewSubmitHeaderCmd returns a new instance which can be used to issue a
// submitheader JSON-RPC command.
//
// The parameters which are pointers indicate they are optional.  Passing nil
// for optional parameters will use the default value.
func NewSubmitHeaderCmd(hexHeader string, proofOfStake *bool) *SubmitHeaderCmd {
	return &SubmitHeaderCmd{
		HexHeader:    hexHeader,
		ProofOfStake: proofOfStake,
	}
}

// Methods lists the commands served by posd, including the standard ones
// defined by btcjson.
var Methods = []string{
	"getdifficulty",
	"getnetworkweight",
	"getstakinginfo",
	"startstaking",
	"stop",
	"stopstaking",
	"submitheader",
}

func init() {
	// No special flags for commands in this file.
	flags := btcjson.UsageFlag(0)

	btcjson.MustRegisterCmd("getstakinginfo", (*GetStakingInfoCmd)(nil), flags)
	btcjson.MustRegisterCmd("getnetworkweight", (*GetNetworkWeightCmd)(nil), flags)
	btcjson.MustRegisterCmd("startstaking", (*StartStakingCmd)(nil), flags)
	btcjson.MustRegisterCmd("stopstaking", (*StopStakingCmd)(nil), flags)
	btcjson.MustRegisterCmd("submitheader", (*SubmitHeaderCmd)(nil), flags)
}
