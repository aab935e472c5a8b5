// Copyright (c) 2014-2016 The btcsuite developers
// Copyright (c) 2024 The posd developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package chaincfg

import (
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/posmint/posd/blockchain"
)

var (
	// bigOne is 1 represented as a big.Int.  It is defined here to avoid
	// the overhead of creating it multiple times.
	bigOne = big.NewInt(1)

	// stakePowLimit is the highest proof of work value a block can have on
	// the main and test networks.  It is the value 2^236 - 1 and matches
	// the compact form 0x1e0fffff.
	stakePowLimit = new(big.Int).Sub(new(big.Int).Lsh(bigOne, 236), bigOne)

	// regressionPowLimit is the highest proof of work value a block can
	// have for the regression test network.  It is the value 2^255 - 1.
	regressionPowLimit = new(big.Int).Sub(new(big.Int).Lsh(bigOne, 255), bigOne)
)

const (
	// DifficultyOneBits is the compact form of the difficulty-1 reference
	// target every network measures difficulty against.
	DifficultyOneBits uint32 = 0x1d00ffff

	// DefaultStakeTimestampMask masks the low bits of a coinstake
	// timestamp so that only one kernel search per 16 second slot is made.
	DefaultStakeTimestampMask uint32 = 0x0000000F
)

// StakeConfirmationRule is the softfork-gated coin age rule.  A staking
// output must be buried MinConfirmations(height) deep, where height is the
// height of the block being minted.  Outputs created by a coinstake
// transaction use their own, larger, pair of values.
type StakeConfirmationRule struct {
	// ActivationHeight is the first minted height that uses the
	// post-activation values.
	ActivationHeight int32

	BeforeActivation int32
	AfterActivation  int32

	CoinstakeBeforeActivation int32
	CoinstakeAfterActivation  int32
}

// MinConfirmations returns the minimum number of confirmations a staking
// output must have for a block minted at the given height.
func (r *StakeConfirmationRule) MinConfirmations(height int32, coinstake bool) int32 {
	activated := height >= r.ActivationHeight
	switch {
	case coinstake && activated:
		return r.CoinstakeAfterActivation
	case coinstake:
		return r.CoinstakeBeforeActivation
	case activated:
		return r.AfterActivation
	default:
		return r.BeforeActivation
	}
}

// Validate checks the rule for internal consistency.
func (r *StakeConfirmationRule) Validate() error {
	switch {
	case r.ActivationHeight <= 0:
		return fmt.Errorf("activation height %d must be positive",
			r.ActivationHeight)
	case r.BeforeActivation < 1 || r.AfterActivation < 1:
		return fmt.Errorf("minimum confirmations %d/%d must be at least 1",
			r.BeforeActivation, r.AfterActivation)
	case r.CoinstakeBeforeActivation <= r.BeforeActivation:
		return fmt.Errorf("coinstake minimum confirmations before "+
			"activation %d must exceed %d", r.CoinstakeBeforeActivation,
			r.BeforeActivation)
	case r.CoinstakeAfterActivation <= r.AfterActivation:
		return fmt.Errorf("coinstake minimum confirmations after "+
			"activation %d must exceed %d", r.CoinstakeAfterActivation,
			r.AfterActivation)
	}
	return nil
}

// Params defines a proof-of-stake network by its parameters.  These
// parameters may be used by applications to differentiate networks as well
// as addresses and keys for one network from those intended for use on
// another network.
type Params struct {
	// Name defines a human-readable identifier for the network.
	Name string

	// Net defines the magic bytes used to identify the network.
	Net wire.BitcoinNet

	// DefaultPort defines the default peer-to-peer port for the network.
	DefaultPort string

	// RPCPort defines the default JSON-RPC port for the network.
	RPCPort string

	// GenesisHeader defines the first block header of the chain.
	GenesisHeader *wire.BlockHeader

	// GenesisHash is the starting block hash.
	GenesisHash *chainhash.Hash

	// PowLimit defines the highest allowed proof of work value for a block
	// as a uint256.
	PowLimit *big.Int

	// PowLimitBits defines the highest allowed proof of work value for a
	// block in compact form.
	PowLimitBits uint32

	// DifficultyOneBits is the compact target that has a difficulty of
	// exactly one.
	DifficultyOneBits uint32

	// TargetTimePerBlock is the desired amount of time to generate each
	// block.
	TargetTimePerBlock time.Duration

	// StakeTimestampMask is applied to coinstake timestamps.  Network
	// weight estimates are scaled by StakeTimestampMask+1.
	StakeTimestampMask uint32

	// CoinbaseMaturity is the number of blocks required before newly mined
	// coins can be spent.
	CoinbaseMaturity uint16

	// StakeConfirmations is the coin age rule applied to staking outputs.
	StakeConfirmations StakeConfirmationRule

	// MinimumStakingCoinValue is the smallest output value that may be
	// used as a staking input.
	MinimumStakingCoinValue btcutil.Amount

	// MaxTipAge is how old the best known header may be before the node
	// considers itself to still be syncing.
	MaxTipAge time.Duration
}

// StakeMinConfirmations returns the minimum confirmations required of a
// staking output for a block minted at height.
func (p *Params) StakeMinConfirmations(height int32, coinstake bool) int32 {
	return p.StakeConfirmations.MinConfirmations(height, coinstake)
}

// CheckStakingParams ensures the parameters the staking engine depends on
// are usable.
func (p *Params) CheckStakingParams() error {
	if p.DifficultyOneBits == 0 {
		return fmt.Errorf("network %q has no difficulty one target", p.Name)
	}
	if p.PowLimit == nil || p.PowLimit.Sign() <= 0 {
		return fmt.Errorf("network %q has no proof of work limit", p.Name)
	}
	if bits := blockchain.BigToCompact(p.PowLimit); bits != p.PowLimitBits {
		return fmt.Errorf("network %q limit bits %08x do not encode its "+
			"limit (want %08x)", p.Name, p.PowLimitBits, bits)
	}
	if blockchain.CompactToBig(p.PowLimitBits).Cmp(p.PowLimit) > 0 {
		return fmt.Errorf("network %q limit bits %08x exceed its limit",
			p.Name, p.PowLimitBits)
	}
	diffOne := blockchain.CompactToTarget(p.DifficultyOneBits)
	if diffOne.Sign() <= 0 || diffOne.Cmp(p.PowLimit) > 0 {
		return fmt.Errorf("network %q difficulty one target %08x is "+
			"outside its limit", p.Name, p.DifficultyOneBits)
	}
	if p.MinimumStakingCoinValue < 0 {
		return fmt.Errorf("network %q has negative minimum staking value",
			p.Name)
	}
	if err := p.StakeConfirmations.Validate(); err != nil {
		return fmt.Errorf("network %q: %w", p.Name, err)
	}
	return nil
}

var (
	// ErrDuplicateNet describes an error where the parameters for a
	// network could not be set due to the network already being a standard
	// network or previously-registered into this package.
	ErrDuplicateNet = errors.New("duplicate network")

	// ErrUnknownNet describes an error where no registered network matches
	// the requested name.
	ErrUnknownNet = errors.New("unknown network")
)

var (
	registeredNets = make(map[wire.BitcoinNet]*Params)
	netsByName     = make(map[string]*Params)
)

// Register registers the network parameters for a network.  This may error
// with ErrDuplicateNet if the network is already registered (either due to a
// previous Register call, or the network being one of the default networks).
//
// Network parameters should be registered into this package by a main
// package as early as possible.
func Register(params *Params) error {
	name := strings.ToLower(params.Name)
	if _, ok := registeredNets[params.Net]; ok {
		return ErrDuplicateNet
	}
	if _, ok := netsByName[name]; ok {
		return ErrDuplicateNet
	}
	registeredNets[params.Net] = params
	netsByName[name] = params
	return nil
}

// ParamsByName returns the registered network with the given name.
func ParamsByName(name string) (*Params, error) {
	params, ok := netsByName[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownNet, name)
	}
	return params, nil
}

// mustRegister performs the same function as Register except it panics if
// there is an error.  This should only be called from package init functions.
func mustRegister(params *Params) {
	if err := Register(params); err != nil {
		panic("failed to register network: " + err.Error())
	}
}

// newHashFromStr converts the passed big-endian hex string into a
// chainhash.Hash.  It only differs from the one available in chainhash in
// that it panics on an error since it will only (and must only) be called
// with hard-coded, and therefore known good, hashes.
func newHashFromStr(hexStr string) *chainhash.Hash {
	hash, err := chainhash.NewHashFromStr(hexStr)
	if err != nil {
		panic(err)
	}
	return hash
}

func init() {
	mustRegister(&MainNetParams)
	mustRegister(&TestNetParams)
	mustRegister(&RegressionNetParams)
}
