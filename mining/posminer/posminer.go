// Copyright (c) 2024 The posd developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package posminer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/posmint/posd/blockchain"
	"github.com/posmint/posd/chaincfg"
	"github.com/posmint/posd/internal/asyncloop"
)

const (
	// stakeLoopName is the name of the background staking loop.
	stakeLoopName = "PosMining.Stake"

	// DefaultRepeatEvery is the pause between two staking attempts.
	DefaultRepeatEvery = 500 * time.Millisecond

	// DefaultStartAfter is the delay before the first staking attempt.
	DefaultStartAfter = time.Second

	// walletMinConfirmations is the confirmation count asked of the wallet.
	// The consensus rules are applied afterwards by the eligibility filter.
	walletMinConfirmations = 1
)

// RunState is the state of the staking loop.
type RunState int

// These constants define the staking loop states.
const (
	// StateIdle means no staking loop is running.
	StateIdle RunState = iota

	// StateRunning means the staking loop is scheduled.
	StateRunning

	// StateFaulted means the staking loop stopped on an unexpected error.
	// Staking may be started again.
	StateFaulted
)

var runStateStrings = map[RunState]string{
	StateIdle:    "idle",
	StateRunning: "running",
	StateFaulted: "faulted",
}

// String returns the RunState as a human-readable name.
func (s RunState) String() string {
	if str, ok := runStateStrings[s]; ok {
		return str
	}
	return fmt.Sprintf("unknown state (%d)", int(s))
}

// Config is a descriptor containing the minter configuration.
type Config struct {
	// ChainParams identifies which chain parameters the minter is
	// associated with.
	ChainParams *chaincfg.Params

	// Chain provides the consensus tip and header lookups.
	Chain ChainTipProvider

	// StakeChain classifies blocks as proof of stake or proof of work.
	StakeChain StakeChain

	// Wallet lists the outputs available for staking.
	Wallet Wallet

	// BlockBuilder searches for a kernel and builds the block.
	BlockBuilder BlockBuilder

	// SyncState is consulted before every attempt.  There is no point in
	// staking while catching up since the block would be orphaned.
	SyncState SyncState

	// TimeSync is optional.  When it reports the system clock is out of
	// sync staking attempts are skipped with an error.
	TimeSync TimeSyncState

	// TimeSource is optional and defaults to the system clock.
	TimeSource TimeSource

	// Lifetime provides the context that ends the staking loop at
	// shutdown.
	Lifetime NodeLifetime

	// Loops starts the staking loop.  It defaults to
	// asyncloop.DefaultProvider.
	Loops asyncloop.Provider

	// ReserveBalance is kept out of staking.  Outputs larger than the
	// wallet balance less the reserve are not staked.
	ReserveBalance btcutil.Amount

	// MinimumStakingValue raises the network minimum staking output value.
	// Values at or below the network minimum have no effect.
	MinimumStakingValue btcutil.Amount

	// RepeatEvery and StartAfter schedule the staking loop.  Zero values
	// select DefaultRepeatEvery and DefaultStartAfter.
	RepeatEvery time.Duration
	StartAfter  time.Duration

	// Metrics is optional.
	Metrics *Metrics
}

// systemClock is the TimeSource used when none is configured.
type systemClock struct{}

func (systemClock) AdjustedTime() time.Time {
	return time.Unix(time.Now().Unix(), 0)
}

// StakingInfo is a snapshot of the minter status.
type StakingInfo struct {
	Enabled        bool    `json:"enabled"`
	Staking        bool    `json:"staking"`
	Errors         string  `json:"errors"`
	Difficulty     float64 `json:"difficulty"`
	NetStakeWeight int64   `json:"netstakeweight"`
	Weight         int64   `json:"weight"`
	ExpectedTime   int64   `json:"expectedtime"`
	SearchInterval int64   `json:"searchinterval"`
	BlocksStaked   uint64  `json:"blocksstaked"`
	LastBlock      string  `json:"lastblock,omitempty"`
	State          string  `json:"state"`
}

// PoSMinter runs the staking loop and answers staking status queries.  It
// is safe for concurrent access.
type PoSMinter struct {
	cfg    Config
	filter eligibilityFilter

	mtx    sync.Mutex
	state  RunState
	runID  uint64
	handle asyncloop.Handle
	cancel context.CancelFunc
	secret WalletSecret

	// stopping is the disposed handle of the last stopped loop.  Its
	// goroutine may still be finishing a tick.
	stopping asyncloop.Handle

	lastError      string
	searchTip      chainhash.Hash
	searchTime     int64
	searchInterval int64
	weight         btcutil.Amount
	blocksStaked   uint64
	lastBlock      *chainhash.Hash
}

// New returns a minter for the given configuration.  The staking loop is
// not started until Stake is called.
func New(cfg *Config) (*PoSMinter, error) {
	switch {
	case cfg.ChainParams == nil:
		return nil, minerError(ErrInvalidConfig, "no chain parameters")
	case cfg.Chain == nil:
		return nil, minerError(ErrInvalidConfig, "no chain tip provider")
	case cfg.StakeChain == nil:
		return nil, minerError(ErrInvalidConfig, "no stake chain")
	case cfg.Wallet == nil:
		return nil, minerError(ErrInvalidConfig, "no wallet")
	case cfg.BlockBuilder == nil:
		return nil, minerError(ErrInvalidConfig, "no block builder")
	case cfg.SyncState == nil:
		return nil, minerError(ErrInvalidConfig, "no sync state")
	case cfg.Lifetime == nil:
		return nil, minerError(ErrInvalidConfig, "no node lifetime")
	case cfg.ReserveBalance < 0:
		str := fmt.Sprintf("negative reserve balance %v", cfg.ReserveBalance)
		return nil, minerError(ErrInvalidConfig, str)
	}

	c := *cfg
	if c.TimeSource == nil {
		c.TimeSource = systemClock{}
	}
	if c.Loops == nil {
		c.Loops = asyncloop.DefaultProvider{}
	}
	if c.RepeatEvery <= 0 {
		c.RepeatEvery = DefaultRepeatEvery
	}
	if c.StartAfter <= 0 {
		c.StartAfter = DefaultStartAfter
	}

	minValue := c.ChainParams.MinimumStakingCoinValue
	if c.MinimumStakingValue > minValue {
		minValue = c.MinimumStakingValue
	}

	return &PoSMinter{
		cfg: c,
		filter: eligibilityFilter{
			chain:    c.Chain,
			params:   c.ChainParams,
			minValue: minValue,
		},
	}, nil
}

// Difficulty returns the proof-of-stake difficulty of header.  A nil header
// selects the consensus tip, or its last proof-of-stake ancestor.
func (m *PoSMinter) Difficulty(header *blockchain.ChainedHeader) (float64, error) {
	return StakeDifficulty(m.cfg.Chain, m.cfg.StakeChain, header,
		m.cfg.ChainParams)
}

// NetworkWeight estimates the network staking weight at the consensus tip.
func (m *PoSMinter) NetworkWeight() (float64, error) {
	return EstimateNetworkWeight(m.cfg.Chain, m.cfg.StakeChain,
		m.cfg.Chain.CurrentTip(), m.cfg.ChainParams)
}

// FilterSuitable returns the candidates that may stake on top of tip in a
// block with the given time, keeping their order.  A nil tip selects the
// consensus tip.  Outputs worth more than maxAllowed are left out.  The only
// error returned is the cancellation of ctx.
func (m *PoSMinter) FilterSuitable(ctx context.Context,
	candidates []*UtxoStakeDescription, tip *blockchain.ChainedHeader,
	blockTime time.Time, maxAllowed btcutil.Amount) ([]*UtxoStakeDescription, error) {

	if tip == nil {
		tip = m.cfg.Chain.CurrentTip()
	}
	if tip == nil || len(candidates) == 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return []*UtxoStakeDescription{}, nil
	}
	return m.filter.filter(ctx, candidates, tip, blockTime, maxAllowed)
}

// Stake starts the staking loop for the named wallet.  The passphrase is
// copied and zeroed again by StopStake.
func (m *PoSMinter) Stake(secret WalletSecret) error {
	if secret.WalletName == "" {
		return minerError(ErrMissingWalletName, "a wallet name is "+
			"required to stake")
	}
	if err := m.cfg.ChainParams.CheckStakingParams(); err != nil {
		return minerError(ErrInvalidConfig, err.Error())
	}
	if _, err := m.Difficulty(nil); err != nil {
		return err
	}

	// Make sure the goroutine of a stopped or faulted loop has exited
	// before starting a new one so two loops never overlap.
	m.mtx.Lock()
	if m.state == StateRunning {
		m.mtx.Unlock()
		return minerError(ErrAlreadyStaking, "staking is already running")
	}
	prev, disposed := m.handle, false
	if prev == nil {
		prev, disposed = m.stopping, true
	}
	m.mtx.Unlock()
	if prev != nil {
		if !disposed {
			prev.Dispose()
		}
		<-prev.Done()
	}

	m.mtx.Lock()
	defer m.mtx.Unlock()

	if m.state == StateRunning {
		return minerError(ErrAlreadyStaking, "staking is already running")
	}

	m.runID++
	runID := m.runID
	ctx, cancel := context.WithCancel(m.cfg.Lifetime.Context())
	m.cancel = cancel
	m.secret = WalletSecret{
		WalletName: secret.WalletName,
		Passphrase: append([]byte(nil), secret.Passphrase...),
	}
	m.state = StateRunning
	m.stopping = nil
	m.lastError = ""
	m.searchTime = 0
	m.searchInterval = 0

	// The provider must not invoke the loop function before returning
	// since ticks take the minter lock.
	m.handle = m.cfg.Loops.Run(ctx, stakeLoopName, func(ctx context.Context) error {
		if m.tick(ctx, runID).outcome == tickStop {
			return asyncloop.ErrStop
		}
		return nil
	}, m.cfg.RepeatEvery, m.cfg.StartAfter)
	go m.watch(runID, m.handle)

	log.Infof("Staking started for wallet %q", secret.WalletName)
	return nil
}

// StopStake stops the staking loop.  It is safe to call at any time and any
// number of times.
func (m *PoSMinter) StopStake() {
	m.mtx.Lock()
	defer m.mtx.Unlock()

	wasRunning := m.state == StateRunning
	m.stopLocked(StateIdle)
	m.lastError = ""
	if m.handle != nil {
		m.handle.Dispose()
		m.stopping = m.handle
		m.handle = nil
	}
	if wasRunning {
		log.Infof("Staking stopped")
	}
}

// stopLocked ends the current run and moves to the given state.  Ticks
// belonging to the ended run are ignored from now on.
//
// This function MUST be called with the minter lock held (for writes).
func (m *PoSMinter) stopLocked(state RunState) {
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	m.secret.zero()
	m.secret.WalletName = ""
	m.state = state
	m.runID++
}

// watch waits for the loop of run runID to exit.  A loop that exits while
// its run is still current ended on its own, after a panic or because the
// node shut down, so the minter leaves the running state.
func (m *PoSMinter) watch(runID uint64, h asyncloop.Handle) {
	<-h.Done()

	m.mtx.Lock()
	defer m.mtx.Unlock()

	if m.runID != runID {
		return
	}
	if err := h.Err(); err != nil {
		log.Errorf("Staking loop exited: %v", err)
		m.stopLocked(StateFaulted)
		m.lastError = err.Error()
		m.cfg.Metrics.tick(outcomeFatal)
		return
	}
	log.Debugf("Staking loop exited")
	m.stopLocked(StateIdle)
}

// State returns the current state of the staking loop.
func (m *PoSMinter) State() RunState {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	return m.state
}

// LastError returns the message of the last failed staking attempt.
func (m *PoSMinter) LastError() string {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	return m.lastError
}

// GetStatus returns a snapshot of the staking status.  The difficulty and
// network weight are computed from the current tip.
func (m *PoSMinter) GetStatus() (*StakingInfo, error) {
	difficulty, err := m.Difficulty(nil)
	if err != nil {
		return nil, err
	}
	netWeight, err := m.NetworkWeight()
	if err != nil {
		return nil, err
	}
	m.cfg.Metrics.status(difficulty, netWeight)

	m.mtx.Lock()
	defer m.mtx.Unlock()

	enabled := m.state == StateRunning
	info := &StakingInfo{
		Enabled:        enabled,
		Staking:        enabled && m.weight > 0 && m.searchInterval > 0,
		Errors:         m.lastError,
		Difficulty:     difficulty,
		NetStakeWeight: int64(netWeight),
		Weight:         int64(m.weight),
		SearchInterval: m.searchInterval,
		BlocksStaked:   m.blocksStaked,
		State:          m.state.String(),
	}
	if info.Staking {
		target := m.cfg.ChainParams.TargetTimePerBlock.Seconds()
		info.ExpectedTime = int64(target * netWeight / float64(m.weight))
	}
	if m.lastBlock != nil {
		info.LastBlock = m.lastBlock.String()
	}
	return info, nil
}

// tickOutcome tells the staking loop whether to keep going.
type tickOutcome int

const (
	tickContinue tickOutcome = iota
	tickStop
)

// tickResult is the result of one staking attempt.  The message is empty
// unless the attempt failed.
type tickResult struct {
	outcome tickOutcome
	message string
}

// maskedTime returns the adjusted time rounded down to the stake timestamp
// granularity.
func (m *PoSMinter) maskedTime() time.Time {
	now := m.cfg.TimeSource.AdjustedTime().Unix()
	return time.Unix(now&^int64(m.cfg.ChainParams.StakeTimestampMask), 0)
}

// tick performs one staking attempt for the given run.
func (m *PoSMinter) tick(ctx context.Context, runID uint64) tickResult {
	if err := ctx.Err(); err != nil {
		return m.fail(runID, err)
	}

	m.mtx.Lock()
	if m.runID != runID {
		m.mtx.Unlock()
		return tickResult{outcome: tickStop}
	}
	secret := m.secret
	searchTip, searchTime := m.searchTip, m.searchTime
	m.mtx.Unlock()

	if ts := m.cfg.TimeSync; ts != nil && ts.IsSystemTimeOutOfSync() {
		return m.fail(runID, NewMintingError("system time is out of sync"))
	}

	tip := m.cfg.Chain.CurrentTip()
	if tip == nil || m.cfg.SyncState.IsSyncing() {
		log.Tracef("Staking skipped, chain is not current")
		m.cfg.Metrics.tick(outcomeSkipped)
		return tickResult{outcome: tickContinue}
	}

	blockTime := m.maskedTime()
	tipHash := tip.Hash()
	if !blockTime.After(tip.Timestamp()) ||
		(tipHash == searchTip && blockTime.Unix() <= searchTime) {

		m.cfg.Metrics.tick(outcomeSkipped)
		return tickResult{outcome: tickContinue}
	}

	utxos, err := m.cfg.Wallet.SpendableUtxosForStaking(ctx,
		secret.WalletName, walletMinConfirmations)
	if err != nil {
		return m.fail(runID, err)
	}

	var total btcutil.Amount
	for _, utxo := range utxos {
		total += utxo.Amount()
	}
	eligible, err := m.filter.filter(ctx, utxos, tip, blockTime,
		total-m.cfg.ReserveBalance)
	if err != nil {
		return m.fail(runID, err)
	}
	var weight btcutil.Amount
	for _, utxo := range eligible {
		weight += utxo.Amount()
	}

	if !m.recordSearch(runID, tipHash, blockTime, weight) {
		return tickResult{outcome: tickStop}
	}
	m.cfg.Metrics.attempt(len(eligible), int64(weight))

	if len(eligible) == 0 {
		log.Tracef("No outputs eligible for staking at height %d",
			tip.Height()+1)
		m.succeed(runID, nil)
		m.cfg.Metrics.tick(outcomeNoCoins)
		return tickResult{outcome: tickContinue}
	}

	log.Debugf("Attempting to stake %d outputs worth %v on %v",
		len(eligible), weight, tip)
	block, err := m.cfg.BlockBuilder.AttemptStake(ctx, &StakeRequest{
		Tip:       tip,
		Utxos:     eligible,
		BlockTime: blockTime,
		Secret:    secret,
	})
	if err != nil {
		return m.fail(runID, err)
	}

	var minted *chainhash.Hash
	if block != nil {
		hash := block.BlockHash()
		minted = &hash
		log.Infof("Staked block %v at height %d", hash, tip.Height()+1)
		m.cfg.Metrics.minted()
		m.cfg.Metrics.tick(outcomeMinted)
	} else {
		m.cfg.Metrics.tick(outcomeAttempted)
	}
	m.succeed(runID, minted)
	return tickResult{outcome: tickContinue}
}

// recordSearch stores the bookkeeping of an attempt.  It returns false when
// the run has ended in the meantime.
func (m *PoSMinter) recordSearch(runID uint64, tipHash chainhash.Hash,
	blockTime time.Time, weight btcutil.Amount) bool {

	m.mtx.Lock()
	defer m.mtx.Unlock()

	if m.runID != runID {
		return false
	}
	if m.searchTime != 0 {
		m.searchInterval = blockTime.Unix() - m.searchTime
	}
	m.searchTip = tipHash
	m.searchTime = blockTime.Unix()
	m.weight = weight
	return true
}

// succeed clears the last error after an attempt that ran to completion.
func (m *PoSMinter) succeed(runID uint64, minted *chainhash.Hash) {
	m.mtx.Lock()
	defer m.mtx.Unlock()

	if m.runID != runID {
		return
	}
	m.lastError = ""
	if minted != nil {
		m.blocksStaked++
		m.lastBlock = minted
	}
}

// fail sorts the error of an attempt.  Cancellation ends the run quietly,
// transient errors are recorded and anything else faults the loop.
func (m *PoSMinter) fail(runID uint64, err error) tickResult {
	m.mtx.Lock()
	defer m.mtx.Unlock()

	if m.runID != runID {
		return tickResult{outcome: tickStop}
	}

	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		log.Debugf("Staking attempt canceled")
		m.stopLocked(StateIdle)
		return tickResult{outcome: tickStop}

	case isTransient(err):
		log.Debugf("Staking attempt failed: %v", err)
		m.lastError = err.Error()
		m.cfg.Metrics.tick(outcomeTransient)
		return tickResult{outcome: tickContinue, message: m.lastError}
	}

	log.Errorf("Staking stopped on unexpected error: %v", err)
	m.stopLocked(StateFaulted)
	m.lastError = err.Error()
	m.cfg.Metrics.tick(outcomeFatal)
	return tickResult{outcome: tickStop, message: m.lastError}
}
