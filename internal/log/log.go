// Copyright (c) 2013-2017 The btcsuite developers
// Copyright (c) 2024 The posd developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package log owns the subsystem loggers of posd.  Every package that logs
// exposes UseLogger, and this package hands each of them a logger tagged
// with its subsystem identifier.
package log

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/btcsuite/btclog"
	"github.com/jrick/logrotate/rotator"
	"github.com/posmint/posd/blockchain"
	"github.com/posmint/posd/blockchain/stakechain"
	"github.com/posmint/posd/internal/asyncloop"
	"github.com/posmint/posd/mining/posminer"
)

const (
	// DefaultMaxLogSizeKB is the size a log file grows to before it is
	// rolled.
	DefaultMaxLogSizeKB = 10 * 1024

	// DefaultMaxLogRolls is the number of rolled files kept.
	DefaultMaxLogRolls = 3
)

// output fans log lines out to stdout and, once InitLogRotator succeeded, to
// the rotating log file.
type output struct {
	mtx sync.Mutex
	r   *rotator.Rotator
}

func (o *output) Write(p []byte) (int, error) {
	os.Stdout.Write(p)
	o.mtx.Lock()
	if o.r != nil {
		o.r.Write(p)
	}
	o.mtx.Unlock()
	return len(p), nil
}

var (
	out        = &output{}
	backendLog = btclog.NewBackend(out)

	BcdbLog = backendLog.Logger("BCDB")
	PosdLog = backendLog.Logger("POSD")
	RpcsLog = backendLog.Logger("RPCS")

	// subsystems maps each subsystem identifier to its logger.
	subsystems = map[string]btclog.Logger{
		"BCDB": BcdbLog,
		"CHAN": backendLog.Logger("CHAN"),
		"LOOP": backendLog.Logger("LOOP"),
		"MINR": backendLog.Logger("MINR"),
		"POSD": PosdLog,
		"RPCS": RpcsLog,
		"STKC": backendLog.Logger("STKC"),
	}
)

func init() {
	blockchain.UseLogger(subsystems["CHAN"])
	stakechain.UseLogger(subsystems["STKC"])
	asyncloop.UseLogger(subsystems["LOOP"])
	posminer.UseLogger(subsystems["MINR"])
}

// InitLogRotator starts writing logs to logFile in addition to stdout.  The
// file is rolled after maxSizeKB kilobytes and maxRolls old files are kept;
// non-positive values select the defaults.
func InitLogRotator(logFile string, maxSizeKB int64, maxRolls int) error {
	if maxSizeKB <= 0 {
		maxSizeKB = DefaultMaxLogSizeKB
	}
	if maxRolls <= 0 {
		maxRolls = DefaultMaxLogRolls
	}
	if err := os.MkdirAll(filepath.Dir(logFile), 0700); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}
	r, err := rotator.New(logFile, maxSizeKB, false, maxRolls)
	if err != nil {
		return fmt.Errorf("failed to create file rotator: %w", err)
	}

	out.mtx.Lock()
	old := out.r
	out.r = r
	out.mtx.Unlock()
	if old != nil {
		old.Close()
	}
	return nil
}

// CloseLogRotator stops writing to the log file.  It is a no-op when no
// rotator is running.
func CloseLogRotator() {
	out.mtx.Lock()
	r := out.r
	out.r = nil
	out.mtx.Unlock()
	if r != nil {
		r.Close()
	}
}

// SupportedSubsystems returns the sorted subsystem identifiers.
func SupportedSubsystems() []string {
	ids := make([]string, 0, len(subsystems))
	for id := range subsystems {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Level returns the current level of a subsystem and whether it exists.
func Level(subsystemID string) (btclog.Level, bool) {
	logger, ok := subsystems[subsystemID]
	if !ok {
		return btclog.LevelOff, false
	}
	return logger.Level(), true
}

// SetDebugLevels parses a debug level specification and applies it.  The
// specification is either a single level for every subsystem or a comma
// separated list of <subsystem>=<level> pairs.  Nothing is changed when the
// specification is invalid.
func SetDebugLevels(spec string) error {
	if !strings.ContainsAny(spec, ",=") {
		level, ok := btclog.LevelFromString(spec)
		if !ok {
			return fmt.Errorf("the specified debug level [%v] is "+
				"invalid", spec)
		}
		for _, logger := range subsystems {
			logger.SetLevel(level)
		}
		return nil
	}

	levels := make(map[string]btclog.Level)
	for _, pair := range strings.Split(spec, ",") {
		id, name, found := strings.Cut(pair, "=")
		if !found {
			return fmt.Errorf("the specified debug level contains an "+
				"invalid subsystem/level pair [%v]", pair)
		}
		if _, ok := subsystems[id]; !ok {
			return fmt.Errorf("the specified subsystem [%v] is invalid "+
				"-- supported subsystems %v", id, SupportedSubsystems())
		}
		level, ok := btclog.LevelFromString(name)
		if !ok {
			return fmt.Errorf("the specified debug level [%v] is "+
				"invalid", name)
		}
		levels[id] = level
	}
	for id, level := range levels {
		subsystems[id].SetLevel(level)
	}
	return nil
}

// PickNoun returns the singular or plural form of a noun depending
// on the count n.
func PickNoun(n uint64, singular, plural string) string {
	if n == 1 {
		return singular
	}
	return plural
}
