// Copyright (c) 2013-2017 The btcsuite developers
// Copyright (c) 2024 The posd developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strings"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/jessevdk/go-flags"
	"github.com/posmint/posd/blockchain/stakechain"
	"github.com/posmint/posd/chaincfg"
	"github.com/posmint/posd/database/engine"
	"github.com/posmint/posd/internal/log"
	"github.com/posmint/posd/internal/version"
)

const (
	defaultConfigFilename = "posd.conf"
	defaultDataDirname    = "data"
	defaultLogLevel       = "info"
	defaultLogDirname     = "logs"
	defaultLogFilename    = "posd.log"
	defaultDbType         = "leveldb"
	defaultWalletName     = "default"
)

var (
	defaultHomeDir    = btcutil.AppDataDir("posd", false)
	defaultConfigFile = filepath.Join(defaultHomeDir, defaultConfigFilename)
	defaultDataDir    = filepath.Join(defaultHomeDir, defaultDataDirname)
	defaultLogDir     = filepath.Join(defaultHomeDir, defaultLogDirname)
	knownDbTypes      = []string{"leveldb", "pebble"}
)

// config defines the configuration options for posd.
//
// See loadConfig for details on the configuration load process.
type config struct {
	ShowVersion     bool     `short:"V" long:"version" description:"Display version information and exit"`
	ConfigFile      string   `short:"C" long:"configfile" description:"Path to configuration file"`
	DataDir         string   `short:"b" long:"datadir" description:"Directory to store data"`
	LogDir          string   `long:"logdir" description:"Directory to log output."`
	LogMaxSize      int64    `long:"logmaxsize" description:"Size in KiB a log file reaches before it is rolled"`
	LogMaxRolls     int      `long:"logmaxrolls" description:"Number of rolled log files to keep"`
	DebugLevel      string   `short:"d" long:"debuglevel" description:"Logging level for all subsystems {trace, debug, info, warn, error, critical} -- You may also specify <subsystem>=<level>,<subsystem2>=<level>,... to set the log level for individual subsystems -- Use show to list available subsystems"`
	TestNet         bool     `long:"testnet" description:"Use the test network"`
	RegressionTest  bool     `long:"regtest" description:"Use the regression test network"`
	DbType          string   `long:"dbtype" description:"Database backend to use for the stake index {leveldb, pebble}"`
	DbCache         int      `long:"dbcache" description:"Stake index block cache size in MiB"`
	RPCListeners    []string `long:"rpclisten" description:"Add an interface/port to listen for RPC connections (default port: 16174, testnet: 26174)"`
	RPCUser         string   `short:"u" long:"rpcuser" description:"Username for RPC connections"`
	RPCPass         string   `short:"P" long:"rpcpass" default-mask:"-" description:"Password for RPC connections"`
	DisableRPC      bool     `long:"norpc" description:"Disable built-in RPC server -- NOTE: The RPC server is disabled by default if no rpcuser/rpcpass is specified"`
	StakeCacheSize  uint     `long:"stakecache" description:"Number of block classifications kept in memory"`
	MinStakingValue float64  `long:"minstakingvalue" description:"Smallest output value in coins to stake; lower values than the network minimum are ignored"`
	ReserveBalance  float64  `long:"reservebalance" description:"Amount in coins kept out of staking"`
	WalletSnapshot  string   `long:"walletsnapshot" description:"JSON file listing the outputs each wallet may stake"`
	Stake           bool     `long:"stake" description:"Start staking at startup"`
	WalletName      string   `long:"walletname" description:"Wallet to stake from"`
	WalletPass      string   `long:"walletpass" default-mask:"-" description:"Passphrase of the staking wallet"`

	params     *chaincfg.Params
	minStaking btcutil.Amount
	reserve    btcutil.Amount
}

// cleanAndExpandPath expands environment variables and leading ~ in the
// passed path, cleans the result, and returns it.
func cleanAndExpandPath(path string) string {
	// Expand initial ~ to OS specific home directory.
	if strings.HasPrefix(path, "~") {
		homeDir := filepath.Dir(defaultHomeDir)
		path = strings.Replace(path, "~", homeDir, 1)
	}

	// NOTE: The os.ExpandEnv doesn't work with Windows-style %VARIABLE%,
	// but they variables can still be expanded via POSIX-style $VARIABLE.
	return filepath.Clean(os.ExpandEnv(path))
}

// validDbType returns whether or not dbType is a supported database type.
func validDbType(dbType string) bool {
	for _, knownType := range knownDbTypes {
		if dbType == knownType {
			return true
		}
	}

	return false
}

// normalizeAddresses returns a new slice with all the passed peer addresses
// normalized with the given default port, and all duplicates removed.
func normalizeAddresses(addrs []string, defaultPort string) []string {
	result := make([]string, 0, len(addrs))
	seen := map[string]struct{}{}
	for _, addr := range addrs {
		if _, _, err := net.SplitHostPort(addr); err != nil {
			addr = net.JoinHostPort(addr, defaultPort)
		}
		if _, ok := seen[addr]; !ok {
			result = append(result, addr)
			seen[addr] = struct{}{}
		}
	}
	return result
}

// amountFromCoins converts a configured coin value to an amount.
func amountFromCoins(option string, coins float64) (btcutil.Amount, error) {
	if coins < 0 {
		return 0, fmt.Errorf("the %s option may not be negative -- "+
			"parsed [%v]", option, coins)
	}
	amount, err := btcutil.NewAmount(coins)
	if err != nil {
		return 0, fmt.Errorf("the %s option is invalid: %w", option, err)
	}
	return amount, nil
}

// errShowVersion is returned by loadConfig when the version flag was given.
var errShowVersion = errors.New("version requested")

// loadConfig initializes and parses the config using a config file and command
// line options.
//
// The configuration proceeds as follows:
//  1. Start with a default config with sane settings
//  2. Pre-parse the command line to check for an alternative config file
//  3. Load configuration file overwriting defaults with any specified options
//  4. Parse CLI options and overwrite/add any specified options
//
// The above results in posd functioning properly without any config settings
// while still allowing the user to override settings with config files and
// command line options.  Command line options always take precedence.
func loadConfig(args []string, stderr io.Writer) (*config, error) {
	// Default config.
	cfg := config{
		ConfigFile:     defaultConfigFile,
		DebugLevel:     defaultLogLevel,
		DataDir:        defaultDataDir,
		LogDir:         defaultLogDir,
		LogMaxSize:     log.DefaultMaxLogSizeKB,
		LogMaxRolls:    log.DefaultMaxLogRolls,
		DbType:         defaultDbType,
		DbCache:        engine.DefaultCacheMB,
		StakeCacheSize: stakechain.DefaultCacheSize,
		WalletName:     defaultWalletName,
	}

	// Pre-parse the command line options to see if an alternative config
	// file or the version flag was specified.
	preCfg := cfg
	preParser := flags.NewParser(&preCfg, flags.HelpFlag)
	_, err := preParser.ParseArgs(args)
	if err != nil {
		var e *flags.Error
		if errors.As(err, &e) && e.Type == flags.ErrHelp {
			fmt.Fprintln(stderr, err)
		}
		return nil, err
	}

	// Show the version and exit if the version flag was specified.
	if preCfg.ShowVersion {
		fmt.Fprintln(stderr, "posd version", version.String())
		return nil, errShowVersion
	}

	// Load additional config from file.
	parser := flags.NewParser(&cfg, flags.HelpFlag)
	err = flags.NewIniParser(parser).ParseFile(preCfg.ConfigFile)
	if err != nil {
		var pathErr *os.PathError
		if !errors.As(err, &pathErr) {
			fmt.Fprintf(stderr, "Error parsing config file: %v\n", err)
			return nil, err
		}
		if preCfg.ConfigFile != defaultConfigFile {
			fmt.Fprintf(stderr, "Config file %s not found\n",
				preCfg.ConfigFile)
			return nil, err
		}
	}

	// Parse command line options again to ensure they take precedence.
	_, err = parser.ParseArgs(args)
	if err != nil {
		return nil, err
	}

	// Multiple networks can't be selected simultaneously.
	funcName := "loadConfig"
	if cfg.TestNet && cfg.RegressionTest {
		str := "%s: the testnet and regtest params can't be used " +
			"together -- choose one of the two"
		return nil, fmt.Errorf(str, funcName)
	}
	netName := chaincfg.MainNetParams.Name
	switch {
	case cfg.TestNet:
		netName = chaincfg.TestNetParams.Name
	case cfg.RegressionTest:
		netName = chaincfg.RegressionNetParams.Name
	}
	cfg.params, err = chaincfg.ParamsByName(netName)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", funcName, err)
	}

	// Special show command to list supported subsystems and exit.
	if cfg.DebugLevel == "show" {
		fmt.Fprintln(stderr, "Supported subsystems",
			log.SupportedSubsystems())
		return nil, errShowVersion
	}

	// Namespace the data and log directories per network.
	cfg.DataDir = filepath.Join(cleanAndExpandPath(cfg.DataDir),
		cfg.params.Name)
	cfg.LogDir = filepath.Join(cleanAndExpandPath(cfg.LogDir),
		cfg.params.Name)

	// Parse, validate, and set debug log level(s).
	if err := log.SetDebugLevels(cfg.DebugLevel); err != nil {
		return nil, fmt.Errorf("%s: %w", funcName, err)
	}

	// Validate database type.
	if !validDbType(cfg.DbType) {
		str := "%s: the specified database type [%v] is invalid -- " +
			"supported types %v"
		return nil, fmt.Errorf(str, funcName, cfg.DbType, knownDbTypes)
	}
	if cfg.DbCache <= 0 {
		return nil, fmt.Errorf("%s: dbcache must be positive, got %d",
			funcName, cfg.DbCache)
	}

	if cfg.minStaking, err = amountFromCoins("minstakingvalue",
		cfg.MinStakingValue); err != nil {

		return nil, fmt.Errorf("%s: %w", funcName, err)
	}
	if cfg.reserve, err = amountFromCoins("reservebalance",
		cfg.ReserveBalance); err != nil {

		return nil, fmt.Errorf("%s: %w", funcName, err)
	}

	if cfg.WalletSnapshot != "" {
		cfg.WalletSnapshot = cleanAndExpandPath(cfg.WalletSnapshot)
	}
	if cfg.Stake && cfg.WalletName == "" {
		return nil, fmt.Errorf("%s: the --stake option requires "+
			"--walletname", funcName)
	}

	// The RPC server is disabled if no username or password is provided.
	if cfg.RPCUser == "" || cfg.RPCPass == "" {
		cfg.DisableRPC = true
	}
	if !cfg.DisableRPC {
		if len(cfg.RPCListeners) == 0 {
			cfg.RPCListeners = []string{
				net.JoinHostPort("localhost", cfg.params.RPCPort),
			}
		}
		cfg.RPCListeners = normalizeAddresses(cfg.RPCListeners,
			cfg.params.RPCPort)
	}

	return &cfg, nil
}
