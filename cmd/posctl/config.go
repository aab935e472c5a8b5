// Copyright (c) 2013-2015 The btcsuite developers
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

	"github.com/btcsuite/btcd/btcjson"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/jessevdk/go-flags"
	"github.com/posmint/posd/chaincfg"
	"github.com/posmint/posd/internal/version"
	"github.com/posmint/posd/posjson"
)

var (
	posctlHomeDir     = btcutil.AppDataDir("posctl", false)
	defaultConfigFile = filepath.Join(posctlHomeDir, "posctl.conf")
	defaultRPCServer  = "localhost"
)

// errEarlyExit is returned by loadConfig when the requested output has
// already been written and the program should exit successfully.
var errEarlyExit = errors.New("early exit")

// config defines the configuration options for posctl.
//
// See loadConfig for details on the configuration load process.
type config struct {
	ShowVersion    bool   `short:"V" long:"version" description:"Display version information and exit"`
	ListCommands   bool   `short:"l" long:"listcommands" description:"List all of the supported commands and exit"`
	ConfigFile     string `short:"C" long:"configfile" description:"Path to configuration file"`
	RPCUser        string `short:"u" long:"rpcuser" description:"RPC username"`
	RPCPassword    string `short:"P" long:"rpcpass" default-mask:"-" description:"RPC password"`
	RPCServer      string `short:"s" long:"rpcserver" description:"RPC server to connect to"`
	TestNet        bool   `long:"testnet" description:"Connect to testnet"`
	RegressionTest bool   `long:"regtest" description:"Connect to the regression test network"`
}

// listCommands prints the usage of every posd command to w.
func listCommands(w io.Writer) {
	fmt.Fprintln(w, "Commands:")
	for _, method := range posjson.Methods {
		usage, err := btcjson.MethodUsageText(method)
		if err != nil {
			// This should never happen since the methods are
			// registered by posjson.
			continue
		}
		fmt.Fprintln(w, usage)
	}
}

// normalizeAddress returns addr with the default RPC port of the network
// added when it has none.
func normalizeAddress(addr string, params *chaincfg.Params) string {
	if _, _, err := net.SplitHostPort(addr); err != nil {
		return net.JoinHostPort(addr, params.RPCPort)
	}
	return addr
}

// loadConfig initializes and parses the config using a config file and command
// line options.  It returns the remaining positional arguments, which hold
// the command and its parameters.
func loadConfig(args []string, stdout io.Writer) (*config, []string, error) {
	cfg := config{
		ConfigFile: defaultConfigFile,
		RPCServer:  defaultRPCServer,
	}

	// Pre-parse the command line options to see if an alternative config
	// file, the version flag, or the list commands flag was specified.
	preCfg := cfg
	preParser := flags.NewParser(&preCfg, flags.HelpFlag)
	_, err := preParser.ParseArgs(args)
	if err != nil {
		var e *flags.Error
		if errors.As(err, &e) && e.Type == flags.ErrHelp {
			fmt.Fprintln(stdout, err)
			return nil, nil, errEarlyExit
		}
		return nil, nil, err
	}

	if preCfg.ShowVersion {
		fmt.Fprintln(stdout, "posctl version", version.String())
		return nil, nil, errEarlyExit
	}
	if preCfg.ListCommands {
		listCommands(stdout)
		return nil, nil, errEarlyExit
	}

	// Load additional config from file.  A missing file is not an error.
	parser := flags.NewParser(&cfg, flags.HelpFlag)
	err = flags.NewIniParser(parser).ParseFile(preCfg.ConfigFile)
	if err != nil {
		var pathErr *os.PathError
		if !errors.As(err, &pathErr) {
			return nil, nil, fmt.Errorf("error parsing config "+
				"file: %w", err)
		}
	}

	// Parse command line options again to ensure they take precedence.
	remainingArgs, err := parser.ParseArgs(args)
	if err != nil {
		return nil, nil, err
	}

	if cfg.TestNet && cfg.RegressionTest {
		return nil, nil, errors.New("the testnet and regtest params " +
			"can't be used together -- choose one of the two")
	}
	params := &chaincfg.MainNetParams
	switch {
	case cfg.TestNet:
		params = &chaincfg.TestNetParams
	case cfg.RegressionTest:
		params = &chaincfg.RegressionNetParams
	}
	cfg.RPCServer = normalizeAddress(cfg.RPCServer, params)

	return &cfg, remainingArgs, nil
}
