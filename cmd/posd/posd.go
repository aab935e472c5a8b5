// Copyright (c) 2013-2016 The btcsuite developers
// Copyright (c) 2024 The posd developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jessevdk/go-flags"
	"github.com/posmint/posd/internal/log"
	"github.com/posmint/posd/internal/version"
)

// posdMain is the real main function for posd.  It is necessary to work
// around the fact that deferred functions do not run when os.Exit() is called.
func posdMain() error {
	// Load configuration and parse command line.  This function also
	// initializes logging and configures it accordingly.
	cfg, err := loadConfig(os.Args[1:], os.Stderr)
	if err != nil {
		return err
	}

	logFile := filepath.Join(cfg.LogDir, defaultLogFilename)
	err = log.InitLogRotator(logFile, cfg.LogMaxSize, cfg.LogMaxRolls)
	if err != nil {
		return err
	}
	defer log.CloseLogRotator()

	// Get a channel that will be closed when a shutdown signal has been
	// triggered either from an OS signal such as SIGINT (Ctrl+C) or from
	// another subsystem such as the RPC server.
	interrupt := interruptListener()
	defer posdLog.Info("Shutdown complete")

	// Show version at startup.
	posdLog.Infof("Version %s", version.String())
	posdLog.Infof("Active network %s", cfg.params.Name)

	// Return now if an interrupt signal was triggered.
	if interruptRequested(interrupt) {
		return nil
	}

	// Load the stake index.
	db, err := openStakeDB(cfg)
	if err != nil {
		posdLog.Errorf("%v", err)
		return err
	}
	defer func() {
		// Ensure the database is sync'd and closed on shutdown.
		posdLog.Infof("Gracefully shutting down the database...")
		db.Close()
	}()

	// Return now if an interrupt signal was triggered.
	if interruptRequested(interrupt) {
		return nil
	}

	// Create server and start it.
	server, err := newServer(cfg, db)
	if err != nil {
		posdLog.Errorf("Unable to start server: %v", err)
		return err
	}
	defer func() {
		posdLog.Infof("Gracefully shutting down the server...")
		server.Stop()
	}()
	if err := server.Start(); err != nil {
		posdLog.Errorf("%v", err)
		return err
	}

	if server.rpcServer != nil {
		go func() {
			select {
			case <-server.rpcServer.RequestedProcessShutdown():
				shutdownRequestChannel <- struct{}{}
			case <-interrupt:
			}
		}()
	}

	// Wait until the interrupt signal is received from an OS signal or
	// shutdown is requested through one of the subsystems such as the RPC
	// server.
	<-interrupt
	return nil
}

func main() {
	// Work around defer not working after os.Exit()
	if err := posdMain(); err != nil {
		var flagsErr *flags.Error
		switch {
		case errors.Is(err, errShowVersion):
			os.Exit(0)
		case errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp:
			os.Exit(0)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
