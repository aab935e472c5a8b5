// Copyright (c) 2013-2017 The btcsuite developers
// Copyright (c) 2024 The posd developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"bytes"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/btcsuite/btcd/btcjson"
	"github.com/btcsuite/btcd/wire"
	"github.com/posmint/posd/blockchain/stakechain"
	"github.com/posmint/posd/mining/posminer"
	"github.com/posmint/posd/posjson"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	// rpcAuthTimeoutSeconds is the number of seconds a connection to the
	// RPC server is allowed to stay open without authenticating before it
	// is closed.
	rpcAuthTimeoutSeconds = 10

	// maxRequestSize is the largest request body the server reads.
	maxRequestSize = 1 << 20
)

type commandHandler func(*rpcServer, interface{}) (interface{}, error)

// rpcHandlers maps RPC command strings to appropriate handler functions.
// This is set by init because help references rpcHandlers and thus causes
// a dependency loop.
var rpcHandlers map[string]commandHandler
var rpcHandlersBeforeInit = map[string]commandHandler{
	"getdifficulty":    handleGetDifficulty,
	"getnetworkweight": handleGetNetworkWeight,
	"getstakinginfo":   handleGetStakingInfo,
	"startstaking":     handleStartStaking,
	"stop":             handleStop,
	"stopstaking":      handleStopStaking,
	"submitheader":     handleSubmitHeader,
}

func init() {
	rpcHandlers = rpcHandlersBeforeInit
}

// rpcserverConfig is a descriptor containing the RPC server configuration.
type rpcserverConfig struct {
	// ListenAddrs are the addresses the server listens on.
	ListenAddrs []string

	// RPCUser and RPCPass are the basic auth credentials.
	RPCUser string
	RPCPass string

	// Server is the node the RPC commands operate on.
	Server *server
}

// rpcServer provides a concurrent safe RPC server to a chain server.
type rpcServer struct {
	started  int32
	shutdown int32

	cfg        rpcserverConfig
	authsha    [sha256.Size]byte
	httpServer *http.Server
	listeners  []net.Listener
	wg         sync.WaitGroup

	// requestProcessShutdown is signaled by the stop command.
	requestProcessShutdown chan struct{}
}

// newRPCServer returns a new instance of the rpcServer struct.
func newRPCServer(config *rpcserverConfig) (*rpcServer, error) {
	login := config.RPCUser + ":" + config.RPCPass
	auth := "Basic " + base64.StdEncoding.EncodeToString([]byte(login))
	rpc := rpcServer{
		cfg:                    *config,
		authsha:                sha256.Sum256([]byte(auth)),
		requestProcessShutdown: make(chan struct{}, 1),
	}
	rpc.httpServer = &http.Server{
		Handler:           rpc.handler(),
		ReadHeaderTimeout: time.Second * rpcAuthTimeoutSeconds,
	}

	listeners := make([]net.Listener, 0, len(config.ListenAddrs))
	for _, addr := range config.ListenAddrs {
		listener, err := net.Listen("tcp", addr)
		if err != nil {
			rpcsLog.Warnf("Can't listen on %s: %v", addr, err)
			continue
		}
		listeners = append(listeners, listener)
	}
	if len(listeners) == 0 {
		return nil, errors.New("RPCS: No valid listen address")
	}
	rpc.listeners = listeners

	return &rpc, nil
}

// handler returns the HTTP handler serving JSON-RPC requests on / and the
// prometheus metrics on /metrics.
func (s *rpcServer) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if err := s.checkAuth(r); err != nil {
			jsonAuthFail(w)
			return
		}
		w.Header().Set("Connection", "close")
		w.Header().Set("Content-Type", "application/json")
		s.jsonRPCRead(w, r)
	})
	metrics := promhttp.HandlerFor(s.cfg.Server.registry,
		promhttp.HandlerOpts{})
	mux.HandleFunc("/metrics", func(w http.ResponseWriter, r *http.Request) {
		if err := s.checkAuth(r); err != nil {
			jsonAuthFail(w)
			return
		}
		metrics.ServeHTTP(w, r)
	})
	return mux
}

// Start is used by server.go to start the rpc listener.
func (s *rpcServer) Start() {
	if atomic.AddInt32(&s.started, 1) != 1 {
		return
	}

	rpcsLog.Trace("Starting RPC server")
	for _, listener := range s.listeners {
		s.wg.Add(1)
		go func(listener net.Listener) {
			rpcsLog.Infof("RPC server listening on %s", listener.Addr())
			s.httpServer.Serve(listener)
			rpcsLog.Tracef("RPC listener done for %s", listener.Addr())
			s.wg.Done()
		}(listener)
	}
}

// Stop is used by server.go to stop the rpc listener.
func (s *rpcServer) Stop() error {
	if atomic.AddInt32(&s.shutdown, 1) != 1 {
		rpcsLog.Infof("RPC server is already in the process of shutting down")
		return nil
	}
	rpcsLog.Warnf("RPC server shutting down")
	if err := s.httpServer.Close(); err != nil {
		rpcsLog.Errorf("Problem shutting down rpc: %v", err)
		return err
	}
	s.wg.Wait()
	rpcsLog.Infof("RPC server shutdown complete")
	return nil
}

// RequestedProcessShutdown returns a channel that is sent to when an
// authorized RPC client requests the process to shutdown.
func (s *rpcServer) RequestedProcessShutdown() <-chan struct{} {
	return s.requestProcessShutdown
}

// checkAuth checks the HTTP Basic authentication supplied by a client in the
// HTTP request r.  If the supplied authentication does not match the username
// and password expected, a non-nil error is returned.
//
// This check is time-constant.
func (s *rpcServer) checkAuth(r *http.Request) error {
	authhdr := r.Header["Authorization"]
	if len(authhdr) <= 0 {
		rpcsLog.Warnf("RPC authentication failure from %s", r.RemoteAddr)
		return errors.New("auth failure")
	}

	authsha := sha256.Sum256([]byte(authhdr[0]))
	cmp := subtle.ConstantTimeCompare(authsha[:], s.authsha[:])
	if cmp != 1 {
		rpcsLog.Warnf("RPC authentication failure from %s", r.RemoteAddr)
		return errors.New("auth failure")
	}
	return nil
}

// jsonAuthFail sends a message back to the client if the http auth is rejected.
func jsonAuthFail(w http.ResponseWriter) {
	w.Header().Add("WWW-Authenticate", `Basic realm="posd RPC"`)
	http.Error(w, "401 Unauthorized.", http.StatusUnauthorized)
}

// internalRPCError is a convenience function to convert an internal error to
// an RPC error with the appropriate code set.  It also logs the error to the
// RPC server subsystem since internal errors really should not occur.  The
// context parameter is only used in the log message and may be empty if it's
// not needed.
func internalRPCError(errStr, context string) *btcjson.RPCError {
	logStr := errStr
	if context != "" {
		logStr = context + ": " + errStr
	}
	rpcsLog.Error(logStr)
	return btcjson.NewRPCError(btcjson.ErrRPCInternal.Code, errStr)
}

// parsedRPCCmd represents a JSON-RPC request object that has been parsed into
// a known concrete command along with any error that might have happened while
// parsing it.
type parsedRPCCmd struct {
	jsonrpc btcjson.RPCVersion
	id      interface{}
	method  string
	cmd     interface{}
	err     *btcjson.RPCError
}

// parseCmd parses a JSON-RPC request object into known concrete command.  The
// err field of the returned parsedRPCCmd struct will contain an RPC error that
// is suitable for use in replies if the command is invalid in some way such as
// an unregistered command or invalid parameters.
func parseCmd(request *btcjson.Request) *parsedRPCCmd {
	parsedCmd := parsedRPCCmd{
		jsonrpc: request.Jsonrpc,
		id:      request.ID,
		method:  request.Method,
	}

	cmd, err := btcjson.UnmarshalCmd(request)
	if err != nil {
		// When the error is because the method is not registered,
		// produce a method not found RPC error.
		var jerr btcjson.Error
		if errors.As(err, &jerr) &&
			jerr.ErrorCode == btcjson.ErrUnregisteredMethod {

			parsedCmd.err = btcjson.ErrRPCMethodNotFound
			return &parsedCmd
		}

		// Otherwise, some type of invalid parameters is the
		// cause, so produce the equivalent RPC error.
		parsedCmd.err = btcjson.NewRPCError(
			btcjson.ErrRPCInvalidParams.Code, err.Error())
		return &parsedCmd
	}

	parsedCmd.cmd = cmd
	return &parsedCmd
}

// standardCmdResult checks that a parsed command is a standard posd JSON-RPC
// command and runs the appropriate handler to reply to the command.
func (s *rpcServer) standardCmdResult(cmd *parsedRPCCmd) (interface{}, error) {
	handler, ok := rpcHandlers[cmd.method]
	if !ok {
		return nil, btcjson.ErrRPCMethodNotFound
	}
	return handler(s, cmd.cmd)
}

// jsonRPCRead handles reading and responding to RPC messages.
func (s *rpcServer) jsonRPCRead(w http.ResponseWriter, r *http.Request) {
	if atomic.LoadInt32(&s.shutdown) != 0 {
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestSize))
	r.Body.Close()
	if err != nil {
		errCode := http.StatusBadRequest
		http.Error(w, fmt.Sprintf("%d error reading JSON message: %v",
			errCode, err), errCode)
		return
	}

	var (
		request btcjson.Request
		result  interface{}
		jsonErr *btcjson.RPCError
	)
	if err := json.Unmarshal(body, &request); err != nil {
		jsonErr = btcjson.NewRPCError(btcjson.ErrRPCParse.Code,
			"Failed to parse request: "+err.Error())
	}

	// Requests without a version are treated as JSON-RPC 1.0.
	rpcVersion := btcjson.RpcVersion1
	if request.Jsonrpc == btcjson.RpcVersion2 {
		rpcVersion = btcjson.RpcVersion2
	}

	if jsonErr == nil {
		rpcsLog.Tracef("Received %s request from %s: %v", request.Method,
			r.RemoteAddr, newLogClosure(func() string {
				return string(body)
			}))

		parsedCmd := parseCmd(&request)
		if parsedCmd.err != nil {
			jsonErr = parsedCmd.err
		} else {
			rpcsLog.Tracef("Parsed command: %v", spewClosure(parsedCmd.cmd))
			result, err = s.standardCmdResult(parsedCmd)
			if err != nil {
				jsonErr = toRPCError(err)
			}
		}
	}

	msg, err := btcjson.MarshalResponse(rpcVersion, request.ID, result,
		jsonErr)
	if err != nil {
		rpcsLog.Errorf("Failed to marshal reply: %v", err)
		http.Error(w, "500 Internal Server Error", http.StatusInternalServerError)
		return
	}
	if _, err := w.Write(msg); err != nil {
		rpcsLog.Errorf("Failed to write marshalled reply: %v", err)
	}
}

// toRPCError converts a handler error into the RPC error sent to the client.
func toRPCError(err error) *btcjson.RPCError {
	var rpcErr *btcjson.RPCError
	if errors.As(err, &rpcErr) {
		return rpcErr
	}
	return internalRPCError(err.Error(), "")
}

// handleGetDifficulty implements the getdifficulty command.
func handleGetDifficulty(s *rpcServer, cmd interface{}) (interface{}, error) {
	difficulty, err := s.cfg.Server.minter.Difficulty(nil)
	if err != nil {
		return nil, internalRPCError(err.Error(),
			"Could not get proof-of-stake difficulty")
	}
	return difficulty, nil
}

// handleGetNetworkWeight implements the getnetworkweight command.
func handleGetNetworkWeight(s *rpcServer, cmd interface{}) (interface{}, error) {
	weight, err := s.cfg.Server.minter.NetworkWeight()
	if err != nil {
		return nil, internalRPCError(err.Error(),
			"Could not estimate network weight")
	}

	result := posjson.NetworkWeightResult{NetStakeWeight: int64(weight)}
	if tip := s.cfg.Server.index.CurrentTip(); tip != nil {
		result.TipHash = tip.Hash().String()
		result.TipHeight = tip.Height()
	}
	return &result, nil
}

// handleGetStakingInfo implements the getstakinginfo command.
func handleGetStakingInfo(s *rpcServer, cmd interface{}) (interface{}, error) {
	info, err := s.cfg.Server.minter.GetStatus()
	if err != nil {
		return nil, internalRPCError(err.Error(),
			"Could not get staking status")
	}
	return info, nil
}

// handleStartStaking implements the startstaking command.
func handleStartStaking(s *rpcServer, cmd interface{}) (interface{}, error) {
	c := cmd.(*posjson.StartStakingCmd)

	secret := posminer.WalletSecret{WalletName: c.WalletName}
	if c.Passphrase != nil {
		secret.Passphrase = []byte(*c.Passphrase)
	}

	err := s.cfg.Server.minter.Stake(secret)
	switch {
	case err == nil:
		return nil, nil

	case posminer.IsErrorCode(err, posminer.ErrAlreadyStaking):
		return nil, btcjson.NewRPCError(btcjson.ErrRPCMisc, err.Error())

	case posminer.IsErrorCode(err, posminer.ErrMissingWalletName),
		posminer.IsErrorCode(err, posminer.ErrInvalidConfig):

		return nil, btcjson.NewRPCError(btcjson.ErrRPCInvalidParameter,
			err.Error())
	}
	return nil, internalRPCError(err.Error(), "Could not start staking")
}

// handleStopStaking implements the stopstaking command.
func handleStopStaking(s *rpcServer, cmd interface{}) (interface{}, error) {
	s.cfg.Server.minter.StopStake()
	return nil, nil
}

// handleSubmitHeader implements the submitheader command.
func handleSubmitHeader(s *rpcServer, cmd interface{}) (interface{}, error) {
	c := cmd.(*posjson.SubmitHeaderCmd)

	serialized, err := hex.DecodeString(c.HexHeader)
	if err != nil {
		return nil, btcjson.NewRPCError(btcjson.ErrRPCDeserialization,
			"Header decode failed: "+err.Error())
	}
	if len(serialized) != wire.MaxBlockHeaderPayload {
		return nil, btcjson.NewRPCError(btcjson.ErrRPCDeserialization,
			fmt.Sprintf("Header must be %d bytes, got %d",
				wire.MaxBlockHeaderPayload, len(serialized)))
	}
	var header wire.BlockHeader
	if err := header.Deserialize(bytes.NewReader(serialized)); err != nil {
		return nil, btcjson.NewRPCError(btcjson.ErrRPCDeserialization,
			"Header decode failed: "+err.Error())
	}

	kind := stakechain.ProofOfWork
	if c.ProofOfStake == nil || *c.ProofOfStake {
		kind = stakechain.ProofOfStake
	}

	node, err := s.cfg.Server.submitHeader(&header, kind)
	if err != nil {
		if isRuleError(err) {
			return nil, btcjson.NewRPCError(btcjson.ErrRPCVerifyRejected,
				err.Error())
		}
		return nil, btcjson.NewRPCError(btcjson.ErrRPCDatabase,
			err.Error())
	}

	tip := s.cfg.Server.index.CurrentTip()
	return &posjson.SubmitHeaderResult{
		Hash:   node.Hash().String(),
		Height: node.Height(),
		Kind:   kind.String(),
		IsTip:  tip == node,
	}, nil
}

// handleStop implements the stop command.
func handleStop(s *rpcServer, cmd interface{}) (interface{}, error) {
	select {
	case s.requestProcessShutdown <- struct{}{}:
	default:
	}
	return "posd stopping.", nil
}
