// Copyright (c) 2013-2015 The btcsuite developers
// Copyright (c) 2024 The posd developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/btcsuite/btcd/btcjson"
	"github.com/btcsuite/btcd/rpcclient"
	"github.com/posmint/posd/posjson"
)

const (
	showHelpMessage = "Specify -h to show available options"
	listCmdMessage  = "Specify -l to list available commands"
)

// newCmdParams converts the command line arguments into command parameters.
// An argument of "-" is read from the next line of stdin so large values such
// as headers can be piped in.
func newCmdParams(args []string, stdin io.Reader) ([]interface{}, error) {
	bio := bufio.NewReader(stdin)
	params := make([]interface{}, 0, len(args))
	for _, arg := range args {
		if arg != "-" {
			params = append(params, arg)
			continue
		}

		param, err := bio.ReadString('\n')
		if err != nil && err != io.EOF {
			return nil, fmt.Errorf("failed to read data from "+
				"stdin: %w", err)
		}
		if err == io.EOF && len(param) == 0 {
			return nil, errors.New("not enough lines provided on " +
				"stdin")
		}
		params = append(params, strings.TrimRight(param, "\r\n"))
	}
	return params, nil
}

// buildRequest validates the method and its parameters against the
// registered command and returns the raw parameters to send.
func buildRequest(method string, params []interface{}) ([]json.RawMessage, error) {
	if !isPosdMethod(method) {
		return nil, fmt.Errorf("unrecognized command '%s'\n%s", method,
			listCmdMessage)
	}

	cmd, err := btcjson.NewCmd(method, params...)
	if err != nil {
		usage, _ := btcjson.MethodUsageText(method)
		return nil, fmt.Errorf("%s command: %w\nUsage:\n  %s", method,
			err, usage)
	}

	marshalled, err := btcjson.MarshalCmd(btcjson.RpcVersion1, 1, cmd)
	if err != nil {
		return nil, err
	}
	var request btcjson.Request
	if err := json.Unmarshal(marshalled, &request); err != nil {
		return nil, err
	}
	return request.Params, nil
}

func isPosdMethod(method string) bool {
	for _, m := range posjson.Methods {
		if m == method {
			return true
		}
	}
	return false
}

// formatResult renders a JSON result for display.  Objects and arrays are
// indented, strings are unquoted and null prints nothing.
func formatResult(result json.RawMessage) (string, error) {
	strResult := string(result)
	switch {
	case strings.HasPrefix(strResult, "{") || strings.HasPrefix(strResult, "["):
		var dst bytes.Buffer
		if err := json.Indent(&dst, result, "", "  "); err != nil {
			return "", fmt.Errorf("failed to format result: %w", err)
		}
		return dst.String(), nil

	case strings.HasPrefix(strResult, `"`):
		var str string
		if err := json.Unmarshal(result, &str); err != nil {
			return "", fmt.Errorf("failed to unmarshal result: %w",
				err)
		}
		return str, nil

	case strResult == "null":
		return "", nil
	}
	return strResult, nil
}

// run executes the command named by args against the configured server and
// writes the result to stdout.
func run(cfg *config, args []string, stdin io.Reader, stdout io.Writer) error {
	if len(args) < 1 {
		return fmt.Errorf("no command specified\n%s\n%s",
			showHelpMessage, listCmdMessage)
	}

	params, err := newCmdParams(args[1:], stdin)
	if err != nil {
		return err
	}
	rawParams, err := buildRequest(args[0], params)
	if err != nil {
		return err
	}

	client, err := rpcclient.New(&rpcclient.ConnConfig{
		Host:         cfg.RPCServer,
		User:         cfg.RPCUser,
		Pass:         cfg.RPCPassword,
		HTTPPostMode: true,
		DisableTLS:   true,
	}, nil)
	if err != nil {
		return err
	}
	defer client.Shutdown()

	result, err := client.RawRequest(args[0], rawParams)
	if err != nil {
		return err
	}

	out, err := formatResult(result)
	if err != nil {
		return err
	}
	if out != "" {
		fmt.Fprintln(stdout, out)
	}
	return nil
}

func main() {
	cfg, args, err := loadConfig(os.Args[1:], os.Stdout)
	if errors.Is(err, errEarlyExit) {
		os.Exit(0)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		fmt.Fprintln(os.Stderr, showHelpMessage)
		os.Exit(1)
	}

	if err := run(cfg, args, os.Stdin, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
