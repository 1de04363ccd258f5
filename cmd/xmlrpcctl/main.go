package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/danmuck/xmlrpc/internal/client"
	"github.com/danmuck/xmlrpc/internal/config"
	"github.com/danmuck/xmlrpc/internal/logging"
	"github.com/danmuck/xmlrpc/internal/protocol"
	"github.com/danmuck/xmlrpc/internal/protocol/codec"
	"github.com/rs/zerolog/log"
)

func main() {
	logging.ConfigureRuntime()
	if err := run(os.Args[1:], os.Stdout); err != nil {
		var fault *protocol.Fault
		if errors.As(err, &fault) {
			fmt.Fprintf(os.Stderr, "xmlrpcctl: %v\n", fault)
			os.Exit(2)
		}
		fmt.Fprintf(os.Stderr, "xmlrpcctl: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("xmlrpcctl", flag.ContinueOnError)
	configPath := fs.String("config", "", "client config path (defaults when empty)")
	url := fs.String("url", "", "endpoint url override")
	timeout := fs.Duration("timeout", 0, "request timeout override")
	token := fs.String("token", "", "bearer token override")
	raw := fs.Bool("xml", false, "print the response as XML instead of JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		return fmt.Errorf("usage: xmlrpcctl [flags] METHOD [type:value ...]")
	}

	cfg := config.DefaultClientConfig()
	if *configPath != "" {
		loaded, err := config.LoadClientConfig(*configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	if *url != "" {
		cfg.URL = *url
	}
	if *timeout > 0 {
		cfg.Timeout = *timeout
	}
	if *token != "" {
		cfg.AuthToken = *token
	}
	if err := config.ValidateClientConfig(cfg); err != nil {
		return err
	}

	params, err := parseArgs(fs.Args()[1:])
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout+time.Second)
	defer cancel()
	method := fs.Arg(0)
	c, err := client.FromConfig(cfg)
	if err != nil {
		return err
	}
	resp, err := c.CallValue(ctx, method, params)
	if err != nil {
		return err
	}
	log.Debug().Str("method", method).Bool("fault", resp.IsFault()).Msg("call finished")

	if *raw {
		if _, err := out.Write(protocol.EncodeResponse(resp)); err != nil {
			return err
		}
		_, err = fmt.Fprintln(out)
		return err
	}
	if resp.IsFault() {
		return resp.Fault
	}
	result, err := codec.Generic(resp.Params.Collapse())
	if err != nil {
		return err
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}
