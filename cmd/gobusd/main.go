/*
 * MIT License
 *
 * Copyright (c) 2022-2026  Arsene Tochemey Gandote
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 */

// Command gobusd runs a bus node linked to the other processes of the
// network.
//
// Usage:
//
//	gobusd -process alice -port 4808 -peers 10.0.0.2:4808,10.0.0.3:4808
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/tochemey/gobus/internal/osutil"
	"github.com/tochemey/gobus/log"
	"github.com/tochemey/gobus/node"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "gobusd: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	logger, opts, err := parseFlags(args)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Flush() }()

	n, err := node.New(opts.process, opts.options...)
	if err != nil {
		return err
	}

	ctx := context.Background()
	if err := n.Start(ctx); err != nil {
		return err
	}
	if target, ok := n.Target(); ok {
		logger.Infof("process=(%s) listening on target=(%s)", n.Peer(), target)
	}

	return osutil.WaitForSignal(ctx, logger, opts.shutdownTimeout, n.Stop)
}

type settings struct {
	process         string
	shutdownTimeout time.Duration
	options         []node.Option
}

func parseFlags(args []string) (log.Logger, *settings, error) {
	fs := flag.NewFlagSet("gobusd", flag.ContinueOnError)
	var (
		process     = fs.String("process", "", "process name, part of the peer id (required)")
		host        = fs.String("host", "", "host part of the peer id (defaults to the hostname)")
		bind        = fs.String("bind", node.DefaultBindHost, "tcp host the server listener binds")
		port        = fs.Int("port", node.DefaultPort, "first port the server listener tries")
		unix        = fs.String("unix", "", "unix socket path of the server listener, '=' prefix for an abstract address")
		noListen    = fs.Bool("no-listen", false, "run as a pure client")
		peers       = fs.String("peers", "", "comma separated static peers")
		engine      = fs.String("engine", node.EngineThreaded, "gateway engine: threaded or reactive")
		readers     = fs.Int("readers", 2, "reader goroutines per gateway of the threaded engine")
		checksum    = fs.String("checksum", "none", "trailer checksum: none, sum or xxh3")
		compression = fs.String("compression", "none", "link compression: none, zstd or brotli")
		ping        = fs.Duration("ping", 0, "keep-alive interval of idle links, 0 disables it")
		attempts    = fs.Int("bind-attempts", 5, "number of ports the server listener tries")
		maxConns    = fs.Int("max-conns", 0, "cap on the incoming connections open at once, 0 disables it")
		mdns        = fs.Bool("mdns", false, "discover the peers of the local network over mDNS")
		level       = fs.String("log-level", "info", "log level: debug, info, warn or error")
		shutdown    = fs.Duration("shutdown-timeout", node.DefaultShutdownTimeout, "graceful shutdown timeout")
	)
	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}
	if *process == "" {
		return nil, nil, fmt.Errorf("the -process flag is required")
	}

	logger := log.NewZap(log.ParseLevel(*level), os.Stdout)
	options := []node.Option{
		node.WithLogger(logger),
		node.WithEngine(*engine, *readers),
		node.WithChecksum(*checksum),
		node.WithCompression(*compression),
		node.WithPingInterval(*ping),
		node.WithMaxBindAttempts(*attempts),
		node.WithMaxConnections(*maxConns),
	}
	if *host != "" {
		options = append(options, node.WithHost(*host))
	}
	switch {
	case *noListen:
		options = append(options, node.WithoutListener())
	case *unix != "":
		options = append(options, node.WithUnixSocket(*unix))
	default:
		options = append(options, node.WithBindAddr(*bind, *port))
	}
	if *mdns {
		options = append(options, node.WithMDNS("", ""))
	}
	if *peers != "" {
		for _, peer := range strings.Split(*peers, ",") {
			if peer = strings.TrimSpace(peer); peer != "" {
				options = append(options, node.WithStaticPeers(peer))
			}
		}
	}

	return logger, &settings{
		process:         *process,
		shutdownTimeout: *shutdown,
		options:         options,
	}, nil
}
