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

package node

import (
	"fmt"
	"os"
	"time"

	otelmetric "go.opentelemetry.io/otel/metric"

	"github.com/tochemey/gobus/address"
	"github.com/tochemey/gobus/gateway"
	"github.com/tochemey/gobus/internal/client"
	"github.com/tochemey/gobus/internal/compression"
	"github.com/tochemey/gobus/internal/server"
	"github.com/tochemey/gobus/internal/validation"
	"github.com/tochemey/gobus/internal/wire"
	"github.com/tochemey/gobus/log"
	"github.com/tochemey/gobus/message"
)

const (
	// EngineThreaded selects the blocking I/O gateway engine
	EngineThreaded = "threaded"
	// EngineReactive selects the event loop gateway engine
	EngineReactive = "reactive"

	// DefaultPort is the first port the server listener tries
	DefaultPort = 4808
	// DefaultBindHost is the host the server listener binds
	DefaultBindHost = "0.0.0.0"
	// DefaultShutdownTimeout bounds the graceful shutdown of the daemon
	DefaultShutdownTimeout = 10 * time.Second
)

// Config holds the settings of a Node
type Config struct {
	process string
	host    string

	listen     bool
	bindHost   string
	port       int
	transport  address.Transport
	socketPath string

	staticPeers []string

	engine           string
	readers          int
	handshakeTimeout time.Duration
	pingInterval     time.Duration
	drainTimeout     time.Duration
	checksum         string
	compression      string
	maxBlockSize     int

	connectTimeout time.Duration
	retryBackoff   time.Duration
	giveUpAfter    time.Duration
	tickInterval   time.Duration

	maxBindAttempts   int
	advertiseInterval time.Duration
	maxConnections    int

	mdns        bool
	mdnsService string
	mdnsDomain  string

	logger        log.Logger
	meterProvider otelmetric.MeterProvider
}

// NewConfig creates the configuration of the process named process
func NewConfig(process string, opts ...Option) *Config {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "localhost"
	}

	config := &Config{
		process:           process,
		host:              host,
		listen:            true,
		bindHost:          DefaultBindHost,
		port:              DefaultPort,
		transport:         address.TCP,
		engine:            EngineThreaded,
		readers:           gateway.DefaultReaders,
		handshakeTimeout:  gateway.DefaultHandshakeTimeout,
		drainTimeout:      gateway.DefaultDrainTimeout,
		checksum:          wire.ChecksumNone.String(),
		compression:       compression.None.String(),
		maxBlockSize:      message.DefaultMaxBlockSize,
		connectTimeout:    client.DefaultConnectTimeout,
		retryBackoff:      client.DefaultRetryBackoff,
		giveUpAfter:       client.DefaultGiveUpAfter,
		tickInterval:      client.DefaultTickInterval,
		maxBindAttempts:   server.DefaultMaxAttempts,
		advertiseInterval: server.DefaultAdvertiseInterval,
		logger:            log.DiscardLogger,
	}
	for _, opt := range opts {
		opt.Apply(config)
	}
	return config
}

// Peer returns the identity of the process
func (c *Config) Peer() address.PeerID {
	return address.NewPeerID(c.host, c.process)
}

// Logger returns the configured logger
func (c *Config) Logger() log.Logger {
	return c.logger
}

// StaticPeers returns the targets the process always connects to
func (c *Config) StaticPeers() []string {
	return append([]string(nil), c.staticPeers...)
}

// Validate checks the configuration
func (c *Config) Validate() error {
	_, checksumErr := wire.ParseChecksum(c.checksum)
	_, compressionErr := compression.ParseKind(c.compression)

	chain := validation.New(validation.AllErrors()).
		AddValidator(validation.NewEmptyStringValidator("process", c.process)).
		AddValidator(validation.NewEmptyStringValidator("host", c.host)).
		AddAssertion(c.engine == EngineThreaded || c.engine == EngineReactive, fmt.Sprintf("unknown engine %q", c.engine)).
		AddAssertion(c.readers >= gateway.DefaultReaders, "reader threads must be at least 2").
		AddAssertion(checksumErr == nil, fmt.Sprintf("unknown checksum %q", c.checksum)).
		AddAssertion(compressionErr == nil, fmt.Sprintf("unknown compression %q", c.compression)).
		AddAssertion(c.maxBlockSize > 0, "max block size must be positive").
		AddAssertion(c.handshakeTimeout > 0, "handshake timeout must be positive").
		AddAssertion(c.connectTimeout > 0, "connect timeout must be positive").
		AddAssertion(c.retryBackoff > 0, "retry backoff must be positive").
		AddAssertion(c.giveUpAfter > 0, "give up timeout must be positive").
		AddAssertion(c.tickInterval > 0, "tick interval must be positive").
		AddAssertion(c.pingInterval >= 0, "ping interval must not be negative")

	chain.
		When(c.listen, func(chain *validation.Chain) {
			chain.
				AddAssertion(c.port >= 0 && c.port <= 65535, "port is invalid").
				AddAssertion(c.maxBindAttempts > 0, "max bind attempts must be positive").
				AddAssertion(c.advertiseInterval > 0, "advertise interval must be positive").
				AddAssertion(c.maxConnections >= 0, "max connections must not be negative").
				AddAssertion(!c.mdns || c.transport == address.TCP, "mDNS discovery requires the tcp transport")
		}).
		When(c.listen && c.transport == address.Unix, func(chain *validation.Chain) {
			chain.AddValidator(validation.NewEmptyStringValidator("socketPath", c.socketPath))
		}).
		When(c.listen && c.transport == address.TCP, func(chain *validation.Chain) {
			chain.AddValidator(validation.NewEmptyStringValidator("bindHost", c.bindHost))
		}).
		When(!c.listen, func(chain *validation.Chain) {
			chain.AddAssertion(!c.mdns, "mDNS discovery requires a server listener")
		})

	for _, peer := range c.staticPeers {
		chain.AddValidator(validation.NewTargetValidator(peer, c.transport))
	}
	return chain.Validate()
}

// listenTarget is the first target the server listener binds
func (c *Config) listenTarget() address.Target {
	if c.transport == address.Unix {
		return address.NewTarget(c.socketPath, c.port, address.Unix)
	}
	return address.NewTarget(c.bindHost, c.port, address.TCP)
}
