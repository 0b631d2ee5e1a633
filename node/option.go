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
	"time"

	otelmetric "go.opentelemetry.io/otel/metric"

	"github.com/tochemey/gobus/address"
	"github.com/tochemey/gobus/log"
)

// Option is the interface that applies a configuration option.
type Option interface {
	// Apply sets the Option value of a config.
	Apply(config *Config)
}

var _ Option = OptionFunc(nil)

// OptionFunc implements the Option interface.
type OptionFunc func(config *Config)

// Apply applies the option
func (f OptionFunc) Apply(c *Config) {
	f(c)
}

// WithHost sets the host part of the peer id. Defaults to the machine hostname.
func WithHost(host string) Option {
	return OptionFunc(func(c *Config) {
		c.host = host
	})
}

// WithBindAddr sets the tcp host and first port of the server listener
func WithBindAddr(host string, port int) Option {
	return OptionFunc(func(c *Config) {
		c.transport = address.TCP
		c.bindHost = host
		c.port = port
	})
}

// WithUnixSocket makes the server listener bind a unix socket. A path
// prefixed with '=' denotes an abstract address.
func WithUnixSocket(path string) Option {
	return OptionFunc(func(c *Config) {
		c.transport = address.Unix
		c.socketPath = path
		c.port = 0
	})
}

// WithoutListener runs the process as a pure client
func WithoutListener() Option {
	return OptionFunc(func(c *Config) {
		c.listen = false
	})
}

// WithStaticPeers sets the targets the process always connects to
func WithStaticPeers(targets ...string) Option {
	return OptionFunc(func(c *Config) {
		c.staticPeers = append(c.staticPeers, targets...)
	})
}

// WithEngine selects the gateway engine: EngineThreaded or EngineReactive.
// readers is the number of reader goroutines per gateway of the threaded engine.
func WithEngine(engine string, readers int) Option {
	return OptionFunc(func(c *Config) {
		c.engine = engine
		if readers > 0 {
			c.readers = readers
		}
	})
}

// WithHandshakeTimeout sets the time given to a peer to answer the handshake
func WithHandshakeTimeout(timeout time.Duration) Option {
	return OptionFunc(func(c *Config) {
		c.handshakeTimeout = timeout
	})
}

// WithPingInterval enables the keep-alive frames of idle links
func WithPingInterval(interval time.Duration) Option {
	return OptionFunc(func(c *Config) {
		c.pingInterval = interval
	})
}

// WithChecksum sets the trailer checksum algorithm: none, sum or xxh3
func WithChecksum(algorithm string) Option {
	return OptionFunc(func(c *Config) {
		c.checksum = algorithm
	})
}

// WithCompression sets the link compression: none, zstd or brotli
func WithCompression(kind string) Option {
	return OptionFunc(func(c *Config) {
		c.compression = kind
	})
}

// WithMaxBlockSize sets the largest block a message is split into
func WithMaxBlockSize(size int) Option {
	return OptionFunc(func(c *Config) {
		c.maxBlockSize = size
	})
}

// WithConnectTimeout bounds a single connect attempt
func WithConnectTimeout(timeout time.Duration) Option {
	return OptionFunc(func(c *Config) {
		c.connectTimeout = timeout
	})
}

// WithRetryBackoff sets the wait between two connect attempts
func WithRetryBackoff(backoff time.Duration) Option {
	return OptionFunc(func(c *Config) {
		c.retryBackoff = backoff
	})
}

// WithGiveUpAfter sets the time given to an advertised peer to accept a connection
func WithGiveUpAfter(timeout time.Duration) Option {
	return OptionFunc(func(c *Config) {
		c.giveUpAfter = timeout
	})
}

// WithTickInterval sets the period of the connection state machine
func WithTickInterval(interval time.Duration) Option {
	return OptionFunc(func(c *Config) {
		c.tickInterval = interval
	})
}

// WithMaxBindAttempts sets the number of ports the server listener tries
func WithMaxBindAttempts(attempts int) Option {
	return OptionFunc(func(c *Config) {
		c.maxBindAttempts = attempts
	})
}

// WithAdvertiseInterval sets the period of the reachability advertisements
func WithAdvertiseInterval(interval time.Duration) Option {
	return OptionFunc(func(c *Config) {
		c.advertiseInterval = interval
	})
}

// WithMaxConnections caps the incoming connections open at once. Zero means no cap.
func WithMaxConnections(limit int) Option {
	return OptionFunc(func(c *Config) {
		c.maxConnections = limit
	})
}

// WithMDNS enables the mDNS discovery of the peers of the local network.
// Empty values select the defaults.
func WithMDNS(service, domain string) Option {
	return OptionFunc(func(c *Config) {
		c.mdns = true
		c.mdnsService = service
		c.mdnsDomain = domain
	})
}

// WithLogger sets the logger
func WithLogger(logger log.Logger) Option {
	return OptionFunc(func(c *Config) {
		c.logger = logger
	})
}

// WithMeterProvider enables the OpenTelemetry metrics
func WithMeterProvider(provider otelmetric.MeterProvider) Option {
	return OptionFunc(func(c *Config) {
		c.meterProvider = provider
	})
}
