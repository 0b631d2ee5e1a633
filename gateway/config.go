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

package gateway

import (
	"time"

	"github.com/tochemey/gobus/address"
	"github.com/tochemey/gobus/bus"
	gerrors "github.com/tochemey/gobus/errors"
	"github.com/tochemey/gobus/internal/compression"
	"github.com/tochemey/gobus/internal/metric"
	"github.com/tochemey/gobus/internal/registry"
	"github.com/tochemey/gobus/internal/wire"
	"github.com/tochemey/gobus/log"
	"github.com/tochemey/gobus/message"
)

const (
	// DefaultHandshakeTimeout is the time given to a peer to answer the subscription exchange
	DefaultHandshakeTimeout = 30 * time.Second
	// DefaultDrainTimeout bounds the flushing of pending writes at shutdown
	DefaultDrainTimeout = 5 * time.Second
	// DefaultReaders is the number of reader goroutines of a threaded gateway
	DefaultReaders = 2

	readBufferSize = 32 * 1024
)

// Config holds the collaborators shared by every gateway of an engine
type Config struct {
	// Bus is the local dispatch runtime. Required.
	Bus *bus.Bus
	// Registry is the process-wide table of established links. Required.
	Registry *registry.Registry
	// Codec converts envelopes to blocks. Defaults to a BlockCodec.
	Codec message.Codec
	// Checksum is the trailer checksum algorithm. Both ends must agree.
	Checksum wire.Checksum
	// MaxBlockSize bounds the accepted block size
	MaxBlockSize uint32
	// HandshakeTimeout aborts links whose peer does not answer the subscription exchange
	HandshakeTimeout time.Duration
	// PingInterval enables PING frames on idle links when positive
	PingInterval time.Duration
	// DrainTimeout bounds the flushing of pending writes at shutdown
	DrainTimeout time.Duration
	// Listener returns the endpoint of the local server listener, if any.
	// It is part of the handshake so that the peer can tell others about it.
	Listener func() (address.Target, bool)
	// Wrapper optionally compresses the links
	Wrapper compression.ConnWrapper
	// Logger defaults to the discard logger
	Logger log.Logger
	// Metric defaults to no-op instruments
	Metric *metric.Metric
}

func (c *Config) sanitize() error {
	if c.Bus == nil || c.Registry == nil {
		return gerrors.ErrInvalidConfig
	}
	if c.Codec == nil {
		c.Codec = message.NewBlockCodec(message.DefaultMaxBlockSize)
	}
	if c.MaxBlockSize == 0 {
		c.MaxBlockSize = wire.DefaultMaxBlockSize
	}
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if c.DrainTimeout <= 0 {
		c.DrainTimeout = DefaultDrainTimeout
	}
	if c.Listener == nil {
		c.Listener = func() (address.Target, bool) { return address.Target{}, false }
	}
	if c.Logger == nil {
		c.Logger = log.DiscardLogger
	}
	if c.Metric == nil {
		c.Metric = metric.Noop()
	}
	return nil
}
