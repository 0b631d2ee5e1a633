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

// Package node assembles a bus process: the local bus, the peer registry,
// the gateway engine, the server listener, the connection manager and the
// optional mDNS discovery.
package node

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/atomic"

	"github.com/tochemey/gobus/address"
	"github.com/tochemey/gobus/bus"
	"github.com/tochemey/gobus/discovery/mdns"
	gerrors "github.com/tochemey/gobus/errors"
	"github.com/tochemey/gobus/gateway"
	"github.com/tochemey/gobus/internal/client"
	"github.com/tochemey/gobus/internal/compression"
	"github.com/tochemey/gobus/internal/errorschain"
	"github.com/tochemey/gobus/internal/metric"
	"github.com/tochemey/gobus/internal/registry"
	"github.com/tochemey/gobus/internal/server"
	"github.com/tochemey/gobus/internal/wire"
	"github.com/tochemey/gobus/log"
	"github.com/tochemey/gobus/message"
)

// Node is a bus process linked to the other processes
type Node struct {
	config *Config
	peer   address.PeerID
	logger log.Logger
	metric *metric.Metric

	bus       *bus.Bus
	registry  *registry.Registry
	engine    gateway.Engine
	listener  *server.Listener
	manager   *client.Manager
	discovery *mdns.Discovery

	mu      sync.Mutex
	started *atomic.Bool
	stopped *atomic.Bool
}

// New creates a Node named process
func New(process string, opts ...Option) (*Node, error) {
	return NewFromConfig(NewConfig(process, opts...))
}

// NewFromConfig creates a Node from config
func NewFromConfig(config *Config) (*Node, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", gerrors.ErrInvalidConfig, err)
	}

	peer := config.Peer()
	logger := config.logger.With("peer", peer.String())

	m := metric.Noop()
	if config.meterProvider != nil {
		var err error
		if m, err = metric.NewMetric(metric.NewProvider(config.meterProvider).Meter()); err != nil {
			return nil, err
		}
	}

	checksum, _ := wire.ParseChecksum(config.checksum)
	kind, _ := compression.ParseKind(config.compression)
	wrapper, err := compression.NewWrapper(kind)
	if err != nil {
		return nil, err
	}

	n := &Node{
		config:   config,
		peer:     peer,
		logger:   logger,
		metric:   m,
		bus:      bus.New(peer, logger),
		registry: registry.New(),
		started:  atomic.NewBool(false),
		stopped:  atomic.NewBool(false),
	}

	engineConfig := gateway.Config{
		Bus:              n.bus,
		Registry:         n.registry,
		Codec:            message.NewBlockCodec(config.maxBlockSize),
		Checksum:         checksum,
		MaxBlockSize:     uint32(max(config.maxBlockSize, wire.DefaultMaxBlockSize)),
		HandshakeTimeout: config.handshakeTimeout,
		PingInterval:     config.pingInterval,
		DrainTimeout:     config.drainTimeout,
		Listener:         n.Target,
		Wrapper:          wrapper,
		Logger:           logger,
		Metric:           m,
	}
	switch config.engine {
	case EngineReactive:
		n.engine, err = gateway.NewReactor(engineConfig)
	default:
		n.engine, err = gateway.NewThreadedEngine(engineConfig, config.readers)
	}
	if err != nil {
		return nil, err
	}

	if config.listen {
		n.listener, err = server.NewListener(server.Config{
			Bus:               n.bus,
			Engine:            n.engine,
			Target:            config.listenTarget(),
			MaxAttempts:       config.maxBindAttempts,
			AdvertiseInterval: config.advertiseInterval,
			MaxConnections:    config.maxConnections,
			Logger:            logger,
			Metric:            m,
		})
		if err != nil {
			return nil, err
		}
	}

	n.manager, err = client.NewManager(client.Config{
		Bus:            n.bus,
		Registry:       n.registry,
		Engine:         n.engine,
		Listener:       n.Target,
		ConnectTimeout: config.connectTimeout,
		RetryBackoff:   config.retryBackoff,
		GiveUpAfter:    config.giveUpAfter,
		TickInterval:   config.tickInterval,
		Logger:         logger,
		Metric:         m,
	})
	if err != nil {
		return nil, err
	}
	return n, nil
}

// Start spawns the connection manager, then binds the server listener and
// starts the discovery. The manager runs first so it hears the bind
// conflicts of the listener. A listener that cannot bind any port is
// deactivated and the process keeps running as a client.
func (n *Node) Start(ctx context.Context) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.stopped.Load() {
		return gerrors.ErrBusClosed
	}
	if n.started.Load() {
		return nil
	}

	if err := n.manager.Start(ctx); err != nil {
		return n.abort(ctx, err)
	}

	if n.listener != nil {
		if err := n.listener.Start(ctx); err != nil {
			if !errors.Is(err, gerrors.ErrBindExhausted) {
				return n.abort(ctx, err)
			}
			n.logger.Errorf("server listener deactivated: %v", err)
		}
	}

	if bound, ok := n.bound(); ok && n.config.mdns {
		n.discovery = mdns.NewDiscovery(mdns.Config{
			Instance: n.peer.String(),
			Service:  n.config.mdnsService,
			Domain:   n.config.mdnsDomain,
			Port:     bound.Port,
		}, n.peer, mdns.WithLogger(n.logger), mdns.WithSink(n.discovered))
		if err := n.discovery.Start(ctx); err != nil {
			return n.abort(ctx, err)
		}
	}

	for _, peer := range n.config.staticPeers {
		target, err := address.ParseTarget(peer, n.config.transport)
		if err != nil {
			return err
		}
		n.manager.AddConnection(target)
	}

	n.started.Store(true)
	n.logger.Infof("node=(%s) started", n.peer)
	return nil
}

// Stop closes the links and stops every component. A stopped node cannot
// be restarted.
func (n *Node) Stop(ctx context.Context) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if !n.stopped.CompareAndSwap(false, true) {
		return nil
	}
	if !n.started.Load() {
		_ = n.engine.Close(ctx)
		return n.bus.Close(ctx)
	}

	err := n.shutdown(ctx)
	n.started.Store(false)
	n.logger.Infof("node=(%s) stopped", n.peer)
	return err
}

// abort releases what a failed Start brought up. The node cannot be restarted.
func (n *Node) abort(ctx context.Context, cause error) error {
	_ = n.shutdown(context.WithoutCancel(ctx))
	n.stopped.Store(true)
	return cause
}

func (n *Node) shutdown(ctx context.Context) error {
	chain := errorschain.New(errorschain.ReturnAll())
	if n.discovery != nil {
		chain.AddStep("discovery", func(ctx context.Context) error {
			if err := n.discovery.Stop(ctx); !errors.Is(err, gerrors.ErrDiscoveryNotStarted) {
				return err
			}
			return nil
		})
	}
	if n.listener != nil {
		chain.AddStep("listener", n.listener.Stop)
	}
	return chain.
		AddStep("manager", n.manager.Stop).
		AddStep("engine", n.engine.Close).
		AddStep("bus", n.bus.Close).
		Run(ctx)
}

// Peer returns the identity of the process
func (n *Node) Peer() address.PeerID {
	return n.peer
}

// Bus returns the local bus
func (n *Node) Bus() *bus.Bus {
	return n.bus
}

// Target returns the advertised target of the server listener. It reports
// false when the process does not listen.
func (n *Node) Target() (address.Target, bool) {
	if n.listener == nil {
		return address.Target{}, false
	}
	return n.listener.Target()
}

func (n *Node) bound() (address.Target, bool) {
	if n.listener == nil {
		return address.Target{}, false
	}
	return n.listener.Bound()
}

// Gateways returns the links of the process
func (n *Node) Gateways() []*gateway.Gateway {
	return n.engine.Gateways()
}

// Peers returns the processes the node is linked to
func (n *Node) Peers() []address.PeerID {
	entries := n.registry.Snapshot()
	peers := make([]address.PeerID, 0, len(entries))
	for _, entry := range entries {
		peers = append(peers, entry.Peer)
	}
	return peers
}

// AddPeer makes the node connect to target and keep the link up
func (n *Node) AddPeer(target string) error {
	parsed, err := address.ParseTarget(target, n.config.transport)
	if err != nil {
		return err
	}
	n.manager.AddConnection(parsed)
	return nil
}

// RemovePeer stops connecting to target. An established link is left up.
func (n *Node) RemovePeer(target string) (bool, error) {
	parsed, err := address.ParseTarget(target, n.config.transport)
	if err != nil {
		return false, err
	}
	return n.manager.RemoveConnection(parsed), nil
}

// discovered hands a listener found by mDNS over to the connection manager
func (n *Node) discovered(adv message.Advertisement) {
	env, err := message.NewAdvertisement(n.bus.Address(), address.ScopeProcess, adv)
	if err != nil {
		n.logger.Warnf("failed to build advertisement of peer=(%s): %v", adv.Peer, err)
		return
	}
	if err := n.bus.Publish(env); err != nil && !errors.Is(err, gerrors.ErrBusClosed) {
		n.logger.Warnf("failed to publish advertisement of peer=(%s): %v", adv.Peer, err)
	}
}
