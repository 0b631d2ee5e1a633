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

// Package gateway bridges the local bus to remote processes.
//
// A Gateway owns one established connection to one peer process. It starts
// with a subscription exchange, then relays the messages the peer's actors
// subscribed to and redelivers the messages it receives on the local bus.
// Gateways are run by an Engine: the ThreadedEngine uses blocking I/O with a
// small pool of reader goroutines per link while the Reactor services every
// link from a single event loop. Both share the protocol implemented here.
package gateway

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/atomic"

	"github.com/tochemey/gobus/address"
	"github.com/tochemey/gobus/bus"
	gerrors "github.com/tochemey/gobus/errors"
	"github.com/tochemey/gobus/internal/registry"
	"github.com/tochemey/gobus/internal/subscription"
	"github.com/tochemey/gobus/log"
	"github.com/tochemey/gobus/message"
)

// State is the lifecycle state of a gateway
type State int32

const (
	// Initializing gateways wait for the peer subscriptions
	Initializing State = iota
	// Connected gateways relay messages
	Connected
	// Closing gateways drain their pending writes
	Closing
	// Closed gateways released their connection
	Closed
)

func (s State) String() string {
	switch s {
	case Initializing:
		return "initializing"
	case Connected:
		return "connected"
	case Closing:
		return "closing"
	case Closed:
		return "closed"
	default:
		return "unknown"
	}
}

// Gateway is the local end of a link to a remote process
type Gateway struct {
	id     string
	cfg    *Config
	local  address.PeerID
	dialed bool
	dialTo address.Target
	nonce  string

	mu           sync.RWMutex
	remote       address.PeerID
	remoteTarget address.Target
	cause        error

	state      *atomic.Int32
	registered *atomic.Bool
	closing    *atomic.Bool
	handshaken bool

	table     *subscription.Table
	logger    log.Logger
	timer     *atomic.Pointer[time.Timer]
	transport transport
	release   func(*Gateway)
	done      chan struct{}
}

var (
	_ bus.Route      = (*Gateway)(nil)
	_ registry.Owner = (*Gateway)(nil)
)

func newGateway(cfg *Config, link Link, release func(*Gateway)) *Gateway {
	id := uuid.NewString()
	g := &Gateway{
		id:         id,
		cfg:        cfg,
		local:      cfg.Bus.Peer(),
		dialed:     link.Dialed,
		dialTo:     link.Target,
		state:      atomic.NewInt32(int32(Initializing)),
		registered: atomic.NewBool(false),
		closing:    atomic.NewBool(false),
		timer:      atomic.NewPointer[time.Timer](nil),
		table:      subscription.NewTable(),
		release:    release,
		done:       make(chan struct{}),
	}
	if link.Dialed {
		g.nonce = uuid.NewString()
	}
	g.logger = cfg.Logger.With("component", "gateway", "gateway", id, "dialed", link.Dialed)
	return g
}

// ID returns the gateway identifier
func (g *Gateway) ID() string {
	return g.id
}

// Remote returns the peer process. It is zero until the handshake completes.
func (g *Gateway) Remote() address.PeerID {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.remote
}

// Target returns the listener endpoint of the peer, or the dialed endpoint
// when the peer has no listener
func (g *Gateway) Target() address.Target {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.remoteTarget.Host != "" {
		return g.remoteTarget
	}
	return g.dialTo
}

// Dialed reports whether the local process initiated the link
func (g *Gateway) Dialed() bool {
	return g.dialed
}

// State returns the lifecycle state
func (g *Gateway) State() State {
	return State(g.state.Load())
}

// Err returns the reason of the termination once the gateway is closed
func (g *Gateway) Err() error {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.cause
}

// Done is closed once the gateway has released its connection
func (g *Gateway) Done() <-chan struct{} {
	return g.done
}

// Subscribers returns the remote actors subscribed to id
func (g *Gateway) Subscribers(id string) []address.Address {
	return g.table.Subscribers(id)
}

// WillForward reports whether env must cross this link
func (g *Gateway) WillForward(env *message.Envelope) bool {
	if g.State() != Connected || env.ID == message.Subscriptions {
		return false
	}

	remote := g.Remote()
	if env.HopCount > 0 {
		if env.ID != message.Advertise || env.HopCount > message.MaxAdvertisementHops {
			return false
		}
		if env.Forwarder.Peer() == remote || env.From.Peer() == remote {
			return false
		}
	}

	if !env.Scope.Allows(g.local, remote) {
		return false
	}

	// the peer maintains its routing table from these
	if env.IsControl() && env.HopCount == 0 && env.From.Peer() == g.local {
		return true
	}

	if !env.IsPublished() {
		return env.To.Peer() == remote || g.table.Has(env.To)
	}
	return g.table.Match(env.ID)
}

// Forward queues env for transmission
func (g *Gateway) Forward(env *message.Envelope) error {
	if g.State() != Connected {
		return gerrors.ErrNotConnected
	}
	if err := g.transport.send(env); err != nil {
		return err
	}
	g.cfg.Metric.MessageOut(context.Background(), g.Remote().String())
	return nil
}

// Close shuts the gateway down, letting pending writes drain, and waits for
// the connection to be released
func (g *Gateway) Close(ctx context.Context) error {
	g.fail(gerrors.ErrGatewayClosed, true)
	select {
	case <-g.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (g *Gateway) fail(cause error, abort bool) {
	g.transport.shutdown(cause, abort)
}

// beginClose flips the gateway to Closing. Only the first caller gets true.
func (g *Gateway) beginClose() bool {
	if !g.closing.CompareAndSwap(false, true) {
		return false
	}
	g.state.Store(int32(Closing))
	g.disarm()
	return true
}
