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
	"context"
	"net"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/tochemey/gobus/address"
	gerrors "github.com/tochemey/gobus/errors"
	"github.com/tochemey/gobus/internal/wire"
	"github.com/tochemey/gobus/message"
)

// Link describes how a connection was obtained
type Link struct {
	// Dialed is true when the local process initiated the connection
	Dialed bool
	// Target is the endpoint that was dialed. It is zero for accepted connections.
	Target address.Target
}

// Engine runs gateways over established connections. ThreadedEngine and
// Reactor implement the same protocol with different concurrency models.
type Engine interface {
	// Spawn starts a gateway owning conn. The gateway closes conn when it terminates.
	Spawn(conn net.Conn, link Link) (*Gateway, error)
	// Gateways returns the running gateways
	Gateways() []*Gateway
	// Close shuts every gateway down and releases the engine
	Close(ctx context.Context) error
}

// transport is the I/O half of a gateway. The protocol half calls it from
// any goroutine.
type transport interface {
	send(env *message.Envelope) error
	sendControl(t wire.FrameType)
	shutdown(cause error, abort bool)
}

type pool struct {
	mu       sync.Mutex
	gateways map[string]*Gateway
	closed   bool
}

func newPool() *pool {
	return &pool{gateways: make(map[string]*Gateway)}
}

func (p *pool) add(g *Gateway) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return gerrors.ErrGatewayClosed
	}
	p.gateways[g.ID()] = g
	return nil
}

func (p *pool) remove(g *Gateway) {
	p.mu.Lock()
	delete(p.gateways, g.ID())
	p.mu.Unlock()
}

func (p *pool) list() []*Gateway {
	p.mu.Lock()
	gateways := make([]*Gateway, 0, len(p.gateways))
	for _, g := range p.gateways {
		gateways = append(gateways, g)
	}
	p.mu.Unlock()

	sort.Slice(gateways, func(i, j int) bool {
		return gateways[i].ID() < gateways[j].ID()
	})
	return gateways
}

// shutdown refuses new gateways and closes the running ones
func (p *pool) shutdown(ctx context.Context) error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()

	// the links drain concurrently
	var eg errgroup.Group
	for _, g := range p.list() {
		eg.Go(func() error { return g.Close(ctx) })
	}
	return eg.Wait()
}
