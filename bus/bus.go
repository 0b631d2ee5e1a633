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

// Package bus is the in-process dispatch runtime of a bus node.
//
// Actors are spawned with a name and a set of subscription patterns. Every
// actor owns a mailbox drained by its own goroutine. Messages published on
// the bus reach the local actors whose patterns match and every attached
// Route willing to forward them; routes are how gateways bridge the local
// actor network to remote processes.
package bus

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/atomic"

	"github.com/tochemey/gobus/address"
	gerrors "github.com/tochemey/gobus/errors"
	"github.com/tochemey/gobus/internal/validation"
	"github.com/tochemey/gobus/log"
	"github.com/tochemey/gobus/message"
)

// Route receives the messages the local runtime hands over to a remote
// process. Forward may block while the link applies back-pressure, never
// longer than the link stays open.
type Route interface {
	// ID uniquely identifies the route
	ID() string
	// WillForward reports whether the message must cross this route
	WillForward(env *message.Envelope) bool
	// Forward queues the message for transmission
	Forward(env *message.Envelope) error
}

// Bus dispatches messages between the local actors and the attached routes
type Bus struct {
	peer   address.PeerID
	logger log.Logger

	mu     sync.RWMutex
	actors map[string]*PID
	routes map[string]Route

	closed *atomic.Bool
}

// New creates a Bus for the process identified by peer
func New(peer address.PeerID, logger log.Logger) *Bus {
	if logger == nil {
		logger = log.DiscardLogger
	}
	return &Bus{
		peer:   peer,
		logger: logger.With("component", "bus"),
		actors: make(map[string]*PID),
		routes: make(map[string]Route),
		closed: atomic.NewBool(false),
	}
}

// Peer returns the identity of the local process
func (b *Bus) Peer() address.PeerID {
	return b.peer
}

// Address returns the address of the process itself
func (b *Bus) Address() address.Address {
	return address.New("", b.peer)
}

// Spawn starts an actor named name handling its messages with handler and
// subscribed to patterns. The subscription is announced to the attached routes.
func (b *Bus) Spawn(name string, handler Handler, patterns ...string) (*PID, error) {
	if b.closed.Load() {
		return nil, gerrors.ErrBusClosed
	}
	chain := validation.New(validation.FailFast()).
		AddValidator(validation.NewEmptyStringValidator("name", name)).
		AddAssertion(handler != nil, "the [handler] is required")
	for _, pattern := range patterns {
		chain.AddValidator(validation.NewIdentifierValidator("pattern", pattern))
	}
	if err := chain.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", gerrors.ErrInvalidMessage, err)
	}

	pid := newPID(b, address.New(name, b.peer), handler, patterns)

	b.mu.Lock()
	if _, ok := b.actors[name]; ok {
		b.mu.Unlock()
		return nil, gerrors.NewErrActorAlreadyExists(name)
	}
	b.actors[name] = pid
	b.mu.Unlock()

	pid.start()
	b.logger.Debugf("actor=(%s) spawned", pid.Address())

	if len(patterns) > 0 {
		if env, err := message.NewSubscribe(pid.Address(), patterns...); err == nil {
			b.Dispatch(env, "")
		}
	}
	return pid, nil
}

// Actor returns the local actor named name
func (b *Bus) Actor(name string) (*PID, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	pid, ok := b.actors[name]
	return pid, ok
}

// Actors returns the subscriptions of the running local actors, sorted by address
func (b *Bus) Actors() []message.ActorSubscriptions {
	b.mu.RLock()
	actors := make([]message.ActorSubscriptions, 0, len(b.actors))
	for _, pid := range b.actors {
		actors = append(actors, message.ActorSubscriptions{
			Address:  pid.Address(),
			Patterns: pid.Patterns(),
		})
	}
	b.mu.RUnlock()

	sort.Slice(actors, func(i, j int) bool {
		return actors[i].Address.Name < actors[j].Address.Name
	})
	return actors
}

// Attach adds a route
func (b *Bus) Attach(route Route) {
	b.mu.Lock()
	b.routes[route.ID()] = route
	b.mu.Unlock()
}

// Detach removes a route
func (b *Bus) Detach(route Route) {
	b.mu.Lock()
	delete(b.routes, route.ID())
	b.mu.Unlock()
}

// Routes returns the number of attached routes
func (b *Bus) Routes() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.routes)
}

// Publish dispatches env to the local actors and the routes
func (b *Bus) Publish(env *message.Envelope) error {
	if b.closed.Load() {
		return gerrors.ErrBusClosed
	}
	if env == nil {
		return gerrors.ErrInvalidMessage
	}
	if err := address.ValidateID(env.ID); err != nil {
		return err
	}

	if !env.IsPublished() && env.To.Peer() == b.peer {
		if _, ok := b.Actor(env.To.Name); !ok {
			return gerrors.NewErrActorNotFound(env.To.Name)
		}
	}
	b.Dispatch(env, "")
	return nil
}

// Dispatch hands env over to the local actors and to every route but the
// one identified by source. Gateways use it to redeliver the messages they
// receive.
func (b *Bus) Dispatch(env *message.Envelope, source string) {
	if b.closed.Load() {
		return
	}

	b.mu.RLock()
	var pids []*PID
	if env.IsPublished() {
		pids = make([]*PID, 0, len(b.actors))
		for _, pid := range b.actors {
			if pid.Address() != env.From && pid.Accepts(env.ID) {
				pids = append(pids, pid)
			}
		}
	} else if env.To.Peer() == b.peer {
		if pid, ok := b.actors[env.To.Name]; ok {
			pids = append(pids, pid)
		}
	}

	routes := make([]Route, 0, len(b.routes))
	if env.Scope != address.ScopeProcess && (env.IsPublished() || env.To.Peer() != b.peer) {
		for id, route := range b.routes {
			if id != source {
				routes = append(routes, route)
			}
		}
	}
	b.mu.RUnlock()

	if len(pids) == 0 && !env.IsPublished() && env.To.Peer() == b.peer {
		b.logger.Debugf("message=(%s) dropped: actor=(%s) not found", env.ID, env.To)
	}

	for _, pid := range pids {
		pid.enqueue(env)
	}

	for _, route := range routes {
		if !route.WillForward(env) {
			continue
		}
		if err := route.Forward(env); err != nil {
			b.logger.Warnf("failed to forward message=(%s) through route=(%s): %v", env.ID, route.ID(), err)
		}
	}
}

// Close stops every actor and detaches every route
func (b *Bus) Close(ctx context.Context) error {
	if !b.closed.CompareAndSwap(false, true) {
		return nil
	}

	b.mu.Lock()
	pids := make([]*PID, 0, len(b.actors))
	for _, pid := range b.actors {
		pids = append(pids, pid)
	}
	b.actors = make(map[string]*PID)
	b.routes = make(map[string]Route)
	b.mu.Unlock()

	for _, pid := range pids {
		pid.halt()
	}
	for _, pid := range pids {
		select {
		case <-pid.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (b *Bus) remove(pid *PID) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if current, ok := b.actors[pid.Address().Name]; ok && current == pid {
		delete(b.actors, pid.Address().Name)
		return true
	}
	return false
}
