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

package bus

import (
	"context"
	"sort"

	goset "github.com/deckarep/golang-set/v2"
	"go.uber.org/atomic"

	"github.com/tochemey/gobus/address"
	"github.com/tochemey/gobus/internal/queue"
	"github.com/tochemey/gobus/message"
)

// Handler processes the messages of an actor. Calls are sequential.
type Handler func(ctx context.Context, env *message.Envelope)

// PID is a running local actor
type PID struct {
	address  address.Address
	bus      *Bus
	handler  Handler
	patterns goset.Set[string]
	mailbox  *queue.Queue[*message.Envelope]
	running  *atomic.Bool
	cancel   context.CancelFunc
	done     chan struct{}
}

func newPID(bus *Bus, addr address.Address, handler Handler, patterns []string) *PID {
	return &PID{
		address:  addr,
		bus:      bus,
		handler:  handler,
		patterns: goset.NewSet(patterns...),
		mailbox:  queue.New[*message.Envelope](),
		running:  atomic.NewBool(false),
		done:     make(chan struct{}),
	}
}

// Address returns the actor address
func (p *PID) Address() address.Address {
	return p.address
}

// IsRunning reports whether the actor processes messages
func (p *PID) IsRunning() bool {
	return p.running.Load()
}

// Patterns returns the sorted subscription patterns
func (p *PID) Patterns() []string {
	patterns := p.patterns.ToSlice()
	sort.Strings(patterns)
	return patterns
}

// Accepts reports whether the actor subscribed to id
func (p *PID) Accepts(id string) bool {
	if p.patterns.Contains(id) {
		return true
	}
	accepted := false
	p.patterns.Each(func(pattern string) bool {
		accepted = address.MatchID(pattern, id)
		return accepted
	})
	return accepted
}

// Subscribe adds patterns and announces them to the routes
func (p *PID) Subscribe(patterns ...string) error {
	for _, pattern := range patterns {
		if err := address.ValidateID(pattern); err != nil {
			return err
		}
	}
	p.patterns.Append(patterns...)
	env, err := message.NewSubscribe(p.address, patterns...)
	if err != nil {
		return err
	}
	p.bus.Dispatch(env, "")
	return nil
}

// Unsubscribe removes patterns and announces it to the routes
func (p *PID) Unsubscribe(patterns ...string) error {
	p.patterns.RemoveAll(patterns...)
	env, err := message.NewUnsubscribe(p.address, patterns...)
	if err != nil {
		return err
	}
	p.bus.Dispatch(env, "")
	return nil
}

// Publish publishes a message on behalf of the actor
func (p *PID) Publish(id string, payload []byte) error {
	return p.bus.Publish(message.New(id, p.address, payload))
}

// Send sends a message to a single actor
func (p *PID) Send(id string, to address.Address, payload []byte) error {
	return p.bus.Publish(message.NewTo(id, p.address, to, payload))
}

// Stop stops the actor, dropping the messages left in its mailbox, and
// announces its departure to the routes
func (p *PID) Stop(ctx context.Context) error {
	if !p.bus.remove(p) {
		return nil
	}
	p.halt()
	p.bus.Dispatch(message.NewBye(p.address), "")

	select {
	case <-p.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *PID) start() {
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.running.Store(true)
	go p.loop(ctx)
}

func (p *PID) halt() {
	if p.running.CompareAndSwap(true, false) {
		p.cancel()
		p.mailbox.CloseRemaining()
	}
}

func (p *PID) enqueue(env *message.Envelope) {
	if !p.mailbox.Push(env) {
		p.bus.logger.Debugf("message=(%s) dropped: actor=(%s) stopped", env.ID, p.address)
	}
}

func (p *PID) loop(ctx context.Context) {
	defer close(p.done)
	for {
		env, ok := p.mailbox.Wait()
		if !ok {
			return
		}
		p.handler(ctx, env)
	}
}
