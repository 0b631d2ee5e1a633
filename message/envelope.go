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

// Package message defines the addressed envelope exchanged on the bus, the
// well-known control identifiers and the block codec turning an envelope
// into the ordered byte blocks carried by the wire framing layer.
package message

import (
	"github.com/tochemey/gobus/address"
)

// Well-known message identifiers
const (
	// Subscriptions carries the handshake payload exchanged by two gateways
	Subscriptions = "Gateway.Subscriptions"
	// Subscribe is published when a local actor adds subscription patterns
	Subscribe = "Bus.Subscribe"
	// Unsubscribe is published when a local actor drops subscription patterns
	Unsubscribe = "Bus.Unsubscribe"
	// Bye is published when a local actor stops
	Bye = "Bus.Bye"
	// RemoteDown is published locally when a gateway terminates
	RemoteDown = "Remote.Down"
	// RemoteDuplicate is published locally when a duplicate link is torn down
	RemoteDuplicate = "Remote.Duplicate"
	// Advertise carries the reachability of a server listener
	Advertise = "Server.Advertise"
	// BindConflict is published locally when the listener found its address in use
	BindConflict = "Server.BindConflict"
)

// MaxAdvertisementHops bounds how far an advertisement travels through the mesh
const MaxAdvertisementHops = 3

// Envelope is an addressed message. It must not be mutated once handed to
// the bus; use Clone or Forwarded to derive a new one.
type Envelope struct {
	ID        string
	From      address.Address
	To        address.Address
	Scope     address.Scope
	HopCount  uint8
	Forwarder address.Address
	Payload   []byte
}

// New creates a published (unaddressed) envelope with global scope
func New(id string, from address.Address, payload []byte) *Envelope {
	return &Envelope{
		ID:      id,
		From:    from,
		Scope:   address.ScopeGlobal,
		Payload: payload,
	}
}

// NewTo creates an envelope addressed to a single actor
func NewTo(id string, from, to address.Address, payload []byte) *Envelope {
	env := New(id, from, payload)
	env.To = to
	return env
}

// WithScope sets the scope and returns the envelope
func (e *Envelope) WithScope(scope address.Scope) *Envelope {
	e.Scope = scope
	return e
}

// IsPublished reports whether the envelope has no explicit destination
func (e *Envelope) IsPublished() bool {
	return e.To.IsZero()
}

// IsControl reports whether the envelope carries routing table maintenance
func (e *Envelope) IsControl() bool {
	switch e.ID {
	case Subscribe, Unsubscribe, Bye:
		return true
	default:
		return false
	}
}

// Clone returns a copy of the envelope. The payload is shared.
func (e *Envelope) Clone() *Envelope {
	clone := *e
	return &clone
}

// Forwarded returns a copy of the envelope as seen after one gateway
// traversal: the hop count is incremented and by is recorded as forwarder.
func (e *Envelope) Forwarded(by address.Address) *Envelope {
	clone := e.Clone()
	clone.HopCount++
	clone.Forwarder = by
	return clone
}
