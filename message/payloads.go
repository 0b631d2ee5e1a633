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

package message

import (
	"github.com/tochemey/gobus/address"
)

// Advertisement announces the reachability of a server listener
type Advertisement struct {
	Peer   address.PeerID `cbor:"1,keyasint"`
	Target address.Target `cbor:"2,keyasint"`
}

// BindConflictNotice is published when a listener could not bind a target
// because another process of the same host already owns it
type BindConflictNotice struct {
	Target address.Target `cbor:"1,keyasint"`
}

// PeerDown is published when a gateway terminates
type PeerDown struct {
	Peer   address.PeerID `cbor:"1,keyasint"`
	Target address.Target `cbor:"2,keyasint"`
	Reason string         `cbor:"3,keyasint"`
	// Dialed is true when the local process initiated the link
	Dialed bool `cbor:"4,keyasint"`
}

// DuplicateNotice is published when a link is torn down because another
// link to the same peer is kept
type DuplicateNotice struct {
	Peer   address.PeerID `cbor:"1,keyasint"`
	Target address.Target `cbor:"2,keyasint"`
}

// Patterns is the payload of Subscribe and Unsubscribe messages
type Patterns struct {
	Patterns []string `cbor:"1,keyasint"`
}

// NewAdvertisement builds an advertisement envelope
func NewAdvertisement(from address.Address, scope address.Scope, adv Advertisement) (*Envelope, error) {
	return newControl(Advertise, from, scope, adv)
}

// NewBindConflict builds a bind conflict envelope. It never leaves the process.
func NewBindConflict(from address.Address, target address.Target) (*Envelope, error) {
	return newControl(BindConflict, from, address.ScopeProcess, BindConflictNotice{Target: target})
}

// NewPeerDown builds a Remote.Down envelope. It never leaves the process.
func NewPeerDown(from address.Address, down PeerDown) (*Envelope, error) {
	return newControl(RemoteDown, from, address.ScopeProcess, down)
}

// NewDuplicate builds a Remote.Duplicate envelope. It never leaves the process.
func NewDuplicate(from address.Address, dup DuplicateNotice) (*Envelope, error) {
	return newControl(RemoteDuplicate, from, address.ScopeProcess, dup)
}

// NewSubscribe builds the envelope announcing new subscription patterns of from
func NewSubscribe(from address.Address, patterns ...string) (*Envelope, error) {
	return newControl(Subscribe, from, address.ScopeGlobal, Patterns{Patterns: patterns})
}

// NewUnsubscribe builds the envelope withdrawing subscription patterns of from
func NewUnsubscribe(from address.Address, patterns ...string) (*Envelope, error) {
	return newControl(Unsubscribe, from, address.ScopeGlobal, Patterns{Patterns: patterns})
}

// NewBye builds the envelope announcing that from stopped
func NewBye(from address.Address) *Envelope {
	return New(Bye, from, nil)
}

func newControl(id string, from address.Address, scope address.Scope, payload any) (*Envelope, error) {
	bytea, err := Marshal(payload)
	if err != nil {
		return nil, err
	}
	return New(id, from, bytea).WithScope(scope), nil
}
