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

// Package address provides the identities used by the message bus.
//
// A process taking part in the bus is identified by a PeerID, made of the
// host it runs on and a process identity unique on that host. An actor living
// inside a process is identified by an Address, which is the PeerID of its
// process plus the actor name.
//
// The canonical textual representation of an Address is:
//
//	<name>@<process>@<host>
//
// Addresses and peer identifiers are plain comparable values and can be used
// as map keys.
package address

import (
	"strings"
)

const separator = "@"

// PeerID identifies one process of the bus.
type PeerID struct {
	Host    string `cbor:"1,keyasint"`
	Process string `cbor:"2,keyasint"`
}

// NewPeerID creates a PeerID
func NewPeerID(host, process string) PeerID {
	return PeerID{Host: host, Process: process}
}

// String returns the textual form process@host
func (p PeerID) String() string {
	return p.Process + separator + p.Host
}

// IsZero returns true when the peer identifier is not set
func (p PeerID) IsZero() bool {
	return p.Host == "" && p.Process == ""
}

// Compare returns -1, 0 or +1 following the lexicographic order of the
// process identity, then the host. The order is total, so two processes
// always agree on which one of them ranks lower.
func (p PeerID) Compare(other PeerID) int {
	if c := strings.Compare(p.Process, other.Process); c != 0 {
		return c
	}
	return strings.Compare(p.Host, other.Host)
}

// Less reports whether p ranks strictly lower than other
func (p PeerID) Less(other PeerID) bool {
	return p.Compare(other) < 0
}

// Address identifies an actor ("work process") on the bus.
// A zero Name denotes the process itself rather than one of its actors.
type Address struct {
	Host    string `cbor:"1,keyasint"`
	Process string `cbor:"2,keyasint"`
	Name    string `cbor:"3,keyasint"`
}

// New creates an Address
func New(name string, peer PeerID) Address {
	return Address{Host: peer.Host, Process: peer.Process, Name: name}
}

// NoSender is the zero address
var NoSender = Address{}

// Peer returns the process the address lives in
func (a Address) Peer() PeerID {
	return PeerID{Host: a.Host, Process: a.Process}
}

// IsZero returns true when the address is not set
func (a Address) IsZero() bool {
	return a.Host == "" && a.Process == "" && a.Name == ""
}

// Equals is a convenience alias of ==
func (a Address) Equals(other Address) bool {
	return a == other
}

// String returns the canonical form name@process@host
func (a Address) String() string {
	if a.IsZero() {
		return ""
	}
	return a.Name + separator + a.Process + separator + a.Host
}

// Parse parses the canonical form produced by String
func Parse(s string) (Address, error) {
	if s == "" {
		return NoSender, nil
	}
	parts := strings.Split(s, separator)
	if len(parts) != 3 || parts[1] == "" || parts[2] == "" {
		return NoSender, ErrInvalidAddress
	}
	return Address{Name: parts[0], Process: parts[1], Host: parts[2]}, nil
}

// Scope is the locality qualifier of a message or advertisement.
type Scope uint8

const (
	// ScopeGlobal messages may cross any link
	ScopeGlobal Scope = iota
	// ScopeHost messages may only reach processes running on the same host
	ScopeHost
	// ScopeProcess messages never leave the process
	ScopeProcess
)

// String implements fmt.Stringer
func (s Scope) String() string {
	switch s {
	case ScopeGlobal:
		return "global"
	case ScopeHost:
		return "host"
	case ScopeProcess:
		return "process"
	default:
		return "unknown"
	}
}

// Allows reports whether a message of this scope, emitted by the local
// process, may be handed over to the remote process
func (s Scope) Allows(local, remote PeerID) bool {
	switch s {
	case ScopeGlobal:
		return true
	case ScopeHost:
		return local.Host == remote.Host
	default:
		return false
	}
}
