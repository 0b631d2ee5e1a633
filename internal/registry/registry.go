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

// Package registry keeps track of the established links of a process.
//
// The Registry holds at most one entry per remote peer. All methods take a
// single short-held lock and never call back into the owners while holding
// it, so gateways may use the registry from any goroutine without ordering
// concerns.
package registry

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/tochemey/gobus/address"
	gerrors "github.com/tochemey/gobus/errors"
)

// Entry describes an established link to a remote peer
type Entry struct {
	// Peer is the remote process
	Peer address.PeerID `cbor:"1,keyasint"`
	// Target is the listener endpoint of the remote process, zero when it has none
	Target address.Target `cbor:"2,keyasint"`
	// Timestamp is the registration time
	Timestamp time.Time `cbor:"3,keyasint"`
	// Initiator is the process that dialed the link
	Initiator address.PeerID `cbor:"4,keyasint"`
	// Nonce is the link identity chosen by the initiator
	Nonce string `cbor:"5,keyasint"`
}

// Preferred reports whether link e must be kept over link other when both
// reach the same peer. The link dialed by the lower-ranked process wins; when
// the same process dialed both, the lower nonce wins. Both ends of a pair of
// duplicate links reach the same decision.
func (e Entry) Preferred(other Entry) bool {
	if c := e.Initiator.Compare(other.Initiator); c != 0 {
		return c < 0
	}
	return strings.Compare(e.Nonce, other.Nonce) < 0
}

// Owner is the holder of a registry entry, typically a gateway
type Owner interface {
	ID() string
}

type slot struct {
	entry Entry
	owner Owner
}

// Registry is the process-wide table of established links
type Registry struct {
	mu    sync.Mutex
	slots map[address.PeerID]slot
}

// New creates an empty Registry
func New() *Registry {
	return &Registry{slots: make(map[address.PeerID]slot)}
}

// Claim registers entry on behalf of owner. When another owner already holds
// the peer, the preferred link is kept: either the existing owner is
// displaced and returned so that the caller closes it, or ErrDuplicatePeer is
// returned and the caller must close its own link.
func (r *Registry) Claim(entry Entry, owner Owner) (Owner, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}

	existing, ok := r.slots[entry.Peer]
	if !ok || existing.owner.ID() == owner.ID() {
		r.slots[entry.Peer] = slot{entry: entry, owner: owner}
		return nil, nil
	}

	if !entry.Preferred(existing.entry) {
		return nil, gerrors.NewErrDuplicatePeer(entry.Peer.String())
	}

	r.slots[entry.Peer] = slot{entry: entry, owner: owner}
	return existing.owner, nil
}

// Release removes the entry of peer when it is still held by ownerID
func (r *Registry) Release(peer address.PeerID, ownerID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.slots[peer]
	if !ok || existing.owner.ID() != ownerID {
		return false
	}
	delete(r.slots, peer)
	return true
}

// Lookup returns the entry of peer
func (r *Registry) Lookup(peer address.PeerID) (Entry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.slots[peer]
	return existing.entry, ok
}

// Contains reports whether a link to peer is established
func (r *Registry) Contains(peer address.PeerID) bool {
	_, ok := r.Lookup(peer)
	return ok
}

// HasEndpoint reports whether an established link reaches the listener target
func (r *Registry) HasEndpoint(target address.Target) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.slots {
		if existing.entry.Target == target {
			return true
		}
	}
	return false
}

// Snapshot returns the entries sorted by peer
func (r *Registry) Snapshot() []Entry {
	r.mu.Lock()
	entries := make([]Entry, 0, len(r.slots))
	for _, existing := range r.slots {
		entries = append(entries, existing.entry)
	}
	r.mu.Unlock()

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Peer.Less(entries[j].Peer)
	})
	return entries
}

// Len returns the number of established links
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.slots)
}
