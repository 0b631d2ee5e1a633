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

// Package subscription holds the routing table a gateway keeps about the
// actors living on the other side of its link.
package subscription

import (
	"sort"
	"sync"

	goset "github.com/deckarep/golang-set/v2"

	"github.com/tochemey/gobus/address"
)

// Table maps every known remote actor to the set of message identifier
// patterns it subscribed to. It is safe for concurrent use.
type Table struct {
	mu      sync.RWMutex
	entries map[address.Address]goset.Set[string]
}

// NewTable creates an empty Table
func NewTable() *Table {
	return &Table{entries: make(map[address.Address]goset.Set[string])}
}

// Set replaces the patterns of actor, creating its entry when needed
func (t *Table) Set(actor address.Address, patterns ...string) {
	t.mu.Lock()
	t.entries[actor] = goset.NewThreadUnsafeSet(patterns...)
	t.mu.Unlock()
}

// Add adds patterns to actor, creating its entry when needed
func (t *Table) Add(actor address.Address, patterns ...string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	set, ok := t.entries[actor]
	if !ok {
		t.entries[actor] = goset.NewThreadUnsafeSet(patterns...)
		return
	}
	set.Append(patterns...)
}

// Remove drops patterns from actor. The entry itself is kept so that the
// actor stays addressable.
func (t *Table) Remove(actor address.Address, patterns ...string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if set, ok := t.entries[actor]; ok {
		set.RemoveAll(patterns...)
	}
}

// Drop removes the entry of actor
func (t *Table) Drop(actor address.Address) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.entries[actor]
	delete(t.entries, actor)
	return ok
}

// Has reports whether actor is known
func (t *Table) Has(actor address.Address) bool {
	t.mu.RLock()
	_, ok := t.entries[actor]
	t.mu.RUnlock()
	return ok
}

// Match reports whether some actor subscribed to a pattern matching id
func (t *Table) Match(id string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for _, set := range t.entries {
		if matchAny(set, id) {
			return true
		}
	}
	return false
}

// Subscribers returns the actors with a pattern matching id, sorted by address
func (t *Table) Subscribers(id string) []address.Address {
	t.mu.RLock()
	actors := make([]address.Address, 0, len(t.entries))
	for actor, set := range t.entries {
		if matchAny(set, id) {
			actors = append(actors, actor)
		}
	}
	t.mu.RUnlock()

	sort.Slice(actors, func(i, j int) bool {
		return actors[i].String() < actors[j].String()
	})
	return actors
}

// Patterns returns the sorted patterns of actor
func (t *Table) Patterns(actor address.Address) []string {
	t.mu.RLock()
	set, ok := t.entries[actor]
	var patterns []string
	if ok {
		patterns = set.ToSlice()
	}
	t.mu.RUnlock()
	sort.Strings(patterns)
	return patterns
}

// Len returns the number of known actors
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}

// Reset removes every entry
func (t *Table) Reset() {
	t.mu.Lock()
	t.entries = make(map[address.Address]goset.Set[string])
	t.mu.Unlock()
}

func matchAny(patterns goset.Set[string], id string) bool {
	if patterns.Contains(id) {
		return true
	}
	matched := false
	patterns.Each(func(pattern string) bool {
		if address.IsPattern(pattern) && address.MatchID(pattern, id) {
			matched = true
			return true
		}
		return false
	})
	return matched
}
