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

package address

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPeerID(t *testing.T) {
	t.Run("With ordering", func(t *testing.T) {
		alice := NewPeerID("host1", "alice")
		bob := NewPeerID("host1", "bob")
		require.True(t, alice.Less(bob))
		require.False(t, bob.Less(alice))
		require.Zero(t, alice.Compare(alice))
	})
	t.Run("With host used as tie-break", func(t *testing.T) {
		a := NewPeerID("a", "worker")
		b := NewPeerID("b", "worker")
		require.True(t, a.Less(b))
		require.Equal(t, -b.Compare(a), a.Compare(b))
	})
	t.Run("With zero value", func(t *testing.T) {
		require.True(t, PeerID{}.IsZero())
		require.False(t, NewPeerID("h", "p").IsZero())
	})
}

func TestAddress(t *testing.T) {
	peer := NewPeerID("127.0.0.1", "alice")
	addr := New("printer", peer)
	require.Equal(t, peer, addr.Peer())
	require.Equal(t, "printer@alice@127.0.0.1", addr.String())

	parsed, err := Parse(addr.String())
	require.NoError(t, err)
	require.Equal(t, addr, parsed)

	_, err = Parse("broken")
	require.ErrorIs(t, err, ErrInvalidAddress)

	zero, err := Parse("")
	require.NoError(t, err)
	require.True(t, zero.IsZero())
	require.Empty(t, NoSender.String())
}

func TestScope(t *testing.T) {
	local := NewPeerID("h1", "a")
	sameHost := NewPeerID("h1", "b")
	otherHost := NewPeerID("h2", "c")

	assert.True(t, ScopeGlobal.Allows(local, otherHost))
	assert.True(t, ScopeHost.Allows(local, sameHost))
	assert.False(t, ScopeHost.Allows(local, otherHost))
	assert.False(t, ScopeProcess.Allows(local, sameHost))
}

func TestMatchID(t *testing.T) {
	tests := []struct {
		pattern string
		id      string
		match   bool
	}{
		{"Foo.Bar.*", "Foo.Bar.Baz", true},
		{"Foo.Bar.*", "Foo.Qux", false},
		{"Foo.Bar.Baz", "Foo.Bar.Baz", true},
		{"Foo.?ar", "Foo.Bar", true},
		{"*", "Anything.At.All", true},
		{"Remote.Down", "Remote.Duplicate", false},
	}
	for _, tt := range tests {
		t.Run(tt.pattern+"~"+tt.id, func(t *testing.T) {
			require.Equal(t, tt.match, MatchID(tt.pattern, tt.id))
		})
	}
	require.True(t, IsPattern("Foo.*"))
	require.False(t, IsPattern("Foo.Bar"))
	require.NoError(t, ValidateID("Foo.Bar"))
	require.ErrorIs(t, ValidateID("Foo..Bar"), ErrInvalidIdentifier)
	require.ErrorIs(t, ValidateID(" "), ErrInvalidIdentifier)
}

func TestParseTarget(t *testing.T) {
	t.Run("With tcp target", func(t *testing.T) {
		target, err := ParseTarget("127.0.0.1:4808", TCP)
		require.NoError(t, err)
		require.Equal(t, NewTarget("127.0.0.1", 4808, TCP), target)
		require.Equal(t, "127.0.0.1:4808", target.Dial())
		require.Equal(t, "tcp", target.Network())
	})
	t.Run("With invalid tcp target", func(t *testing.T) {
		_, err := ParseTarget("127.0.0.1", TCP)
		require.ErrorIs(t, err, ErrInvalidTarget)
		_, err = ParseTarget("127.0.0.1:70000", TCP)
		require.ErrorIs(t, err, ErrInvalidTarget)
		_, err = ParseTarget("", TCP)
		require.ErrorIs(t, err, ErrInvalidTarget)
	})
	t.Run("With unix path and port", func(t *testing.T) {
		target, err := ParseTarget("/tmp/bus.sock:4808", Unix)
		require.NoError(t, err)
		require.Equal(t, "/tmp/bus.sock", target.Host)
		require.Equal(t, 4808, target.Port)
		require.Equal(t, "/tmp/bus.sock.4808", target.Dial())
		require.Equal(t, "/tmp/bus.sock:4808", target.String())
	})
	t.Run("With unix path only", func(t *testing.T) {
		target, err := ParseTarget("/tmp/bus.sock", Unix)
		require.NoError(t, err)
		require.Zero(t, target.Port)
		require.Equal(t, "/tmp/bus.sock", target.Dial())
		require.False(t, target.IsAbstract())
	})
	t.Run("With abstract unix address", func(t *testing.T) {
		target, err := ParseTarget("=gobus:7", Unix)
		require.NoError(t, err)
		require.True(t, target.IsAbstract())
		require.Equal(t, "@gobus.7", target.Dial())
	})
	t.Run("With transport names", func(t *testing.T) {
		tr, err := ParseTransport("unix")
		require.NoError(t, err)
		require.Equal(t, Unix, tr)
		_, err = ParseTransport("udp")
		require.ErrorIs(t, err, ErrInvalidTarget)
	})
}
