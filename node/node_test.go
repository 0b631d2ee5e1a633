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

package node

import (
	"context"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/travisjeffery/go-dynaport"
	"go.uber.org/goleak"

	"github.com/tochemey/gobus/address"
	gerrors "github.com/tochemey/gobus/errors"
	"github.com/tochemey/gobus/gateway"
	"github.com/tochemey/gobus/message"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type recorder struct {
	mu  sync.Mutex
	ids []string
}

func (r *recorder) handle(_ context.Context, env *message.Envelope) {
	r.mu.Lock()
	r.ids = append(r.ids, env.ID)
	r.mu.Unlock()
}

func (r *recorder) received() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.ids...)
}

func loopback(port int) string {
	return "127.0.0.1:" + strconv.Itoa(port)
}

func newNode(t *testing.T, process string, opts ...Option) *Node {
	t.Helper()
	opts = append([]Option{
		WithHost("localhost"),
		WithTickInterval(20 * time.Millisecond),
		WithRetryBackoff(50 * time.Millisecond),
		WithAdvertiseInterval(50 * time.Millisecond),
		WithHandshakeTimeout(5 * time.Second),
	}, opts...)
	n, err := New(process, opts...)
	require.NoError(t, err)
	return n
}

func connected(n *Node) int {
	count := 0
	for _, g := range n.Gateways() {
		if g.State() == gateway.Connected {
			count++
		}
	}
	return count
}

// converged reports whether every node holds exactly one connected link to
// each of the others
func converged(nodes ...*Node) bool {
	for _, n := range nodes {
		if len(n.Peers()) != len(nodes)-1 || len(n.Gateways()) != len(nodes)-1 || connected(n) != len(nodes)-1 {
			return false
		}
	}
	return true
}

func TestNode(t *testing.T) {
	ctx := context.Background()

	t.Run("With cross connected peers", func(t *testing.T) {
		ports := dynaport.Get(2)
		alice := newNode(t, "alice",
			WithBindAddr("127.0.0.1", ports[0]),
			WithStaticPeers(loopback(ports[1])))
		bob := newNode(t, "bob",
			WithBindAddr("127.0.0.1", ports[1]),
			WithStaticPeers(loopback(ports[0])),
			WithEngine(EngineReactive, 0))

		rec := new(recorder)
		_, err := bob.Bus().Spawn("x", rec.handle, "Foo.Bar.*")
		require.NoError(t, err)
		sender, err := alice.Bus().Spawn("sender", func(context.Context, *message.Envelope) {})
		require.NoError(t, err)

		require.NoError(t, alice.Start(ctx))
		require.NoError(t, bob.Start(ctx))
		require.NoError(t, alice.Start(ctx))

		require.Eventually(t, func() bool { return converged(alice, bob) }, 10*time.Second, 20*time.Millisecond)
		// the duplicate links do not come back
		time.Sleep(200 * time.Millisecond)
		assert.True(t, converged(alice, bob))
		assert.Equal(t, []address.PeerID{bob.Peer()}, alice.Peers())
		assert.Equal(t, []address.PeerID{alice.Peer()}, bob.Peers())

		require.NoError(t, sender.Publish("Foo.Bar.Baz", []byte("hello")))
		require.NoError(t, sender.Publish("Foo.Qux", []byte("hello")))
		require.Eventually(t, func() bool { return len(rec.received()) == 1 }, 5*time.Second, 10*time.Millisecond)
		time.Sleep(100 * time.Millisecond)
		assert.Equal(t, []string{"Foo.Bar.Baz"}, rec.received())

		require.NoError(t, alice.Stop(ctx))
		require.NoError(t, bob.Stop(ctx))
		require.NoError(t, bob.Stop(ctx))
	})
	t.Run("With bind conflict", func(t *testing.T) {
		port := dynaport.Get(1)[0]
		alice := newNode(t, "alice", WithBindAddr("127.0.0.1", port))
		bob := newNode(t, "bob", WithBindAddr("127.0.0.1", port))

		require.NoError(t, alice.Start(ctx))
		require.NoError(t, bob.Start(ctx))

		target, ok := bob.Target()
		require.True(t, ok)
		assert.Equal(t, port+1, target.Port)

		// bob connects to the process owning the port it could not bind
		require.Eventually(t, func() bool { return converged(alice, bob) }, 10*time.Second, 20*time.Millisecond)
		assert.True(t, bob.Gateways()[0].Dialed())
		assert.False(t, alice.Gateways()[0].Dialed())

		require.NoError(t, bob.Stop(ctx))
		require.NoError(t, alice.Stop(ctx))
	})
	t.Run("With peers learned through a third process", func(t *testing.T) {
		ports := dynaport.Get(3)
		alice := newNode(t, "alice", WithBindAddr("127.0.0.1", ports[0]))
		bob := newNode(t, "bob", WithBindAddr("127.0.0.1", ports[1]))
		carol := newNode(t, "carol",
			WithBindAddr("127.0.0.1", ports[2]),
			WithStaticPeers(loopback(ports[0]), loopback(ports[1])))

		for _, n := range []*Node{alice, bob, carol} {
			require.NoError(t, n.Start(ctx))
		}

		require.Eventually(t, func() bool { return converged(alice, bob, carol) }, 10*time.Second, 20*time.Millisecond)

		// the lower ranked process initiated the link
		for _, g := range alice.Gateways() {
			if g.Remote() == bob.Peer() {
				assert.True(t, g.Dialed())
			}
		}

		for _, n := range []*Node{alice, bob, carol} {
			require.NoError(t, n.Stop(ctx))
		}
	})
	t.Run("With peer down", func(t *testing.T) {
		ports := dynaport.Get(2)
		alice := newNode(t, "alice",
			WithBindAddr("127.0.0.1", ports[0]),
			WithStaticPeers(loopback(ports[1])),
			WithPingInterval(20*time.Millisecond),
			WithChecksum("xxh3"),
			WithCompression("brotli"))
		bob := newNode(t, "bob",
			WithBindAddr("127.0.0.1", ports[1]),
			WithPingInterval(20*time.Millisecond),
			WithChecksum("xxh3"),
			WithCompression("brotli"))

		rec := new(recorder)
		_, err := alice.Bus().Spawn("watcher", rec.handle, message.RemoteDown)
		require.NoError(t, err)

		require.NoError(t, alice.Start(ctx))
		require.NoError(t, bob.Start(ctx))
		require.Eventually(t, func() bool { return converged(alice, bob) }, 10*time.Second, 20*time.Millisecond)

		require.NoError(t, bob.Stop(ctx))
		require.Eventually(t, func() bool { return len(rec.received()) >= 1 }, 5*time.Second, 10*time.Millisecond)
		require.Eventually(t, func() bool { return len(alice.Peers()) == 0 }, 5*time.Second, 10*time.Millisecond)

		// the static peer is dialed again
		target := address.NewTarget("127.0.0.1", ports[1], address.TCP)
		require.Eventually(t, func() bool {
			_, ok := alice.manager.Connection(target)
			return ok
		}, 5*time.Second, 10*time.Millisecond)
		removed, err := alice.RemovePeer(loopback(ports[1]))
		require.NoError(t, err)
		assert.True(t, removed)
		require.NoError(t, alice.Stop(ctx))
	})
	t.Run("With client only process", func(t *testing.T) {
		port := dynaport.Get(1)[0]
		alice := newNode(t, "alice", WithBindAddr("127.0.0.1", port))
		bob := newNode(t, "bob", WithoutListener(), WithStaticPeers(loopback(port)))

		_, ok := bob.Target()
		assert.False(t, ok)

		require.NoError(t, alice.Start(ctx))
		require.NoError(t, bob.Start(ctx))
		require.Eventually(t, func() bool { return converged(alice, bob) }, 10*time.Second, 20*time.Millisecond)

		require.NoError(t, bob.Stop(ctx))
		require.NoError(t, alice.Stop(ctx))
	})
	t.Run("With server listener deactivated", func(t *testing.T) {
		alice := newNode(t, "alice",
			WithBindAddr("203.0.113.1", dynaport.Get(1)[0]),
			WithMaxBindAttempts(1))
		require.NoError(t, alice.Start(ctx))
		_, ok := alice.Target()
		assert.False(t, ok)
		require.NoError(t, alice.AddPeer(loopback(dynaport.Get(1)[0])))
		require.Error(t, alice.AddPeer("localhost"))
		require.NoError(t, alice.Stop(ctx))
		require.ErrorIs(t, alice.Start(ctx), gerrors.ErrBusClosed)
	})
	t.Run("With node never started", func(t *testing.T) {
		alice := newNode(t, "alice", WithBindAddr("127.0.0.1", dynaport.Get(1)[0]))
		require.NoError(t, alice.Stop(ctx))
	})
	t.Run("With invalid config", func(t *testing.T) {
		_, err := New("")
		require.ErrorIs(t, err, gerrors.ErrInvalidConfig)
	})
}
