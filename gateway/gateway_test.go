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
	"errors"
	"io"
	"net"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/tochemey/gobus/address"
	"github.com/tochemey/gobus/bus"
	gerrors "github.com/tochemey/gobus/errors"
	"github.com/tochemey/gobus/internal/compression"
	"github.com/tochemey/gobus/internal/registry"
	"github.com/tochemey/gobus/internal/wire"
	"github.com/tochemey/gobus/log"
	"github.com/tochemey/gobus/message"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const (
	threaded = "threaded"
	reactive = "reactive"
)

var engines = []string{threaded, reactive}

type recorder struct {
	mu       sync.Mutex
	messages []*message.Envelope
}

func (r *recorder) handle(_ context.Context, env *message.Envelope) {
	r.mu.Lock()
	r.messages = append(r.messages, env)
	r.mu.Unlock()
}

func (r *recorder) all() []*message.Envelope {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*message.Envelope(nil), r.messages...)
}

func (r *recorder) ids() []string {
	var ids []string
	for _, env := range r.all() {
		ids = append(ids, env.ID)
	}
	return ids
}

type testNode struct {
	peer     address.PeerID
	bus      *bus.Bus
	registry *registry.Registry
	engine   Engine
}

func newTestNode(t *testing.T, process, kind string, configure ...func(*Config)) *testNode {
	t.Helper()
	peer := address.NewPeerID("localhost", process)
	n := &testNode{
		peer:     peer,
		bus:      bus.New(peer, log.DiscardLogger),
		registry: registry.New(),
	}

	cfg := Config{
		Bus:      n.bus,
		Registry: n.registry,
		Logger:   log.DiscardLogger,
	}
	for _, fn := range configure {
		fn(&cfg)
	}

	var err error
	switch kind {
	case threaded:
		n.engine, err = NewThreadedEngine(cfg, 2)
	default:
		n.engine, err = NewReactor(cfg)
	}
	require.NoError(t, err)
	return n
}

func (n *testNode) stop(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, n.engine.Close(ctx))
	require.NoError(t, n.bus.Close(ctx))
}

func (n *testNode) connected() []*Gateway {
	var gateways []*Gateway
	for _, g := range n.engine.Gateways() {
		if g.State() == Connected {
			gateways = append(gateways, g)
		}
	}
	return gateways
}

// tcpPair returns both ends of a loopback tcp connection
func tcpPair(t *testing.T) (net.Conn, net.Conn) {
	t.Helper()
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer listener.Close()

	accepted := make(chan net.Conn, 1)
	go func() {
		conn, err := listener.Accept()
		if err != nil {
			close(accepted)
			return
		}
		accepted <- conn
	}()

	client, err := net.Dial("tcp", listener.Addr().String())
	require.NoError(t, err)
	server, ok := <-accepted
	require.True(t, ok)
	return client, server
}

func link(t *testing.T, dialer, acceptor *testNode) (*Gateway, *Gateway) {
	t.Helper()
	client, server := tcpPair(t)
	dialed, err := dialer.engine.Spawn(client, Link{Dialed: true, Target: address.NewTarget("127.0.0.1", 4808, address.TCP)})
	require.NoError(t, err)
	accepted, err := acceptor.engine.Spawn(server, Link{})
	require.NoError(t, err)
	return dialed, accepted
}

func waitConnected(t *testing.T, gateways ...*Gateway) {
	t.Helper()
	require.Eventually(t, func() bool {
		for _, g := range gateways {
			if g.State() != Connected {
				return false
			}
		}
		return true
	}, 5*time.Second, 10*time.Millisecond)
}

func TestGateway(t *testing.T) {
	for _, kind := range engines {
		t.Run(kind, func(t *testing.T) {
			t.Run("With subscription based forwarding", func(t *testing.T) {
				alice := newTestNode(t, "alice", kind)
				bob := newTestNode(t, "bob", kind)

				rec := new(recorder)
				x, err := bob.bus.Spawn("x", rec.handle, "Foo.Bar.*")
				require.NoError(t, err)

				ga, gb := link(t, alice, bob)
				waitConnected(t, ga, gb)

				assert.Equal(t, bob.peer, ga.Remote())
				assert.Equal(t, alice.peer, gb.Remote())
				assert.True(t, ga.Dialed())
				assert.False(t, gb.Dialed())
				assert.Equal(t, []address.Address{x.Address()}, ga.Subscribers("Foo.Bar.Baz"))
				assert.True(t, alice.registry.Contains(bob.peer))
				assert.True(t, bob.registry.Contains(alice.peer))

				sender, err := alice.bus.Spawn("sender", func(context.Context, *message.Envelope) {})
				require.NoError(t, err)
				assert.False(t, ga.WillForward(message.New("Foo.Qux", sender.Address(), nil)))
				require.NoError(t, sender.Publish("Foo.Qux", []byte("no")))
				require.NoError(t, sender.Publish("Foo.Bar.Baz", []byte("yes")))

				require.Eventually(t, func() bool {
					return len(rec.all()) == 1
				}, 5*time.Second, 10*time.Millisecond)

				received := rec.all()[0]
				assert.Equal(t, "Foo.Bar.Baz", received.ID)
				assert.Equal(t, []byte("yes"), received.Payload)
				assert.Equal(t, sender.Address(), received.From)
				assert.EqualValues(t, 1, received.HopCount)
				assert.Equal(t, alice.peer, received.Forwarder.Peer())

				// direct send
				require.NoError(t, sender.Send("Direct", x.Address(), []byte("hi")))
				require.Eventually(t, func() bool {
					return len(rec.all()) == 2
				}, 5*time.Second, 10*time.Millisecond)
				assert.Equal(t, []string{"Foo.Bar.Baz", "Direct"}, rec.ids())

				alice.stop(t)
				bob.stop(t)
			})
			t.Run("With routing table maintenance", func(t *testing.T) {
				alice := newTestNode(t, "alice", kind)
				bob := newTestNode(t, "bob", kind)

				ga, gb := link(t, alice, bob)
				waitConnected(t, ga, gb)

				x, err := bob.bus.Spawn("x", func(context.Context, *message.Envelope) {}, "Late.*")
				require.NoError(t, err)
				require.Eventually(t, func() bool {
					return ga.WillForward(message.New("Late.Arrival", alice.bus.Address(), nil))
				}, 5*time.Second, 10*time.Millisecond)

				require.NoError(t, x.Subscribe("Other.?"))
				require.Eventually(t, func() bool {
					return len(ga.Subscribers("Other.A")) == 1
				}, 5*time.Second, 10*time.Millisecond)

				require.NoError(t, x.Unsubscribe("Late.*"))
				require.Eventually(t, func() bool {
					return len(ga.Subscribers("Late.Arrival")) == 0
				}, 5*time.Second, 10*time.Millisecond)

				require.NoError(t, x.Stop(context.Background()))
				require.Eventually(t, func() bool {
					return len(ga.Subscribers("Other.A")) == 0
				}, 5*time.Second, 10*time.Millisecond)

				alice.stop(t)
				bob.stop(t)
			})
			t.Run("With messages kept in order", func(t *testing.T) {
				alice := newTestNode(t, "alice", kind)
				bob := newTestNode(t, "bob", kind)

				rec := new(recorder)
				_, err := bob.bus.Spawn("x", rec.handle, "Seq.*")
				require.NoError(t, err)

				ga, gb := link(t, alice, bob)
				waitConnected(t, ga, gb)

				sender, err := alice.bus.Spawn("sender", func(context.Context, *message.Envelope) {})
				require.NoError(t, err)

				const count = 200
				for i := range count {
					require.NoError(t, sender.Publish("Seq.Item", []byte(strconv.Itoa(i))))
				}

				require.Eventually(t, func() bool {
					return len(rec.all()) == count
				}, 10*time.Second, 10*time.Millisecond)
				for i, env := range rec.all() {
					assert.Equal(t, strconv.Itoa(i), string(env.Payload))
				}

				alice.stop(t)
				bob.stop(t)
			})
			t.Run("With hop count bounded forwarding", func(t *testing.T) {
				alice := newTestNode(t, "alice", kind)
				bob := newTestNode(t, "bob", kind)
				carol := address.NewPeerID("localhost", "carol")

				_, err := bob.bus.Spawn("x", func(context.Context, *message.Envelope) {}, "Foo.*", message.Advertise)
				require.NoError(t, err)

				ga, gb := link(t, alice, bob)
				waitConnected(t, ga, gb)

				env := message.New("Foo.A", alice.bus.Address(), nil)
				assert.True(t, ga.WillForward(env))
				env.HopCount = 1
				assert.False(t, ga.WillForward(env))

				adv := message.New(message.Advertise, address.New("", carol), nil)
				adv.Forwarder = address.New("", carol)
				for hop := uint8(1); hop <= message.MaxAdvertisementHops; hop++ {
					adv.HopCount = hop
					assert.True(t, ga.WillForward(adv))
				}
				adv.HopCount = message.MaxAdvertisementHops + 1
				assert.False(t, ga.WillForward(adv))

				// never back through the process it came from
				adv.HopCount = 1
				adv.Forwarder = address.New("", bob.peer)
				assert.False(t, ga.WillForward(adv))
				adv.Forwarder = address.New("", carol)
				adv.From = address.New("", bob.peer)
				assert.False(t, ga.WillForward(adv))

				scoped := message.New("Foo.A", alice.bus.Address(), nil).WithScope(address.ScopeProcess)
				assert.False(t, ga.WillForward(scoped))
				assert.True(t, ga.WillForward(scoped.WithScope(address.ScopeHost)))
				assert.False(t, ga.WillForward(message.New(message.Subscriptions, alice.bus.Address(), nil)))

				alice.stop(t)
				bob.stop(t)
			})
			t.Run("With duplicate links resolved", func(t *testing.T) {
				alice := newTestNode(t, "alice", kind)
				bob := newTestNode(t, "bob", kind)

				a1, b1 := link(t, alice, bob)
				b2, a2 := link(t, bob, alice)

				require.Eventually(t, func() bool {
					return len(alice.engine.Gateways()) == 1 && len(bob.engine.Gateways()) == 1
				}, 5*time.Second, 10*time.Millisecond)

				// the link dialed by the lower ranked process survives
				waitConnected(t, a1, b1)
				<-a2.Done()
				<-b2.Done()
				assert.Equal(t, Closed, a2.State())
				assert.Equal(t, Closed, b2.State())

				entry, ok := alice.registry.Lookup(bob.peer)
				require.True(t, ok)
				assert.Equal(t, alice.peer, entry.Initiator)
				assert.Equal(t, 1, bob.registry.Len())

				alice.stop(t)
				bob.stop(t)
			})
			t.Run("With peer down notification", func(t *testing.T) {
				alice := newTestNode(t, "alice", kind)
				bob := newTestNode(t, "bob", kind)

				rec := new(recorder)
				_, err := alice.bus.Spawn("watcher", rec.handle, message.RemoteDown)
				require.NoError(t, err)

				ga, gb := link(t, alice, bob)
				waitConnected(t, ga, gb)

				ctx := context.Background()
				require.NoError(t, gb.Close(ctx))
				select {
				case <-ga.Done():
				case <-time.After(5 * time.Second):
					require.Fail(t, "gateway did not terminate")
				}
				require.ErrorIs(t, gb.Err(), gerrors.ErrGatewayClosed)
				require.ErrorIs(t, ga.Err(), gerrors.ErrPeerAborted)
				assert.Zero(t, alice.registry.Len())
				assert.Zero(t, bob.registry.Len())

				require.Eventually(t, func() bool {
					return len(rec.all()) == 1
				}, 5*time.Second, 10*time.Millisecond)
				var down message.PeerDown
				require.NoError(t, message.Unmarshal(rec.all()[0].Payload, &down))
				assert.Equal(t, bob.peer, down.Peer)
				assert.True(t, down.Dialed)
				assert.Equal(t, address.ScopeProcess, rec.all()[0].Scope)

				alice.stop(t)
				bob.stop(t)
			})
			t.Run("With handshake timeout", func(t *testing.T) {
				alice := newTestNode(t, "alice", kind, func(cfg *Config) {
					cfg.HandshakeTimeout = 200 * time.Millisecond
				})

				client, server := tcpPair(t)
				drained := make(chan struct{})
				go func() {
					_, _ = io.Copy(io.Discard, server)
					close(drained)
				}()

				g, err := alice.engine.Spawn(client, Link{Dialed: true})
				require.NoError(t, err)
				select {
				case <-g.Done():
				case <-time.After(5 * time.Second):
					require.Fail(t, "gateway did not time out")
				}
				require.ErrorIs(t, g.Err(), gerrors.ErrHandshakeTimeout)
				assert.Zero(t, alice.registry.Len())

				<-drained
				require.NoError(t, server.Close())
				alice.stop(t)
			})
			t.Run("With concurrent handshake timeouts", func(t *testing.T) {
				alice := newTestNode(t, "alice", kind, func(cfg *Config) {
					cfg.HandshakeTimeout = 50 * time.Millisecond
				})

				var (
					wg       sync.WaitGroup
					servers  []net.Conn
					gateways []*Gateway
				)
				for range 8 {
					client, server := tcpPair(t)
					servers = append(servers, server)
					wg.Add(1)
					go func() {
						defer wg.Done()
						_, _ = io.Copy(io.Discard, server)
					}()
					g, err := alice.engine.Spawn(client, Link{Dialed: true})
					require.NoError(t, err)
					gateways = append(gateways, g)
				}

				for _, g := range gateways {
					select {
					case <-g.Done():
					case <-time.After(5 * time.Second):
						require.Fail(t, "gateway did not time out")
					}
					require.ErrorIs(t, g.Err(), gerrors.ErrHandshakeTimeout)
				}
				require.Eventually(t, func() bool { return len(alice.engine.Gateways()) == 0 }, 2*time.Second, 10*time.Millisecond)

				wg.Wait()
				for _, server := range servers {
					require.NoError(t, server.Close())
				}
				alice.stop(t)
			})
			t.Run("With connection to self", func(t *testing.T) {
				alice := newTestNode(t, "alice", kind)

				ga, gb := link(t, alice, alice)
				for _, g := range []*Gateway{ga, gb} {
					select {
					case <-g.Done():
					case <-time.After(5 * time.Second):
						require.Fail(t, "gateway did not terminate")
					}
				}
				// whichever end noticed it first aborted the other one
				assert.True(t, errors.Is(ga.Err(), gerrors.ErrSelfConnection) || errors.Is(gb.Err(), gerrors.ErrSelfConnection))
				assert.Zero(t, alice.registry.Len())
				alice.stop(t)
			})
			t.Run("With peer introduction", func(t *testing.T) {
				aliceTarget := address.NewTarget("127.0.0.1", 4808, address.TCP)
				alice := newTestNode(t, "alice", kind, func(cfg *Config) {
					cfg.Listener = func() (address.Target, bool) { return aliceTarget, true }
				})
				bob := newTestNode(t, "bob", kind)
				carol := newTestNode(t, "carol", kind)

				rec := new(recorder)
				_, err := carol.bus.Spawn("manager", rec.handle, message.Advertise)
				require.NoError(t, err)

				ga, gb := link(t, alice, bob)
				waitConnected(t, ga, gb)

				gc, gb2 := link(t, carol, bob)
				waitConnected(t, gc, gb2)

				require.Eventually(t, func() bool {
					return len(rec.all()) == 1
				}, 5*time.Second, 10*time.Millisecond)

				env := rec.all()[0]
				var adv message.Advertisement
				require.NoError(t, message.Unmarshal(env.Payload, &adv))
				assert.Equal(t, alice.peer, adv.Peer)
				assert.Equal(t, aliceTarget, adv.Target)
				assert.Equal(t, address.ScopeProcess, env.Scope)
				assert.EqualValues(t, 1, env.HopCount)

				alice.stop(t)
				bob.stop(t)
				carol.stop(t)
			})
			t.Run("With compression checksum and pings", func(t *testing.T) {
				configure := func(cfg *Config) {
					wrapper, err := compression.NewWrapper(compression.Brotli)
					require.NoError(t, err)
					cfg.Wrapper = wrapper
					cfg.Checksum = wire.ChecksumXXH3
					cfg.PingInterval = 10 * time.Millisecond
				}
				alice := newTestNode(t, "alice", kind, configure)
				bob := newTestNode(t, "bob", kind, configure)

				rec := new(recorder)
				_, err := bob.bus.Spawn("x", rec.handle, "Big.*")
				require.NoError(t, err)

				ga, gb := link(t, alice, bob)
				waitConnected(t, ga, gb)

				payload := make([]byte, 200*1024)
				for i := range payload {
					payload[i] = byte(i % 251)
				}
				require.NoError(t, alice.bus.Publish(message.New("Big.Blob", alice.bus.Address(), payload)))
				require.Eventually(t, func() bool {
					return len(rec.all()) == 1
				}, 5*time.Second, 10*time.Millisecond)
				assert.Equal(t, payload, rec.all()[0].Payload)

				// idle links stay up
				time.Sleep(100 * time.Millisecond)
				assert.Len(t, alice.connected(), 1)
				assert.Len(t, bob.connected(), 1)

				alice.stop(t)
				bob.stop(t)
			})
		})
	}
}

func TestEngineConfig(t *testing.T) {
	_, err := NewThreadedEngine(Config{}, 2)
	require.ErrorIs(t, err, gerrors.ErrInvalidConfig)
	_, err = NewReactor(Config{Registry: registry.New()})
	require.ErrorIs(t, err, gerrors.ErrInvalidConfig)

	r, err := NewReactor(Config{Bus: bus.New(address.NewPeerID("h", "p"), nil), Registry: registry.New()})
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, r.Close(ctx))
	require.NoError(t, r.Close(ctx))

	client, server := tcpPair(t)
	defer server.Close()
	_, err = r.Spawn(client, Link{})
	require.ErrorIs(t, err, gerrors.ErrGatewayClosed)
}

func TestState(t *testing.T) {
	assert.Equal(t, "initializing", Initializing.String())
	assert.Equal(t, "connected", Connected.String())
	assert.Equal(t, "closing", Closing.String())
	assert.Equal(t, "closed", Closed.String())
	assert.Equal(t, "unknown", State(42).String())
}
