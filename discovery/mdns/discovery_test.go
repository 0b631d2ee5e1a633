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

package mdns

import (
	"context"
	"net"
	"testing"

	"github.com/grandcat/zeroconf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/travisjeffery/go-dynaport"
	"go.uber.org/goleak"

	"github.com/tochemey/gobus/address"
	gerrors "github.com/tochemey/gobus/errors"
	"github.com/tochemey/gobus/log"
	"github.com/tochemey/gobus/message"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var (
	alice = address.NewPeerID("node-1", "alice")
	bob   = address.NewPeerID("node-2", "bob")
)

func TestConfig(t *testing.T) {
	t.Run("With defaults", func(t *testing.T) {
		config := Config{Instance: alice.String(), Port: dynaport.Get(1)[0]}
		config.sanitize()
		assert.Equal(t, DefaultService, config.Service)
		assert.Equal(t, DefaultDomain, config.Domain)
		assert.Equal(t, DefaultBrowseTimeout, config.BrowseTimeout)
		assert.Equal(t, DefaultInterval, config.Interval)
		assert.NoError(t, config.Validate())
	})
	t.Run("With missing instance", func(t *testing.T) {
		config := Config{Port: 4808}
		config.sanitize()
		assert.Error(t, config.Validate())
	})
	t.Run("With invalid port", func(t *testing.T) {
		config := Config{Instance: alice.String()}
		config.sanitize()
		assert.Error(t, config.Validate())
	})
}

func TestDiscovery(t *testing.T) {
	t.Run("With ID assertion", func(t *testing.T) {
		provider := NewDiscovery(Config{}, alice)
		assert.Equal(t, "mdns", provider.ID())
	})
	t.Run("With options", func(t *testing.T) {
		var got []message.Advertisement
		provider := NewDiscovery(Config{}, alice,
			WithLogger(log.DiscardLogger),
			WithSink(func(adv message.Advertisement) { got = append(got, adv) }))
		provider.sink(message.Advertisement{Peer: bob})
		assert.Len(t, got, 1)
	})
	t.Run("With provider not started", func(t *testing.T) {
		provider := NewDiscovery(Config{Instance: alice.String(), Port: 4808}, alice)
		_, err := provider.DiscoverPeers(context.Background())
		assert.ErrorIs(t, err, gerrors.ErrDiscoveryNotStarted)
		assert.ErrorIs(t, provider.Stop(context.Background()), gerrors.ErrDiscoveryNotStarted)
	})
	t.Run("With invalid configuration", func(t *testing.T) {
		provider := NewDiscovery(Config{}, alice)
		assert.Error(t, provider.Start(context.Background()))
	})
	t.Run("With service entries", func(t *testing.T) {
		provider := NewDiscovery(Config{Instance: alice.String(), Port: 4808}, alice)

		entry := zeroconf.NewServiceEntry(bob.String(), DefaultService, DefaultDomain)
		entry.Port = 4809
		entry.Text = []string{"process=bob", "host=node-2"}
		entry.AddrIPv4 = []net.IP{net.ParseIP("192.168.1.20")}
		entry.AddrIPv6 = []net.IP{net.ParseIP("fe80::1")}

		advs := provider.toAdvertisements(entry)
		require.Len(t, advs, 1)
		assert.Equal(t, bob, advs[0].Peer)
		assert.Equal(t, address.NewTarget("192.168.1.20", 4809, address.TCP), advs[0].Target)

		provider.config.IPv6 = true
		advs = provider.toAdvertisements(entry)
		require.Len(t, advs, 1)
		assert.Equal(t, "fe80::1", advs[0].Target.Host)

		// the local process
		self := zeroconf.NewServiceEntry(alice.String(), DefaultService, DefaultDomain)
		self.Port = 4808
		self.Text = []string{"process=alice", "host=node-1"}
		self.AddrIPv4 = []net.IP{net.ParseIP("192.168.1.10")}
		assert.Empty(t, provider.toAdvertisements(self))

		// a foreign service
		foreign := zeroconf.NewServiceEntry("printer", DefaultService, DefaultDomain)
		foreign.Port = 631
		foreign.AddrIPv4 = []net.IP{net.ParseIP("192.168.1.30")}
		assert.Empty(t, provider.toAdvertisements(foreign))
		assert.Empty(t, provider.toAdvertisements(nil))
	})
}
