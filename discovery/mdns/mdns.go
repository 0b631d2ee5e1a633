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

// Package mdns announces the server listener of a bus node over multicast
// DNS and browses for the listeners of the other nodes of the local network.
package mdns

import (
	"context"
	"fmt"
	"net"
	"sort"
	"strings"
	"sync"

	goset "github.com/deckarep/golang-set/v2"
	"github.com/grandcat/zeroconf"
	"go.uber.org/atomic"

	"github.com/tochemey/gobus/address"
	gerrors "github.com/tochemey/gobus/errors"
	"github.com/tochemey/gobus/internal/ticker"
	"github.com/tochemey/gobus/log"
	"github.com/tochemey/gobus/message"
)

const (
	txtProcess = "process="
	txtHost    = "host="
)

// Discovery represents the mDNS discovery provider
type Discovery struct {
	config *Config
	peer   address.PeerID
	logger log.Logger
	sink   func(adv message.Advertisement)

	mu      sync.Mutex
	started *atomic.Bool

	// resolver is used to browse for service discovery
	resolver *zeroconf.Resolver
	server   *zeroconf.Server

	ticker *ticker.Ticker
	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewDiscovery creates the mDNS provider of peer
func NewDiscovery(config Config, peer address.PeerID, opts ...Option) *Discovery {
	config.sanitize()
	d := &Discovery{
		config:  &config,
		peer:    peer,
		logger:  log.DiscardLogger,
		sink:    func(message.Advertisement) {},
		started: atomic.NewBool(false),
	}
	for _, opt := range opts {
		opt.Apply(d)
	}
	d.logger = d.logger.With("component", "mdns")
	return d
}

// ID returns the discovery provider id
func (d *Discovery) ID() string {
	return "mdns"
}

// Start registers the service and browses the network every interval. The
// peers found are handed over to the sink.
func (d *Discovery) Start(context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.started.Load() {
		return nil
	}
	if err := d.config.Validate(); err != nil {
		return fmt.Errorf("invalid mDNS configuration: %w", err)
	}

	res, err := zeroconf.NewResolver(nil)
	if err != nil {
		return fmt.Errorf("failed to instantiate the mDNS discovery provider: %w", err)
	}

	text := []string{txtProcess + d.peer.Process, txtHost + d.peer.Host}
	srv, err := zeroconf.Register(d.config.Instance, d.config.Service, d.config.Domain, d.config.Port, text, nil)
	if err != nil {
		return fmt.Errorf("failed to register the mDNS service: %w", err)
	}

	d.resolver = res
	d.server = srv
	d.stopCh = make(chan struct{})
	d.ticker = ticker.New(d.config.Interval)
	d.ticker.Start()
	d.started.Store(true)

	d.wg.Add(1)
	go d.loop()

	d.logger.Infof("registered instance=(%s) of service=(%s)", d.config.Instance, d.config.Service)
	return nil
}

// Stop deregisters the service and stops browsing
func (d *Discovery) Stop(context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.started.Load() {
		return gerrors.ErrDiscoveryNotStarted
	}
	d.started.Store(false)

	d.ticker.Stop()
	close(d.stopCh)
	d.wg.Wait()
	d.server.Shutdown()
	return nil
}

// DiscoverPeers browses the network once and returns the listeners found
func (d *Discovery) DiscoverPeers(ctx context.Context) ([]message.Advertisement, error) {
	if !d.started.Load() {
		return nil, gerrors.ErrDiscoveryNotStarted
	}

	entries := make(chan *zeroconf.ServiceEntry, 100)
	ctx, cancel := context.WithTimeout(ctx, d.config.BrowseTimeout)
	defer cancel()

	if err := d.resolver.Browse(ctx, d.config.Service, d.config.Domain, entries); err != nil {
		return nil, err
	}
	<-ctx.Done()

	found := goset.NewSet[message.Advertisement]()
	for entry := range entries {
		for _, adv := range d.toAdvertisements(entry) {
			found.Add(adv)
		}
	}

	peers := found.ToSlice()
	sort.Slice(peers, func(i, j int) bool {
		if c := peers[i].Peer.Compare(peers[j].Peer); c != 0 {
			return c < 0
		}
		return peers[i].Target.String() < peers[j].Target.String()
	})
	return peers, nil
}

func (d *Discovery) loop() {
	defer d.wg.Done()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-d.stopCh
		cancel()
	}()

	d.browse(ctx)
	for {
		select {
		case <-d.ticker.Ticks:
			d.browse(ctx)
		case <-d.stopCh:
			return
		}
	}
}

func (d *Discovery) browse(ctx context.Context) {
	peers, err := d.DiscoverPeers(ctx)
	if err != nil {
		d.logger.Warnf("failed to browse service=(%s): %v", d.config.Service, err)
		return
	}
	for _, adv := range peers {
		d.sink(adv)
	}
}

// toAdvertisements converts a service entry into the listeners it
// announces. Entries of the local process and of foreign services are
// skipped.
func (d *Discovery) toAdvertisements(entry *zeroconf.ServiceEntry) []message.Advertisement {
	if entry == nil || entry.Port <= 0 {
		return nil
	}

	var process, host string
	for _, txt := range entry.Text {
		switch {
		case strings.HasPrefix(txt, txtProcess):
			process = strings.TrimPrefix(txt, txtProcess)
		case strings.HasPrefix(txt, txtHost):
			host = strings.TrimPrefix(txt, txtHost)
		}
	}
	if process == "" || host == "" {
		return nil
	}

	peer := address.NewPeerID(host, process)
	if peer == d.peer {
		return nil
	}

	addrs := entry.AddrIPv4
	if d.config.IPv6 {
		addrs = entry.AddrIPv6
	}

	advs := make([]message.Advertisement, 0, len(addrs))
	for _, addr := range addrs {
		advs = append(advs, message.Advertisement{
			Peer:   peer,
			Target: address.NewTarget(ipString(addr), entry.Port, address.TCP),
		})
	}
	return advs
}

func ipString(ip net.IP) string {
	if v4 := ip.To4(); v4 != nil {
		return v4.String()
	}
	return ip.String()
}
