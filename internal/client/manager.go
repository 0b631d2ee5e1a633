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

// Package client implements the connection manager of a bus node.
//
// The Manager keeps a list of targets to connect to, drives each one through
// a connect-retry state machine on every tick and hands the established
// connections over to the gateway engine. Targets come from the static
// configuration, from the reachability advertisements of other processes and
// from local bind conflicts.
package client

import (
	"context"
	"net"
	"sort"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	goset "github.com/deckarep/golang-set/v2"
	"go.uber.org/atomic"

	"github.com/tochemey/gobus/address"
	"github.com/tochemey/gobus/bus"
	gerrors "github.com/tochemey/gobus/errors"
	"github.com/tochemey/gobus/gateway"
	"github.com/tochemey/gobus/internal/metric"
	"github.com/tochemey/gobus/internal/registry"
	"github.com/tochemey/gobus/internal/socket"
	"github.com/tochemey/gobus/internal/ticker"
	"github.com/tochemey/gobus/log"
	"github.com/tochemey/gobus/message"
)

const (
	// DefaultConnectTimeout bounds a single connect attempt
	DefaultConnectTimeout = 5 * time.Second
	// DefaultRetryBackoff is the wait between two connect attempts
	DefaultRetryBackoff = 2 * time.Second
	// DefaultGiveUpAfter is the time given to an advertised target to accept a connection
	DefaultGiveUpAfter = time.Minute
	// DefaultTickInterval is the period of the state machine
	DefaultTickInterval = 250 * time.Millisecond

	// ActorName is the name of the actor receiving the notifications of the manager
	ActorName = "gateway-client"
)

// DialFunc opens a connection to a target
type DialFunc func(ctx context.Context, target address.Target) (net.Conn, error)

// Config holds the collaborators of a Manager
type Config struct {
	// Bus is the local dispatch runtime. Required.
	Bus *bus.Bus
	// Registry is the process-wide table of established links. Required.
	Registry *registry.Registry
	// Engine runs the gateways of the established connections. Required.
	Engine gateway.Engine
	// Listener returns the endpoint of the local server listener, if any
	Listener func() (address.Target, bool)
	// Dial defaults to socket.Dial
	Dial           DialFunc
	ConnectTimeout time.Duration
	RetryBackoff   time.Duration
	GiveUpAfter    time.Duration
	TickInterval   time.Duration
	// Clock drives the state machine. Defaults to the wall clock.
	Clock  clock.Clock
	Logger log.Logger
	Metric *metric.Metric
}

func (c *Config) sanitize() error {
	if c.Bus == nil || c.Registry == nil || c.Engine == nil {
		return gerrors.ErrInvalidConfig
	}
	if c.Listener == nil {
		c.Listener = func() (address.Target, bool) { return address.Target{}, false }
	}
	if c.Dial == nil {
		c.Dial = socket.Dial
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = DefaultConnectTimeout
	}
	if c.RetryBackoff <= 0 {
		c.RetryBackoff = DefaultRetryBackoff
	}
	if c.GiveUpAfter <= 0 {
		c.GiveUpAfter = DefaultGiveUpAfter
	}
	if c.TickInterval <= 0 {
		c.TickInterval = DefaultTickInterval
	}
	if c.Clock == nil {
		c.Clock = clock.New()
	}
	if c.Logger == nil {
		c.Logger = log.DiscardLogger
	}
	if c.Metric == nil {
		c.Metric = metric.Noop()
	}
	return nil
}

// Manager drives the outgoing connections of a process
type Manager struct {
	cfg    Config
	local  address.PeerID
	logger log.Logger

	mu          sync.Mutex
	connections map[address.Target]*Connection
	static      goset.Set[address.Target]

	wg      sync.WaitGroup
	pid     *bus.PID
	ticker  *ticker.Ticker
	stopCh  chan struct{}
	loopWg  sync.WaitGroup
	started *atomic.Bool
}

// NewManager creates a Manager
func NewManager(cfg Config) (*Manager, error) {
	if err := cfg.sanitize(); err != nil {
		return nil, err
	}
	return &Manager{
		cfg:         cfg,
		local:       cfg.Bus.Peer(),
		logger:      cfg.Logger.With("component", "client"),
		connections: make(map[address.Target]*Connection),
		static:      goset.NewSet[address.Target](),
		started:     atomic.NewBool(false),
	}, nil
}

// Start subscribes the manager to the notifications it acts upon and starts
// ticking the state machine
func (m *Manager) Start(context.Context) error {
	if !m.started.CompareAndSwap(false, true) {
		return nil
	}

	pid, err := m.cfg.Bus.Spawn(ActorName, m.handle,
		message.Advertise,
		message.BindConflict,
		message.RemoteDown,
		message.RemoteDuplicate,
	)
	if err != nil {
		m.started.Store(false)
		return err
	}
	m.pid = pid

	m.ticker = ticker.New(m.cfg.TickInterval, ticker.WithClock(m.cfg.Clock))
	m.stopCh = make(chan struct{})
	m.ticker.Start()
	m.loopWg.Add(1)
	go m.loop()

	m.logger.Info("connection manager started")
	return nil
}

// Stop halts the state machine and abandons the pending connect attempts.
// The established links are owned by the engine and left untouched.
func (m *Manager) Stop(ctx context.Context) error {
	if !m.started.CompareAndSwap(true, false) {
		return nil
	}

	err := m.pid.Stop(ctx)
	m.ticker.Stop()
	close(m.stopCh)
	m.loopWg.Wait()

	m.mu.Lock()
	for target, conn := range m.connections {
		m.abandon(conn)
		delete(m.connections, target)
	}
	m.mu.Unlock()
	m.wg.Wait()

	m.logger.Info("connection manager stopped")
	return err
}

// AddConnection tracks a statically configured target. Static targets are
// never given up on and are tracked again whenever their link goes down.
// It is idempotent and returns the state of the tracked connection.
func (m *Manager) AddConnection(target address.Target) Connection {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.static.Add(target)
	return m.add(target, time.Time{}).snapshot()
}

// RemoveConnection stops tracking target
func (m *Manager) RemoveConnection(target address.Target) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.static.Remove(target)
	conn, ok := m.connections[target]
	if !ok {
		return false
	}
	m.abandon(conn)
	delete(m.connections, target)
	return true
}

// Connection returns a snapshot of the connection to target
func (m *Manager) Connection(target address.Target) (Connection, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	conn, ok := m.connections[target]
	if !ok {
		return Connection{}, false
	}
	return conn.snapshot(), true
}

// Targets returns the tracked targets
func (m *Manager) Targets() []address.Target {
	m.mu.Lock()
	targets := make([]address.Target, 0, len(m.connections))
	for target := range m.connections {
		targets = append(targets, target)
	}
	m.mu.Unlock()

	sort.Slice(targets, func(i, j int) bool {
		return targets[i].String() < targets[j].String()
	})
	return targets
}

// Tick advances the state machine of every tracked connection
func (m *Manager) Tick() {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.cfg.Clock.Now()
	for target, conn := range m.connections {
		if m.step(conn, now) {
			delete(m.connections, target)
		}
	}
}

// addTransient tracks a target learned at runtime
func (m *Manager) addTransient(target address.Target) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.add(target, m.cfg.Clock.Now().Add(m.cfg.GiveUpAfter))
}

func (m *Manager) add(target address.Target, giveUpAt time.Time) *Connection {
	if conn, ok := m.connections[target]; ok {
		// a static declaration wins over an advertisement
		if giveUpAt.IsZero() {
			conn.giveUpAt = time.Time{}
		}
		return conn
	}
	conn := newConnection(target, giveUpAt)
	m.connections[target] = conn
	m.logger.Debugf("tracking target=(%s)", target)
	return conn
}

// step advances conn and reports whether it must be dropped
func (m *Manager) step(conn *Connection, now time.Time) bool {
	switch conn.state {
	case Stopped:
		if m.cfg.Registry.HasEndpoint(conn.target) {
			m.logger.Debugf("target=(%s) already linked", conn.target)
			return true
		}
		m.dial(conn, now)

	case Connecting:
		select {
		case res := <-conn.result:
			conn.cancel()
			conn.cancel = nil
			if res.err != nil {
				if !conn.reportedFailure {
					m.logger.Warnf("failed to connect to target=(%s): %v", conn.target, res.err)
					conn.reportedFailure = true
				}
				conn.state = Waiting
				conn.retryAt = now.Add(m.cfg.RetryBackoff)
				return conn.expired(now)
			}

			conn.state = Connected
			if _, err := m.cfg.Engine.Spawn(res.conn, gateway.Link{Dialed: true, Target: conn.target}); err != nil {
				m.logger.Errorf("failed to start the gateway of target=(%s): %v", conn.target, err)
				conn.state = Waiting
				conn.retryAt = now.Add(m.cfg.RetryBackoff)
				return false
			}
			m.logger.Infof("connected to target=(%s)", conn.target)
			return true
		default:
			if now.Before(conn.failAt) {
				return false
			}
			m.logger.Debugf("connect attempt to target=(%s) timed out", conn.target)
			m.abandon(conn)
			conn.cancel = nil
			conn.state = Waiting
			conn.retryAt = now.Add(m.cfg.RetryBackoff)
			return conn.expired(now)
		}

	case Waiting:
		if conn.expired(now) {
			m.logger.Debugf("giving up on target=(%s)", conn.target)
			return true
		}
		if m.cfg.Registry.HasEndpoint(conn.target) {
			return true
		}
		if !now.Before(conn.retryAt) {
			m.dial(conn, now)
		}
	}
	return false
}

func (m *Manager) dial(conn *Connection, now time.Time) {
	ctx, cancel := context.WithTimeout(context.Background(), m.cfg.ConnectTimeout)
	conn.state = Connecting
	conn.cancel = cancel
	conn.attempts++
	conn.failAt = now.Add(m.cfg.ConnectTimeout)
	// an abandoned attempt keeps the channel of its own result
	conn.result = make(chan dialResult, 1)
	m.cfg.Metric.ConnectAttempt(ctx, conn.target.String())

	result := conn.result
	target := conn.target
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		c, err := m.cfg.Dial(ctx, target)
		result <- dialResult{conn: c, err: err}
	}()
}

// abandon releases the pending attempt of conn
func (m *Manager) abandon(conn *Connection) {
	if conn.state != Connecting {
		return
	}
	conn.cancel()
	result := conn.result
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		if res := <-result; res.conn != nil {
			_ = res.conn.Close()
		}
	}()
}

func (m *Manager) loop() {
	defer m.loopWg.Done()
	for {
		select {
		case <-m.ticker.Ticks:
			m.Tick()
		case <-m.stopCh:
			return
		}
	}
}

// handle processes the notifications of the local process
func (m *Manager) handle(_ context.Context, env *message.Envelope) {
	switch env.ID {
	case message.Advertise:
		var adv message.Advertisement
		if err := message.Unmarshal(env.Payload, &adv); err != nil {
			m.logger.Warnf("invalid advertisement from=(%s): %v", env.From, err)
			return
		}
		m.onAdvertise(adv)

	case message.BindConflict:
		var notice message.BindConflictNotice
		if err := message.Unmarshal(env.Payload, &notice); err != nil {
			m.logger.Warnf("invalid bind conflict notice: %v", err)
			return
		}
		m.logger.Infof("target=(%s) is served by another process, connecting to it", notice.Target)
		m.AddConnection(notice.Target)

	case message.RemoteDown:
		m.restoreStatic()

	case message.RemoteDuplicate:
		var dup message.DuplicateNotice
		if err := message.Unmarshal(env.Payload, &dup); err != nil {
			m.logger.Warnf("invalid duplicate notice: %v", err)
			return
		}
		m.dropTransient(dup.Target)
	}
}

// onAdvertise applies the rank rule: the process connects unless it has a
// listener of the same transport and ranks higher than the advertiser, in
// which case the advertiser connects in.
func (m *Manager) onAdvertise(adv message.Advertisement) {
	if adv.Peer == m.local || adv.Target.Host == "" {
		return
	}
	if m.cfg.Registry.Contains(adv.Peer) || m.cfg.Registry.HasEndpoint(adv.Target) {
		return
	}
	if !m.ShouldConnect(adv) {
		m.logger.Debugf("waiting for peer=(%s) to connect", adv.Peer)
		return
	}
	m.addTransient(adv.Target)
}

// ShouldConnect reports whether the local process must initiate the link to
// the advertiser
func (m *Manager) ShouldConnect(adv message.Advertisement) bool {
	local, ok := m.cfg.Listener()
	if !ok || local.Transport != adv.Target.Transport {
		return true
	}
	return m.local.Less(adv.Peer)
}

// restoreStatic tracks again the static targets no established link reaches
func (m *Manager) restoreStatic() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.static.Each(func(target address.Target) bool {
		if !m.cfg.Registry.HasEndpoint(target) {
			m.add(target, time.Time{})
		}
		return false
	})
}

func (m *Manager) dropTransient(target address.Target) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.static.Contains(target) {
		return
	}
	if conn, ok := m.connections[target]; ok {
		m.abandon(conn)
		delete(m.connections, target)
	}
}
