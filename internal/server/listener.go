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

// Package server implements the server listener of a bus node.
//
// The Listener binds the configured target, moving on to the next port when
// the bind fails, accepts the incoming connections on behalf of the gateway
// engine and periodically advertises its reachability.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/flowchartsman/retry"
	"go.uber.org/atomic"
	"golang.org/x/net/netutil"

	"github.com/tochemey/gobus/address"
	"github.com/tochemey/gobus/bus"
	gerrors "github.com/tochemey/gobus/errors"
	"github.com/tochemey/gobus/gateway"
	"github.com/tochemey/gobus/internal/metric"
	"github.com/tochemey/gobus/internal/socket"
	"github.com/tochemey/gobus/internal/ticker"
	"github.com/tochemey/gobus/log"
	"github.com/tochemey/gobus/message"
)

const (
	// DefaultMaxAttempts is the number of ports tried before giving up
	DefaultMaxAttempts = 5
	// DefaultAdvertiseInterval is the period of the reachability advertisements
	DefaultAdvertiseInterval = 5 * time.Second

	bindDelay   = 10 * time.Millisecond
	acceptDelay = 50 * time.Millisecond
)

// Config holds the collaborators of a Listener
type Config struct {
	// Bus is the local dispatch runtime. Required.
	Bus *bus.Bus
	// Engine runs the gateways of the accepted connections. Required.
	Engine gateway.Engine
	// Target is the first target to bind. Each failed attempt moves to the next port.
	Target            address.Target
	MaxAttempts       int
	AdvertiseInterval time.Duration
	// MaxConnections caps the accepted connections open at once when positive
	MaxConnections int
	Logger         log.Logger
	Metric         *metric.Metric
}

func (c *Config) sanitize() error {
	if c.Bus == nil || c.Engine == nil || c.Target.Host == "" {
		return gerrors.ErrInvalidConfig
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = DefaultMaxAttempts
	}
	if c.AdvertiseInterval <= 0 {
		c.AdvertiseInterval = DefaultAdvertiseInterval
	}
	if c.Logger == nil {
		c.Logger = log.DiscardLogger
	}
	if c.Metric == nil {
		c.Metric = metric.Noop()
	}
	return nil
}

// Listener accepts the connections of remote processes
type Listener struct {
	cfg    Config
	logger log.Logger

	mu         sync.RWMutex
	listener   net.Listener
	bound      address.Target
	advertised address.Target

	ticker  *ticker.Ticker
	stopCh  chan struct{}
	wg      sync.WaitGroup
	started *atomic.Bool
	closing *atomic.Bool
}

// NewListener creates a Listener
func NewListener(cfg Config) (*Listener, error) {
	if err := cfg.sanitize(); err != nil {
		return nil, err
	}
	return &Listener{
		cfg:     cfg,
		logger:  cfg.Logger.With("component", "server"),
		started: atomic.NewBool(false),
		closing: atomic.NewBool(false),
	}, nil
}

// Start binds the listener, then accepts connections and advertises the
// bound target until Stop is called. ErrBindExhausted is returned when no
// port could be bound.
func (l *Listener) Start(ctx context.Context) error {
	if !l.started.CompareAndSwap(false, true) {
		return nil
	}

	listener, bound, err := l.bind(ctx)
	if err != nil {
		l.started.Store(false)
		l.logger.Errorf("failed to bind target=(%s): %v", l.cfg.Target, err)
		return err
	}

	advertised := bound
	if bound.Transport == address.TCP {
		host, err := socket.AdvertiseHost(bound.Host)
		if err != nil {
			_ = listener.Close()
			l.started.Store(false)
			return err
		}
		advertised.Host = host
	}

	l.mu.Lock()
	l.listener = listener
	l.bound = bound
	l.advertised = advertised
	l.mu.Unlock()

	l.closing.Store(false)
	l.stopCh = make(chan struct{})
	l.ticker = ticker.New(l.cfg.AdvertiseInterval)
	l.ticker.Start()

	l.wg.Add(2)
	go l.accept(listener)
	go l.advertiseLoop()

	l.logger.Infof("listening on target=(%s), advertised as target=(%s)", bound, advertised)
	return nil
}

// Stop closes the listener. The gateways already spawned are left to the engine.
func (l *Listener) Stop(context.Context) error {
	if !l.started.CompareAndSwap(true, false) {
		return nil
	}

	l.closing.Store(true)
	l.mu.Lock()
	err := l.listener.Close()
	l.listener = nil
	l.mu.Unlock()

	l.ticker.Stop()
	close(l.stopCh)
	l.wg.Wait()

	l.mu.Lock()
	l.bound = address.Target{}
	l.advertised = address.Target{}
	l.mu.Unlock()

	l.logger.Info("server listener stopped")
	if socket.IsClosed(err) {
		return nil
	}
	return err
}

// Target returns the advertised target of the listener. It reports false
// while the listener is not bound.
func (l *Listener) Target() (address.Target, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.advertised, l.listener != nil
}

// Bound returns the target the listener is actually bound to
func (l *Listener) Bound() (address.Target, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.bound, l.listener != nil
}

// bind tries the configured port, then the following ones. Every attempt
// failing because another process owns the address is reported as a bind
// conflict.
func (l *Listener) bind(ctx context.Context) (net.Listener, address.Target, error) {
	var (
		listener net.Listener
		bound    address.Target
		attempt  int
	)

	base := l.cfg.Target
	retrier := retry.NewRetrier(l.cfg.MaxAttempts, bindDelay, 10*bindDelay)
	err := retrier.RunContext(ctx, func(ctx context.Context) error {
		target := base
		// an ephemeral tcp port is never incremented
		if base.Port > 0 || base.Transport == address.Unix {
			target = base.WithPort(base.Port + attempt)
		}
		attempt++

		ln, err := socket.Listen(ctx, target)
		if err != nil {
			if socket.IsAddrInUse(err) {
				l.conflict(target)
			}
			l.logger.Warnf("failed to bind target=(%s): %v", target, err)
			return err
		}
		bound = socket.Target(ln, target.Transport, target)
		if l.cfg.MaxConnections > 0 {
			ln = netutil.LimitListener(ln, l.cfg.MaxConnections)
		}
		listener = ln
		return nil
	})
	if err != nil {
		return nil, address.Target{}, fmt.Errorf("%w: %w", gerrors.ErrBindExhausted, err)
	}
	return listener, bound, nil
}

// conflict tells the local process that target is served by another process
func (l *Listener) conflict(target address.Target) {
	if target.Transport == address.TCP {
		switch target.Host {
		case "0.0.0.0", "::", "[::]":
			target.Host = "127.0.0.1"
		}
	}

	l.cfg.Metric.BindConflict(context.Background(), target.String())
	env, err := message.NewBindConflict(l.cfg.Bus.Address(), target)
	if err != nil {
		l.logger.Warnf("failed to build bind conflict notice: %v", err)
		return
	}
	if err := l.cfg.Bus.Publish(env); err != nil {
		l.logger.Warnf("failed to publish bind conflict of target=(%s): %v", target, err)
	}
}

func (l *Listener) accept(listener net.Listener) {
	defer l.wg.Done()
	for {
		conn, err := listener.Accept()
		if err != nil {
			if l.closing.Load() || socket.IsClosed(err) {
				return
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				continue
			}

			l.logger.Warnf("failed to accept connection: %v", err)
			select {
			case <-time.After(acceptDelay):
				continue
			case <-l.stopCh:
				return
			}
		}

		l.logger.Debugf("accepted connection from=(%s)", conn.RemoteAddr())
		if _, err := l.cfg.Engine.Spawn(conn, gateway.Link{}); err != nil {
			l.logger.Errorf("failed to start the gateway of connection from=(%s): %v", conn.RemoteAddr(), err)
		}
	}
}

func (l *Listener) advertiseLoop() {
	defer l.wg.Done()
	l.advertise()
	for {
		select {
		case <-l.ticker.Ticks:
			l.advertise()
		case <-l.stopCh:
			return
		}
	}
}

// advertise broadcasts the reachability of the listener: to the processes
// of the host for the local transport, to every process otherwise
func (l *Listener) advertise() {
	target, ok := l.Target()
	if !ok {
		return
	}

	scope := address.ScopeGlobal
	if target.Transport == address.Unix {
		scope = address.ScopeHost
	}

	adv := message.Advertisement{Peer: l.cfg.Bus.Peer(), Target: target}
	env, err := message.NewAdvertisement(l.cfg.Bus.Address(), scope, adv)
	if err != nil {
		l.logger.Warnf("failed to build advertisement: %v", err)
		return
	}
	if err := l.cfg.Bus.Publish(env); err != nil && !errors.Is(err, gerrors.ErrBusClosed) {
		l.logger.Warnf("failed to publish advertisement: %v", err)
	}
}
