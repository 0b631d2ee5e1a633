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

package client

import (
	"context"
	"net"
	"time"

	"github.com/tochemey/gobus/address"
)

// State is the state of a tracked connection
type State int

const (
	// Stopped connections are attempted on the next tick
	Stopped State = iota
	// Connecting connections have a connect attempt in flight
	Connecting
	// Waiting connections wait for their retry time
	Waiting
	// Connected connections handed their socket over to a gateway
	Connected
)

func (s State) String() string {
	switch s {
	case Stopped:
		return "stopped"
	case Connecting:
		return "connecting"
	case Waiting:
		return "waiting"
	case Connected:
		return "connected"
	default:
		return "unknown"
	}
}

type dialResult struct {
	conn net.Conn
	err  error
}

// Connection is a target the Manager tries to connect to
type Connection struct {
	target          address.Target
	state           State
	retryAt         time.Time
	failAt          time.Time
	giveUpAt        time.Time
	attempts        int
	reportedFailure bool

	result chan dialResult
	cancel context.CancelFunc
}

func newConnection(target address.Target, giveUpAt time.Time) *Connection {
	return &Connection{
		target:   target,
		state:    Stopped,
		giveUpAt: giveUpAt,
	}
}

// Target returns the endpoint of the connection
func (c Connection) Target() address.Target { return c.target }

// State returns the state of the connection
func (c Connection) State() State { return c.state }

// RetryAt returns the time of the next attempt of a waiting connection
func (c Connection) RetryAt() time.Time { return c.retryAt }

// GiveUpAt returns the time the connection is dropped if still not
// established. It is zero for static targets.
func (c Connection) GiveUpAt() time.Time { return c.giveUpAt }

// FailAt returns the deadline of the pending connect attempt
func (c Connection) FailAt() time.Time { return c.failAt }

// Attempts returns the number of connect attempts
func (c Connection) Attempts() int { return c.attempts }

func (c *Connection) expired(now time.Time) bool {
	return !c.giveUpAt.IsZero() && !now.Before(c.giveUpAt)
}

func (c *Connection) snapshot() Connection {
	return Connection{
		target:          c.target,
		state:           c.state,
		retryAt:         c.retryAt,
		failAt:          c.failAt,
		giveUpAt:        c.giveUpAt,
		attempts:        c.attempts,
		reportedFailure: c.reportedFailure,
	}
}
