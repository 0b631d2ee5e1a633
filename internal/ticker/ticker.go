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

package ticker

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// Ticker delivers ticks at intervals. Ticks are dropped when the receiver
// is not ready, so a slow receiver never accumulates a backlog.
type Ticker struct {
	Ticks     chan time.Time
	intervals time.Duration
	clock     clock.Clock
	mutex     sync.Mutex
	ticking   bool
	stopCh    chan struct{}
	doneCh    chan struct{}
}

// Option configures a Ticker
type Option func(*Ticker)

// WithClock sets the clock driving the ticker
func WithClock(clk clock.Clock) Option {
	return func(t *Ticker) { t.clock = clk }
}

// New creates an instance of Ticker that ticks every intervals
func New(intervals time.Duration, opts ...Option) *Ticker {
	if intervals <= 0 {
		panic("intervals must be greater than zero")
	}
	t := &Ticker{
		Ticks:     make(chan time.Time),
		intervals: intervals,
		clock:     clock.New(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Start the ticker. Ticks are delivered on the ticker's
// channel until Stop is called
func (t *Ticker) Start() {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	if t.ticking {
		return
	}
	t.ticking = true
	t.stopCh = make(chan struct{})
	t.doneCh = make(chan struct{})
	go t.tickingLoop(t.clock.Ticker(t.intervals), t.stopCh, t.doneCh)
}

// Stop stops the ticker and waits for its goroutine to exit.
// No ticks are delivered after Stop returns and before Start is called again.
func (t *Ticker) Stop() {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	if !t.ticking {
		return
	}
	t.ticking = false
	close(t.stopCh)
	<-t.doneCh
}

// Ticking returns true when the ticker is ticking
func (t *Ticker) Ticking() bool {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	return t.ticking
}

func (t *Ticker) tickingLoop(ticker *clock.Ticker, stopCh, doneCh chan struct{}) {
	defer close(doneCh)
	defer ticker.Stop()
	for {
		select {
		case tc := <-ticker.C:
			select {
			case t.Ticks <- tc:
			case <-stopCh:
				return
			default:
			}
		case <-stopCh:
			return
		}
	}
}
