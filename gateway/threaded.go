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
	"net"
	"sync"
	"time"

	"go.uber.org/atomic"

	gerrors "github.com/tochemey/gobus/errors"
	"github.com/tochemey/gobus/internal/compression"
	"github.com/tochemey/gobus/internal/ticker"
	"github.com/tochemey/gobus/internal/wire"
	"github.com/tochemey/gobus/message"
)

// ThreadedEngine runs every gateway with blocking I/O. Each gateway owns a
// small pool of reader goroutines of which exactly one parses at any time,
// and its senders write from their own goroutine.
type ThreadedEngine struct {
	cfg     *Config
	readers int
	pool    *pool
}

var _ Engine = (*ThreadedEngine)(nil)

// NewThreadedEngine creates a ThreadedEngine running readers reader
// goroutines per gateway. At least two readers are used.
func NewThreadedEngine(cfg Config, readers int) (*ThreadedEngine, error) {
	if err := cfg.sanitize(); err != nil {
		return nil, err
	}
	return &ThreadedEngine{
		cfg:     &cfg,
		readers: max(readers, DefaultReaders),
		pool:    newPool(),
	}, nil
}

// Spawn implements Engine
func (e *ThreadedEngine) Spawn(raw net.Conn, link Link) (*Gateway, error) {
	conn, err := compression.Wrap(e.cfg.Wrapper, raw)
	if err != nil {
		_ = raw.Close()
		return nil, err
	}

	g := newGateway(e.cfg, link, e.pool.remove)
	t := newThreadedLink(g, raw, conn, e.readers)
	g.transport = t

	hs, err := g.handshake()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	blocks, err := e.cfg.Codec.Encode(hs)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}

	g.arm()
	if err := e.pool.add(g); err != nil {
		g.disarm()
		_ = conn.Close()
		return nil, err
	}
	t.start(blocks)
	return g, nil
}

// Gateways implements Engine
func (e *ThreadedEngine) Gateways() []*Gateway {
	return e.pool.list()
}

// Close implements Engine
func (e *ThreadedEngine) Close(ctx context.Context) error {
	return e.pool.shutdown(ctx)
}

// threadedLink is the transport of a gateway run by the ThreadedEngine.
//
// Reads are handed over hand to hand: a reader keeps readMu while it reads
// and decodes, then takes handleMu before releasing readMu, so the events are
// consumed in stream order whichever reader got them. Writes take preWriteMu
// to number the frames and writeMu, acquired before preWriteMu is released,
// to transmit them; message serialization happens before either lock.
type threadedLink struct {
	g       *Gateway
	raw     net.Conn
	conn    net.Conn
	readers int

	readMu   sync.Mutex
	handleMu sync.Mutex
	decoder  *wire.Decoder

	preWriteMu sync.Mutex
	writeMu    sync.Mutex
	encoder    *wire.Encoder
	closed     bool
	active     *atomic.Bool

	wg       sync.WaitGroup
	ticker   *ticker.Ticker
	stopPing chan struct{}
	pingDone chan struct{}
}

var _ transport = (*threadedLink)(nil)

func newThreadedLink(g *Gateway, raw, conn net.Conn, readers int) *threadedLink {
	return &threadedLink{
		g:       g,
		raw:     raw,
		conn:    conn,
		readers: readers,
		decoder: wire.NewDecoder(g.cfg.Checksum, wire.WithMaxBlockSize(g.cfg.MaxBlockSize)),
		encoder: wire.NewEncoder(g.cfg.Checksum),
		active:  atomic.NewBool(false),
	}
}

// start sends the subscription exchange before any other frame and starts
// the readers
func (t *threadedLink) start(handshake [][]byte) {
	t.preWriteMu.Lock()
	frames := t.encoder.Encode(handshake)
	t.writeMu.Lock()
	t.preWriteMu.Unlock()

	if interval := t.g.cfg.PingInterval; interval > 0 {
		t.ticker = ticker.New(interval)
		t.stopPing = make(chan struct{})
		t.pingDone = make(chan struct{})
		t.ticker.Start()
		go t.ping()
	}

	for range t.readers {
		t.wg.Add(1)
		go t.read()
	}

	_, err := t.conn.Write(wire.Bytes(frames))
	t.writeMu.Unlock()
	if err != nil {
		t.shutdown(gerrors.NewLinkError(t.raw.RemoteAddr().String(), err), false)
	}
}

func (t *threadedLink) read() {
	defer t.wg.Done()
	buf := make([]byte, readBufferSize)
	for {
		t.readMu.Lock()
		n, err := t.conn.Read(buf)
		var events []wire.Event
		if n > 0 {
			_, _ = t.decoder.Write(buf[:n])
			for event, ok := t.decoder.Next(); ok; event, ok = t.decoder.Next() {
				events = append(events, event)
			}
		}
		t.handleMu.Lock()
		t.readMu.Unlock()

		for _, event := range events {
			t.g.consume(event)
		}
		t.handleMu.Unlock()

		if err != nil {
			t.shutdown(gerrors.NewLinkError(t.g.Remote().String(), err), false)
			return
		}
	}
}

func (t *threadedLink) send(env *message.Envelope) error {
	blocks, err := t.g.cfg.Codec.Encode(env)
	if err != nil {
		return err
	}

	t.preWriteMu.Lock()
	if t.g.closing.Load() {
		t.preWriteMu.Unlock()
		return gerrors.ErrGatewayClosed
	}
	frames := t.encoder.Encode(blocks)
	t.writeMu.Lock()
	t.preWriteMu.Unlock()
	defer t.writeMu.Unlock()

	if t.closed {
		return gerrors.ErrGatewayClosed
	}
	if _, err := t.conn.Write(wire.Bytes(frames)); err != nil {
		t.shutdown(gerrors.NewLinkError(t.g.Remote().String(), err), false)
		return err
	}
	t.active.Store(true)
	t.g.cfg.Metric.FramesOut(context.Background(), t.g.Remote().String(), len(frames))
	return nil
}

func (t *threadedLink) sendControl(frameType wire.FrameType) {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	if t.closed {
		return
	}
	frame := t.encoder.Control(frameType)
	if _, err := t.conn.Write(frame.AppendTo(nil)); err != nil {
		t.g.logger.Warnf("failed to send %s frame: %v", frameType, err)
	}
}

func (t *threadedLink) ping() {
	defer close(t.pingDone)
	for {
		select {
		case <-t.ticker.Ticks:
			if !t.active.Swap(false) && t.g.State() == Connected {
				t.sendControl(wire.Ping)
			}
		case <-t.stopPing:
			return
		}
	}
}

// shutdown tears the link down once. New sends are refused right away while
// the frames already numbered get DrainTimeout to reach the wire before the
// connection is closed.
func (t *threadedLink) shutdown(cause error, abort bool) {
	if !t.g.beginClose() {
		return
	}

	go func() {
		_ = t.raw.SetWriteDeadline(time.Now().Add(t.g.cfg.DrainTimeout))
		if t.ticker != nil {
			t.ticker.Stop()
			close(t.stopPing)
			<-t.pingDone
		}

		t.preWriteMu.Lock()
		t.writeMu.Lock()
		t.preWriteMu.Unlock()
		if abort {
			frame := t.encoder.Control(wire.Abort)
			_, _ = t.conn.Write(frame.AppendTo(nil))
		}
		t.closed = true
		_ = t.raw.Close()
		t.writeMu.Unlock()

		t.wg.Wait()
		_ = t.conn.Close()
		t.g.finalize(cause)
	}()
}
