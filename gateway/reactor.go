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
	"go.uber.org/multierr"

	gerrors "github.com/tochemey/gobus/errors"
	"github.com/tochemey/gobus/internal/compression"
	"github.com/tochemey/gobus/internal/queue"
	"github.com/tochemey/gobus/internal/ticker"
	"github.com/tochemey/gobus/internal/wire"
	"github.com/tochemey/gobus/message"
)

type eventKind uint8

const (
	eventAttach eventKind = iota
	eventRead
	eventWritable
	eventSend
	eventControl
	eventClose
	eventTick
)

// event is a unit of work of the reactor loop
type event struct {
	kind   eventKind
	link   *reactorLink
	data   []byte
	blocks [][]byte
	frame  wire.FrameType
	err    error
	abort  bool
}

type writeState uint8

const (
	writeIdle writeState = iota
	writeHeader
	writeBlock
	writeTrailer
)

// Reactor services every gateway from a single event loop. Connections are
// read and written by pump goroutines that only move bytes: the parsing,
// the protocol and the write scheduling all happen on the loop, one segment
// at a time, so that the loop never blocks on a connection.
type Reactor struct {
	cfg   *Config
	pool  *pool
	inbox *queue.Queue[event]

	// owned by the loop
	links map[string]*reactorLink

	ticker   *ticker.Ticker
	stopTick chan struct{}
	tickDone chan struct{}

	closed *atomic.Bool
	done   chan struct{}
}

var _ Engine = (*Reactor)(nil)

// NewReactor creates a Reactor and starts its loop
func NewReactor(cfg Config) (*Reactor, error) {
	if err := cfg.sanitize(); err != nil {
		return nil, err
	}

	r := &Reactor{
		cfg:    &cfg,
		pool:   newPool(),
		inbox:  queue.New[event](),
		links:  make(map[string]*reactorLink),
		closed: atomic.NewBool(false),
		done:   make(chan struct{}),
	}
	go r.loop()

	if cfg.PingInterval > 0 {
		r.ticker = ticker.New(cfg.PingInterval)
		r.stopTick = make(chan struct{})
		r.tickDone = make(chan struct{})
		r.ticker.Start()
		go r.tick()
	}
	return r, nil
}

// Spawn implements Engine
func (r *Reactor) Spawn(raw net.Conn, link Link) (*Gateway, error) {
	if r.closed.Load() {
		_ = raw.Close()
		return nil, gerrors.ErrGatewayClosed
	}

	conn, err := compression.Wrap(r.cfg.Wrapper, raw)
	if err != nil {
		_ = raw.Close()
		return nil, err
	}

	g := newGateway(r.cfg, link, r.pool.remove)
	l := &reactorLink{
		reactor:  r,
		g:        g,
		raw:      raw,
		conn:     conn,
		decoder:  wire.NewDecoder(r.cfg.Checksum, wire.WithMaxBlockSize(r.cfg.MaxBlockSize)),
		encoder:  wire.NewEncoder(r.cfg.Checksum),
		segments: make(chan []byte, 1),
	}
	g.transport = l

	hs, err := g.handshake()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	blocks, err := r.cfg.Codec.Encode(hs)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}

	g.arm()
	if err := r.pool.add(g); err != nil {
		g.disarm()
		_ = conn.Close()
		return nil, err
	}
	if !r.inbox.Push(event{kind: eventAttach, link: l, blocks: blocks}) {
		g.disarm()
		r.pool.remove(g)
		_ = conn.Close()
		return nil, gerrors.ErrGatewayClosed
	}
	return g, nil
}

// Gateways implements Engine
func (r *Reactor) Gateways() []*Gateway {
	return r.pool.list()
}

// Close implements Engine. The gateways are shut down before the loop stops.
func (r *Reactor) Close(ctx context.Context) error {
	if !r.closed.CompareAndSwap(false, true) {
		return nil
	}

	err := r.pool.shutdown(ctx)
	if r.ticker != nil {
		r.ticker.Stop()
		close(r.stopTick)
		<-r.tickDone
	}

	r.inbox.Close()
	select {
	case <-r.done:
	case <-ctx.Done():
		err = multierr.Append(err, ctx.Err())
	}
	return err
}

func (r *Reactor) loop() {
	defer close(r.done)
	for {
		ev, ok := r.inbox.Wait()
		if !ok {
			return
		}
		r.handle(ev)
	}
}

func (r *Reactor) tick() {
	defer close(r.tickDone)
	for {
		select {
		case <-r.ticker.Ticks:
			r.inbox.Push(event{kind: eventTick})
		case <-r.stopTick:
			return
		}
	}
}

func (r *Reactor) handle(ev event) {
	l := ev.link
	switch ev.kind {
	case eventAttach:
		r.links[l.g.ID()] = l
		l.pumps.Add(2)
		go l.readPump()
		go l.writePump()
		l.enqueue(l.encoder.Encode(ev.blocks)...)
		l.advance()

	case eventRead:
		if l.closing {
			return
		}
		if len(ev.data) > 0 {
			_, _ = l.decoder.Write(ev.data)
			for decoded, ok := l.decoder.Next(); ok; decoded, ok = l.decoder.Next() {
				l.g.consume(decoded)
			}
		}
		if ev.err != nil {
			l.shutdown(gerrors.NewLinkError(l.g.Remote().String(), ev.err), false)
		}

	case eventWritable:
		l.writing = false
		if ev.err != nil {
			l.failed = true
			l.shutdown(gerrors.NewLinkError(l.g.Remote().String(), ev.err), false)
		}
		l.advance()

	case eventSend:
		if l.closing || l.finished {
			return
		}
		frames := l.encoder.Encode(ev.blocks)
		l.enqueue(frames...)
		l.active = true
		r.cfg.Metric.FramesOut(context.Background(), l.g.Remote().String(), len(frames))
		l.advance()

	case eventControl:
		if l.closing || l.finished {
			return
		}
		l.enqueue(l.encoder.Control(ev.frame))
		l.advance()

	case eventClose:
		if l.closing {
			return
		}
		l.closing = true
		l.cause = ev.err
		_ = l.raw.SetWriteDeadline(time.Now().Add(r.cfg.DrainTimeout))
		if ev.abort {
			l.enqueue(l.encoder.Control(wire.Abort))
		}
		l.advance()

	case eventTick:
		for _, link := range r.links {
			if link.closing || link.g.State() != Connected {
				continue
			}
			if !link.active {
				link.enqueue(link.encoder.Control(wire.Ping))
				link.advance()
			}
			link.active = false
		}
	}
}

// reactorLink is the transport of a gateway run by the Reactor. Apart from
// the pumps, its fields are owned by the loop.
type reactorLink struct {
	reactor *Reactor
	g       *Gateway
	raw     net.Conn
	conn    net.Conn

	decoder *wire.Decoder
	encoder *wire.Encoder

	frames   []wire.Frame
	current  wire.Frame
	state    writeState
	writing  bool
	active   bool
	failed   bool
	closing  bool
	finished bool
	cause    error

	segments chan []byte
	pumps    sync.WaitGroup
}

var _ transport = (*reactorLink)(nil)

func (l *reactorLink) send(env *message.Envelope) error {
	if l.g.closing.Load() {
		return gerrors.ErrGatewayClosed
	}
	blocks, err := l.g.cfg.Codec.Encode(env)
	if err != nil {
		return err
	}
	if !l.reactor.inbox.Push(event{kind: eventSend, link: l, blocks: blocks}) {
		return gerrors.ErrGatewayClosed
	}
	return nil
}

func (l *reactorLink) sendControl(frameType wire.FrameType) {
	l.reactor.inbox.Push(event{kind: eventControl, link: l, frame: frameType})
}

func (l *reactorLink) shutdown(cause error, abort bool) {
	if !l.g.beginClose() {
		return
	}
	if l.reactor.inbox.Push(event{kind: eventClose, link: l, err: cause, abort: abort}) {
		return
	}

	// the loop is gone
	close(l.segments)
	_ = l.raw.Close()
	go l.release(cause)
}

func (l *reactorLink) enqueue(frames ...wire.Frame) {
	l.frames = append(l.frames, frames...)
}

// advance hands the next segment to the write pump once the previous one
// has been written
func (l *reactorLink) advance() {
	for !l.writing {
		if l.failed {
			l.frames = nil
			l.state = writeIdle
		}

		var segment []byte
		switch l.state {
		case writeIdle:
			if len(l.frames) == 0 {
				l.frames = nil
				if l.closing {
					l.finish()
				}
				return
			}
			l.current = l.frames[0]
			l.frames = l.frames[1:]
			l.state = writeHeader
			segment = l.current.Header
		case writeHeader:
			l.state = writeBlock
			segment = l.current.Block
		case writeBlock:
			l.state = writeTrailer
			segment = l.current.Trailer
		case writeTrailer:
			l.state = writeIdle
			continue
		}

		if len(segment) == 0 {
			continue
		}
		l.writing = true
		l.segments <- segment
	}
}

// finish closes the connection once the writes are drained
func (l *reactorLink) finish() {
	if l.finished {
		return
	}
	l.finished = true
	delete(l.reactor.links, l.g.ID())
	close(l.segments)
	_ = l.raw.Close()
	go l.release(l.cause)
}

func (l *reactorLink) release(cause error) {
	l.pumps.Wait()
	_ = l.conn.Close()
	l.g.finalize(cause)
}

func (l *reactorLink) readPump() {
	defer l.pumps.Done()
	buf := make([]byte, readBufferSize)
	for {
		n, err := l.conn.Read(buf)
		if n > 0 {
			data := append([]byte(nil), buf[:n]...)
			if !l.reactor.inbox.Push(event{kind: eventRead, link: l, data: data}) {
				return
			}
		}
		if err != nil {
			l.reactor.inbox.Push(event{kind: eventRead, link: l, err: err})
			return
		}
	}
}

func (l *reactorLink) writePump() {
	defer l.pumps.Done()
	for segment := range l.segments {
		_, err := l.conn.Write(segment)
		l.reactor.inbox.Push(event{kind: eventWritable, link: l, err: err})
	}
}
