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
	"time"

	"github.com/tochemey/gobus/address"
	gerrors "github.com/tochemey/gobus/errors"
	"github.com/tochemey/gobus/internal/registry"
	"github.com/tochemey/gobus/internal/wire"
	"github.com/tochemey/gobus/message"
)

// hello is the registry snapshot carried by the subscription exchange
type hello struct {
	// Target is the listener endpoint of the sender, zero when it has none
	Target address.Target `cbor:"1,keyasint"`
	// Nonce identifies the link. Only the dialing side sets it.
	Nonce string `cbor:"2,keyasint"`
	// Peers are the established links of the sender
	Peers []registry.Entry `cbor:"3,keyasint"`
}

// arm starts the handshake timer
func (g *Gateway) arm() {
	g.timer.Store(time.AfterFunc(g.cfg.HandshakeTimeout, func() {
		if g.State() == Initializing {
			g.fail(gerrors.ErrHandshakeTimeout, true)
		}
	}))
}

// disarm stops the handshake timer when it is armed
func (g *Gateway) disarm() {
	if timer := g.timer.Load(); timer != nil {
		timer.Stop()
	}
}

// handshake builds the subscription exchange message: the subscriptions of
// every local actor followed by a snapshot of the registry
func (g *Gateway) handshake() (*message.Envelope, error) {
	target, ok := g.cfg.Listener()
	if !ok {
		target = address.Target{}
	}

	snapshot, err := message.Marshal(hello{
		Target: target,
		Nonce:  g.nonce,
		Peers:  g.cfg.Registry.Snapshot(),
	})
	if err != nil {
		return nil, err
	}

	payload, err := message.PackHandshake(&message.Handshake{
		Actors:   g.cfg.Bus.Actors(),
		Snapshot: snapshot,
	})
	if err != nil {
		return nil, err
	}
	return message.New(message.Subscriptions, address.New("", g.local), payload), nil
}

// consume handles one decoder event. Calls are sequential.
func (g *Gateway) consume(event wire.Event) {
	if g.closing.Load() {
		return
	}

	ctx := context.Background()
	peer := g.Remote().String()

	switch event.Kind {
	case wire.EventJunk:
		g.logger.Warnf("resynchronized after skipping %d junk bytes", event.Junk)
		g.cfg.Metric.JunkBytes(ctx, peer, event.Junk)
	case wire.EventChecksum:
		g.logger.Warnf("block sequence=(%d) dropped: %v", event.Sequence, gerrors.ErrChecksumMismatch)
		g.cfg.Metric.ChecksumFailure(ctx, peer)
		g.transport.sendControl(wire.Retry)
	case wire.EventSequenceGap:
		g.logger.Warnf("sequence gap: got=(%d) expected=(%d)", event.Sequence, event.Expected)
	case wire.EventCorrupt:
		g.logger.Warnf("message ending at sequence=(%d) dropped: %v", event.Sequence, gerrors.ErrInvalidFrame)
	case wire.EventControl:
		switch event.Type {
		case wire.Abort:
			g.fail(gerrors.ErrPeerAborted, false)
		case wire.Retry:
			g.logger.Warn("peer requested a retransmission, which is not supported")
		}
	case wire.EventMessage:
		g.cfg.Metric.FramesIn(ctx, peer, len(event.Blocks))
		env, err := g.cfg.Codec.Decode(event.Blocks)
		if err != nil {
			g.logger.Warnf("failed to decode message: %v", err)
			return
		}

		if !g.handshaken {
			if env.ID != message.Subscriptions {
				g.logger.Warnf("message=(%s) dropped: handshake not completed", env.ID)
				return
			}
			g.handshaken = true
			g.onHandshake(env)
			return
		}

		if env.ID == message.Subscriptions {
			g.logger.Warn(gerrors.ErrUnexpectedHandshake)
			return
		}
		g.onMessage(env)
	}
}

func (g *Gateway) onHandshake(env *message.Envelope) {
	remote := env.From.Peer()
	if remote == g.local {
		g.fail(gerrors.ErrSelfConnection, true)
		return
	}

	hs, err := message.UnpackHandshake(env.Payload)
	if err != nil {
		g.fail(err, true)
		return
	}

	var hl hello
	if len(hs.Snapshot) > 0 {
		if err := message.Unmarshal(hs.Snapshot, &hl); err != nil {
			g.fail(err, true)
			return
		}
	}

	g.mu.Lock()
	g.remote = remote
	g.remoteTarget = hl.Target
	g.mu.Unlock()

	entry := registry.Entry{
		Peer:      remote,
		Target:    g.Target(),
		Initiator: remote,
		Nonce:     hl.Nonce,
	}
	if g.dialed {
		entry.Initiator = g.local
		entry.Nonce = g.nonce
	}

	displaced, err := g.cfg.Registry.Claim(entry, g)
	if err != nil {
		g.cfg.Metric.Duplicate(context.Background(), remote.String())
		g.fail(err, true)
		return
	}
	g.registered.Store(true)

	if other, ok := displaced.(*Gateway); ok {
		g.logger.Infof("link=(%s) to peer=(%s) superseded", other.ID(), remote)
		g.cfg.Metric.Duplicate(context.Background(), remote.String())
		other.fail(gerrors.NewErrDuplicatePeer(remote.String()), true)
	}

	for _, actor := range hs.Actors {
		g.table.Set(actor.Address, actor.Patterns...)
	}

	if !g.state.CompareAndSwap(int32(Initializing), int32(Connected)) {
		return
	}
	g.disarm()
	g.cfg.Bus.Attach(g)
	g.cfg.Metric.GatewayUp(context.Background())
	g.logger.Infof("connected to peer=(%s) with %d remote actors", remote, len(hs.Actors))

	g.introduce(remote, hl.Peers)
}

// introduce tells the local process about the peers the remote is linked to
func (g *Gateway) introduce(remote address.PeerID, peers []registry.Entry) {
	from := address.New("", remote)
	for _, entry := range peers {
		if entry.Peer == g.local || entry.Peer == remote || entry.Target.Host == "" {
			continue
		}
		env, err := message.NewAdvertisement(from, address.ScopeProcess, message.Advertisement{
			Peer:   entry.Peer,
			Target: entry.Target,
		})
		if err != nil {
			g.logger.Warnf("failed to introduce peer=(%s): %v", entry.Peer, err)
			continue
		}
		env.HopCount = 1
		g.cfg.Bus.Dispatch(env, g.id)
	}
}

func (g *Gateway) onMessage(env *message.Envelope) {
	remote := g.Remote()
	if env.Scope == address.ScopeProcess {
		g.logger.Warnf("message=(%s) dropped: process scoped message received from peer=(%s)", env.ID, remote)
		return
	}

	switch env.ID {
	case message.Subscribe, message.Unsubscribe:
		var patterns message.Patterns
		if err := message.Unmarshal(env.Payload, &patterns); err != nil {
			g.logger.Warnf("message=(%s) dropped: %v", env.ID, err)
			return
		}
		if env.ID == message.Subscribe {
			g.table.Add(env.From, patterns.Patterns...)
		} else {
			g.table.Remove(env.From, patterns.Patterns...)
		}
	case message.Bye:
		g.table.Drop(env.From)
	}

	g.cfg.Bus.Dispatch(env.Forwarded(address.New("", remote)), g.id)
	g.cfg.Metric.MessageIn(context.Background(), remote.String())
}

// finalize runs once the connection is released
func (g *Gateway) finalize(cause error) {
	ctx := context.Background()
	g.disarm()
	g.cfg.Bus.Detach(g)
	g.table.Reset()

	remote, target := g.Remote(), g.Target()
	if g.registered.Load() {
		g.cfg.Registry.Release(remote, g.id)
		g.cfg.Metric.GatewayDown(ctx)
	}

	var (
		env *message.Envelope
		err error
	)
	from := address.New("", g.local)
	switch {
	case errors.Is(cause, gerrors.ErrDuplicatePeer), errors.Is(cause, gerrors.ErrSelfConnection):
		g.logger.Infof("link to peer=(%s) dropped: %v", remote, cause)
		env, err = message.NewDuplicate(from, message.DuplicateNotice{Peer: remote, Target: target})
	default:
		switch {
		case errors.Is(cause, gerrors.ErrGatewayClosed):
			g.logger.Infof("link to peer=(%s) closed", remote)
		case errors.Is(cause, gerrors.ErrPeerAborted):
			g.logger.Warnf("link to peer=(%s) terminated: %v", remote, cause)
		default:
			g.logger.Errorf("link to peer=(%s) terminated: %v", remote, cause)
		}
		env, err = message.NewPeerDown(from, message.PeerDown{
			Peer:   remote,
			Target: target,
			Reason: cause.Error(),
			Dialed: g.dialed,
		})
	}
	if err != nil {
		g.logger.Warnf("failed to notify the link termination: %v", err)
	} else {
		g.cfg.Bus.Dispatch(env, g.id)
	}

	g.mu.Lock()
	g.cause = cause
	g.mu.Unlock()
	g.state.Store(int32(Closed))
	g.release(g)
	close(g.done)
}
