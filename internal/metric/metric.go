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

package metric

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// Metric groups the instruments of a bus node
type Metric struct {
	framesIn         metric.Int64Counter
	framesOut        metric.Int64Counter
	messagesIn       metric.Int64Counter
	messagesOut      metric.Int64Counter
	junkBytes        metric.Int64Counter
	checksumFailures metric.Int64Counter
	connectAttempts  metric.Int64Counter
	bindConflicts    metric.Int64Counter
	duplicates       metric.Int64Counter
	activeGateways   metric.Int64UpDownCounter
}

// NewMetric creates the instruments using the given meter
func NewMetric(meter metric.Meter) (*Metric, error) {
	var instruments Metric
	var err error

	if instruments.framesIn, err = meter.Int64Counter(
		"gateway.frames.in",
		metric.WithDescription("Total number of frames read from links"),
	); err != nil {
		return nil, err
	}

	if instruments.framesOut, err = meter.Int64Counter(
		"gateway.frames.out",
		metric.WithDescription("Total number of frames written to links"),
	); err != nil {
		return nil, err
	}

	if instruments.messagesIn, err = meter.Int64Counter(
		"gateway.messages.in",
		metric.WithDescription("Total number of messages received from links"),
	); err != nil {
		return nil, err
	}

	if instruments.messagesOut, err = meter.Int64Counter(
		"gateway.messages.out",
		metric.WithDescription("Total number of messages forwarded to links"),
	); err != nil {
		return nil, err
	}

	if instruments.junkBytes, err = meter.Int64Counter(
		"gateway.junk.bytes",
		metric.WithDescription("Total number of bytes skipped while resynchronizing"),
		metric.WithUnit("By"),
	); err != nil {
		return nil, err
	}

	if instruments.checksumFailures, err = meter.Int64Counter(
		"gateway.checksum.failures",
		metric.WithDescription("Total number of blocks discarded on checksum mismatch"),
	); err != nil {
		return nil, err
	}

	if instruments.connectAttempts, err = meter.Int64Counter(
		"client.connect.attempts",
		metric.WithDescription("Total number of outgoing connection attempts"),
	); err != nil {
		return nil, err
	}

	if instruments.bindConflicts, err = meter.Int64Counter(
		"server.bind.conflicts",
		metric.WithDescription("Total number of listener bind attempts that found the address in use"),
	); err != nil {
		return nil, err
	}

	if instruments.duplicates, err = meter.Int64Counter(
		"gateway.duplicates",
		metric.WithDescription("Total number of links closed as duplicates"),
	); err != nil {
		return nil, err
	}

	if instruments.activeGateways, err = meter.Int64UpDownCounter(
		"gateway.active",
		metric.WithDescription("Number of established links"),
	); err != nil {
		return nil, err
	}

	return &instruments, nil
}

// Noop returns instruments recording nothing
func Noop() *Metric {
	m, _ := NewMetric(noop.NewMeterProvider().Meter(instrumentationName))
	return m
}

// FramesIn records frames read from peer
func (x *Metric) FramesIn(ctx context.Context, peer string, n int) {
	x.framesIn.Add(ctx, int64(n), peerAttr(peer))
}

// FramesOut records frames written to peer
func (x *Metric) FramesOut(ctx context.Context, peer string, n int) {
	x.framesOut.Add(ctx, int64(n), peerAttr(peer))
}

// MessageIn records a message received from peer
func (x *Metric) MessageIn(ctx context.Context, peer string) {
	x.messagesIn.Add(ctx, 1, peerAttr(peer))
}

// MessageOut records a message forwarded to peer
func (x *Metric) MessageOut(ctx context.Context, peer string) {
	x.messagesOut.Add(ctx, 1, peerAttr(peer))
}

// JunkBytes records bytes skipped on the link to peer
func (x *Metric) JunkBytes(ctx context.Context, peer string, n int) {
	x.junkBytes.Add(ctx, int64(n), peerAttr(peer))
}

// ChecksumFailure records a discarded block
func (x *Metric) ChecksumFailure(ctx context.Context, peer string) {
	x.checksumFailures.Add(ctx, 1, peerAttr(peer))
}

// ConnectAttempt records an outgoing connection attempt to target
func (x *Metric) ConnectAttempt(ctx context.Context, target string) {
	x.connectAttempts.Add(ctx, 1, metric.WithAttributes(attribute.String("target", target)))
}

// BindConflict records a listener bind attempt finding its address in use
func (x *Metric) BindConflict(ctx context.Context, target string) {
	x.bindConflicts.Add(ctx, 1, metric.WithAttributes(attribute.String("target", target)))
}

// Duplicate records a link closed as duplicate
func (x *Metric) Duplicate(ctx context.Context, peer string) {
	x.duplicates.Add(ctx, 1, peerAttr(peer))
}

// GatewayUp records a newly established link
func (x *Metric) GatewayUp(ctx context.Context) {
	x.activeGateways.Add(ctx, 1)
}

// GatewayDown records a terminated link
func (x *Metric) GatewayDown(ctx context.Context) {
	x.activeGateways.Add(ctx, -1)
}

func peerAttr(peer string) metric.AddOption {
	return metric.WithAttributes(attribute.String("peer", peer))
}
