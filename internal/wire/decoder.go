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

package wire

import (
	"bytes"
)

// EventKind is the kind of event produced by the Decoder
type EventKind uint8

const (
	// EventMessage carries the blocks of a complete message
	EventMessage EventKind = iota + 1
	// EventControl carries a control frame type
	EventControl
	// EventJunk reports bytes skipped to resynchronize
	EventJunk
	// EventChecksum reports a block discarded on checksum mismatch
	EventChecksum
	// EventSequenceGap reports a trailer sequence not following the previous one
	EventSequenceGap
	// EventCorrupt reports a message whose block count does not match its trailer
	EventCorrupt
)

// Event is produced by the Decoder
type Event struct {
	Kind EventKind
	// Type is set for EventControl
	Type FrameType
	// Blocks is set for EventMessage
	Blocks [][]byte
	// Junk is set for EventJunk
	Junk int
	// Sequence is the offending sequence for EventChecksum and EventSequenceGap
	Sequence uint32
	// Expected is the awaited sequence for EventSequenceGap
	Expected uint32
}

type readState uint8

const (
	readHeader readState = iota
	readBlock
	readTrailer
)

// Decoder is an incremental frame parser. Bytes are handed over with Write in
// any chunking; Next returns the parsed events in stream order. A Decoder is
// not safe for concurrent use.
type Decoder struct {
	checksum     Checksum
	maxBlockSize uint32

	buf    []byte
	state  readState
	header Header
	block  []byte
	blocks [][]byte

	junk     int
	discard  bool
	sequence uint32
	synced   bool
	pending  []Event
}

// DecoderOption configures a Decoder
type DecoderOption func(*Decoder)

// WithMaxBlockSize bounds the accepted content length
func WithMaxBlockSize(size uint32) DecoderOption {
	return func(d *Decoder) { d.maxBlockSize = size }
}

// NewDecoder creates a Decoder verifying checksums with the given algorithm
func NewDecoder(checksum Checksum, opts ...DecoderOption) *Decoder {
	d := &Decoder{
		checksum:     checksum,
		maxBlockSize: DefaultMaxBlockSize,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Write appends stream bytes to the decoder
func (d *Decoder) Write(p []byte) (int, error) {
	d.buf = append(d.buf, p...)
	return len(p), nil
}

// Buffered returns the number of bytes not parsed yet
func (d *Decoder) Buffered() int {
	return len(d.buf)
}

// Next returns the next event. It returns false when more bytes are needed.
func (d *Decoder) Next() (Event, bool) {
	for len(d.pending) == 0 {
		if !d.step() {
			d.compact()
			return Event{}, false
		}
	}
	event := d.pending[0]
	d.pending = d.pending[1:]
	return event, true
}

// step parses at most one frame segment and reports whether progress was made
func (d *Decoder) step() bool {
	switch d.state {
	case readHeader:
		return d.stepHeader()
	case readBlock:
		if uint32(len(d.buf)) < d.header.Length {
			return false
		}
		d.block = append([]byte(nil), d.buf[:d.header.Length]...)
		d.buf = d.buf[d.header.Length:]
		d.state = readTrailer
		return true
	default:
		if len(d.buf) < TrailerSize {
			return false
		}
		trailer := parseTrailer(d.buf)
		d.buf = d.buf[TrailerSize:]
		d.state = readHeader
		d.endBlock(trailer)
		return true
	}
}

func (d *Decoder) stepHeader() bool {
	if len(d.buf) == 0 {
		return false
	}

	prefix := min(len(d.buf), len(Signature))
	if !bytes.Equal(d.buf[:prefix], Signature[:prefix]) {
		d.resync()
		return true
	}
	if len(d.buf) < HeaderSize {
		return false
	}

	header := parseHeader(d.buf)
	if !header.Type.IsValid() ||
		(header.Type.IsControl() && header.Length != 0) ||
		header.Length > d.maxBlockSize {
		d.resync()
		return true
	}

	d.buf = d.buf[HeaderSize:]
	if d.junk > 0 {
		d.pending = append(d.pending, Event{Kind: EventJunk, Junk: d.junk})
		d.junk = 0
	}

	if header.Type.IsControl() {
		d.pending = append(d.pending, Event{Kind: EventControl, Type: header.Type})
		return true
	}

	d.header = header
	d.state = readBlock
	return true
}

// resync drops bytes up to the next candidate signature start
func (d *Decoder) resync() {
	idx := bytes.IndexByte(d.buf[1:], Signature[0])
	if idx < 0 {
		d.junk += len(d.buf)
		d.buf = d.buf[:0]
		return
	}
	d.junk += idx + 1
	d.buf = d.buf[idx+1:]
}

func (d *Decoder) endBlock(trailer Trailer) {
	if d.synced && trailer.Sequence != d.sequence {
		d.pending = append(d.pending, Event{
			Kind:     EventSequenceGap,
			Sequence: trailer.Sequence,
			Expected: d.sequence,
		})
	}
	d.synced = true
	d.sequence = trailer.Sequence + 1

	if d.checksum != ChecksumNone && d.checksum.Compute(d.block) != trailer.Checksum {
		d.pending = append(d.pending, Event{Kind: EventChecksum, Sequence: trailer.Sequence})
		d.blocks = nil
		d.block = nil
		d.discard = trailer.MessageSize == 0
		return
	}

	// remaining blocks of a message that already failed its checksum
	if d.discard {
		d.block = nil
		d.discard = trailer.MessageSize == 0
		return
	}

	d.blocks = append(d.blocks, d.block)
	d.block = nil
	if trailer.MessageSize == 0 {
		return
	}

	blocks := d.blocks
	d.blocks = nil
	if int(trailer.MessageSize) != len(blocks) {
		d.pending = append(d.pending, Event{Kind: EventCorrupt, Sequence: trailer.Sequence})
		return
	}
	d.pending = append(d.pending, Event{Kind: EventMessage, Blocks: blocks})
}

// compact releases the buffer once fully consumed
func (d *Decoder) compact() {
	if len(d.buf) == 0 {
		d.buf = nil
	}
}
