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

// Package wire implements the framing of the gateway byte stream.
//
// Every frame starts with an 8-byte header carrying a 3-byte signature, the
// frame type and the content length. DATA frames carry one block followed by
// a 16-byte trailer holding the sequence number, the block checksum and the
// message size. The message size is zero on every block but the last one of a
// message, where it equals the number of blocks of that message. Control
// frames (PING, ACK, RETRY, ABORT) are header-only.
package wire

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/zeebo/xxh3"
)

const (
	// HeaderSize is the encoded size of a Header
	HeaderSize = 8
	// TrailerSize is the encoded size of a Trailer
	TrailerSize = 16
	// DefaultMaxBlockSize bounds the content length accepted by the decoder
	DefaultMaxBlockSize = 16 << 20
)

// Signature starts every frame
var Signature = [3]byte{'G', 'B', 'W'}

// FrameType is the kind of frame
type FrameType uint8

const (
	// Ping proves the link is alive
	Ping FrameType = iota + 1
	// Data carries one block of a message
	Data
	// Ack acknowledges a message
	Ack
	// Retry asks the sender to retransmit the last message
	Retry
	// Abort announces a deliberate teardown
	Abort
)

// String implements fmt.Stringer
func (t FrameType) String() string {
	switch t {
	case Ping:
		return "PING"
	case Data:
		return "DATA"
	case Ack:
		return "ACK"
	case Retry:
		return "RETRY"
	case Abort:
		return "ABORT"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", uint8(t))
	}
}

// IsValid reports whether t is a known frame type
func (t FrameType) IsValid() bool {
	return t >= Ping && t <= Abort
}

// IsControl reports whether t is a header-only frame
func (t FrameType) IsControl() bool {
	return t.IsValid() && t != Data
}

// Header is the fixed-size frame prefix
type Header struct {
	Type   FrameType
	Length uint32
}

// Trailer follows every DATA block
type Trailer struct {
	Sequence uint32
	Checksum uint64
	// MessageSize is zero unless the trailer ends a message
	MessageSize uint32
}

// Checksum selects the algorithm used to fill the trailer checksum
type Checksum uint8

const (
	// ChecksumNone disables checksums; the field is sent as zero and ignored
	ChecksumNone Checksum = iota
	// ChecksumSum is the plain sum of the block bytes
	ChecksumSum
	// ChecksumXXH3 is the 64-bit xxh3 hash of the block
	ChecksumXXH3
)

// ParseChecksum converts "none", "sum" or "xxh3" into a Checksum
func ParseChecksum(s string) (Checksum, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return ChecksumNone, nil
	case "sum":
		return ChecksumSum, nil
	case "xxh3":
		return ChecksumXXH3, nil
	default:
		return ChecksumNone, fmt.Errorf("unknown checksum algorithm %q", s)
	}
}

// String implements fmt.Stringer
func (c Checksum) String() string {
	switch c {
	case ChecksumSum:
		return "sum"
	case ChecksumXXH3:
		return "xxh3"
	default:
		return "none"
	}
}

// Compute returns the checksum of block
func (c Checksum) Compute(block []byte) uint64 {
	switch c {
	case ChecksumSum:
		var sum uint64
		for _, b := range block {
			sum += uint64(b)
		}
		return sum
	case ChecksumXXH3:
		return xxh3.Hash(block)
	default:
		return 0
	}
}

// AppendHeader appends the encoded header to dst
func AppendHeader(dst []byte, h Header) []byte {
	dst = append(dst, Signature[:]...)
	dst = append(dst, byte(h.Type))
	return binary.BigEndian.AppendUint32(dst, h.Length)
}

// AppendTrailer appends the encoded trailer to dst
func AppendTrailer(dst []byte, t Trailer) []byte {
	dst = binary.BigEndian.AppendUint32(dst, t.Sequence)
	dst = binary.BigEndian.AppendUint64(dst, t.Checksum)
	return binary.BigEndian.AppendUint32(dst, t.MessageSize)
}

func parseHeader(buf []byte) Header {
	return Header{
		Type:   FrameType(buf[3]),
		Length: binary.BigEndian.Uint32(buf[4:HeaderSize]),
	}
}

func parseTrailer(buf []byte) Trailer {
	return Trailer{
		Sequence:    binary.BigEndian.Uint32(buf[0:4]),
		Checksum:    binary.BigEndian.Uint64(buf[4:12]),
		MessageSize: binary.BigEndian.Uint32(buf[12:TrailerSize]),
	}
}
