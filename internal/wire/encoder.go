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

// Frame is one encoded frame, kept as its three segments so that a
// non-blocking writer can send them one at a time
type Frame struct {
	Header  []byte
	Block   []byte
	Trailer []byte
}

// Size returns the number of bytes of the frame
func (f Frame) Size() int {
	return len(f.Header) + len(f.Block) + len(f.Trailer)
}

// AppendTo appends the frame bytes to dst
func (f Frame) AppendTo(dst []byte) []byte {
	dst = append(dst, f.Header...)
	dst = append(dst, f.Block...)
	return append(dst, f.Trailer...)
}

// Encoder turns message blocks into frames. It assigns sequence numbers and
// is not safe for concurrent use.
type Encoder struct {
	checksum Checksum
	sequence uint32
}

// NewEncoder creates an Encoder
func NewEncoder(checksum Checksum) *Encoder {
	return &Encoder{checksum: checksum}
}

// Encode frames the blocks of one message
func (e *Encoder) Encode(blocks [][]byte) []Frame {
	frames := make([]Frame, 0, len(blocks))
	for i, block := range blocks {
		trailer := Trailer{
			Sequence: e.sequence,
			Checksum: e.checksum.Compute(block),
		}
		if i == len(blocks)-1 {
			trailer.MessageSize = uint32(len(blocks))
		}
		e.sequence++

		frames = append(frames, Frame{
			Header:  AppendHeader(make([]byte, 0, HeaderSize), Header{Type: Data, Length: uint32(len(block))}),
			Block:   block,
			Trailer: AppendTrailer(make([]byte, 0, TrailerSize), trailer),
		})
	}
	return frames
}

// Control frames a header-only control frame
func (e *Encoder) Control(t FrameType) Frame {
	return Frame{Header: AppendHeader(make([]byte, 0, HeaderSize), Header{Type: t})}
}

// Bytes flattens frames into one buffer
func Bytes(frames []Frame) []byte {
	size := 0
	for _, frame := range frames {
		size += frame.Size()
	}
	out := make([]byte, 0, size)
	for _, frame := range frames {
		out = frame.AppendTo(out)
	}
	return out
}
