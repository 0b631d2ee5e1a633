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

package message

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/tochemey/gobus/address"
	gerrors "github.com/tochemey/gobus/errors"
)

// DefaultMaxBlockSize is the largest block the codec produces by default
const DefaultMaxBlockSize = 64 * 1024

var (
	cborEncOpts = cbor.EncOptions{
		Sort:        cbor.SortNone,
		IndefLength: cbor.IndefLengthForbidden,
	}
	cborDecOpts = cbor.DecOptions{
		MaxNestedLevels: 16,
		IndefLength:     cbor.IndefLengthForbidden,
	}

	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	if encMode, err = cborEncOpts.EncMode(); err != nil {
		panic(err)
	}
	if decMode, err = cborDecOpts.DecMode(); err != nil {
		panic(err)
	}
}

// Codec converts an envelope to and from an ordered sequence of blocks
type Codec interface {
	// Encode splits the envelope into one or more blocks
	Encode(env *Envelope) ([][]byte, error)
	// Decode rebuilds the envelope from its blocks
	Decode(blocks [][]byte) (*Envelope, error)
}

// header is the first block of every encoded envelope
type header struct {
	ID         string          `cbor:"1,keyasint"`
	From       address.Address `cbor:"2,keyasint"`
	To         address.Address `cbor:"3,keyasint"`
	Scope      address.Scope   `cbor:"4,keyasint"`
	HopCount   uint8           `cbor:"5,keyasint"`
	Forwarder  address.Address `cbor:"6,keyasint"`
	PayloadLen int             `cbor:"7,keyasint"`
}

// BlockCodec is the default Codec. The first block holds the CBOR encoded
// envelope header; the payload follows split into blocks of at most
// maxBlockSize bytes.
type BlockCodec struct {
	maxBlockSize int
}

var _ Codec = (*BlockCodec)(nil)

// NewBlockCodec creates a BlockCodec. A non-positive size selects DefaultMaxBlockSize.
func NewBlockCodec(maxBlockSize int) *BlockCodec {
	if maxBlockSize <= 0 {
		maxBlockSize = DefaultMaxBlockSize
	}
	return &BlockCodec{maxBlockSize: maxBlockSize}
}

// MaxBlockSize returns the largest payload block produced
func (c *BlockCodec) MaxBlockSize() int {
	return c.maxBlockSize
}

// Encode implements Codec
func (c *BlockCodec) Encode(env *Envelope) ([][]byte, error) {
	if env == nil || env.ID == "" {
		return nil, gerrors.ErrInvalidMessage
	}

	head, err := encMode.Marshal(header{
		ID:         env.ID,
		From:       env.From,
		To:         env.To,
		Scope:      env.Scope,
		HopCount:   env.HopCount,
		Forwarder:  env.Forwarder,
		PayloadLen: len(env.Payload),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode envelope header: %w", err)
	}

	blocks := make([][]byte, 0, 1+(len(env.Payload)+c.maxBlockSize-1)/c.maxBlockSize)
	blocks = append(blocks, head)
	for offset := 0; offset < len(env.Payload); offset += c.maxBlockSize {
		end := min(offset+c.maxBlockSize, len(env.Payload))
		blocks = append(blocks, env.Payload[offset:end])
	}
	return blocks, nil
}

// Decode implements Codec
func (c *BlockCodec) Decode(blocks [][]byte) (*Envelope, error) {
	if len(blocks) == 0 {
		return nil, gerrors.ErrInvalidMessage
	}

	var head header
	if err := decMode.Unmarshal(blocks[0], &head); err != nil {
		return nil, gerrors.NewErrInvalidPayload(err)
	}

	size := 0
	for _, block := range blocks[1:] {
		size += len(block)
	}
	if size != head.PayloadLen {
		return nil, fmt.Errorf("%w: payload length %d, announced %d", gerrors.ErrInvalidMessage, size, head.PayloadLen)
	}

	var payload []byte
	if size > 0 {
		payload = make([]byte, 0, size)
		for _, block := range blocks[1:] {
			payload = append(payload, block...)
		}
	}

	return &Envelope{
		ID:        head.ID,
		From:      head.From,
		To:        head.To,
		Scope:     head.Scope,
		HopCount:  head.HopCount,
		Forwarder: head.Forwarder,
		Payload:   payload,
	}, nil
}

// Marshal encodes a control payload using CBOR
func Marshal(v any) ([]byte, error) {
	return encMode.Marshal(v)
}

// Unmarshal decodes a control payload encoded with Marshal
func Unmarshal(data []byte, v any) error {
	if err := decMode.Unmarshal(data, v); err != nil {
		return gerrors.NewErrInvalidPayload(err)
	}
	return nil
}
