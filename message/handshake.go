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
	"encoding/binary"
	"fmt"

	"github.com/tochemey/gobus/address"
	gerrors "github.com/tochemey/gobus/errors"
)

// ActorSubscriptions is the handshake record of one local actor
type ActorSubscriptions struct {
	Address  address.Address
	Patterns []string
}

// Handshake is the content of a Subscriptions message
type Handshake struct {
	Actors []ActorSubscriptions
	// Snapshot is the opaque registry snapshot of the sender
	Snapshot []byte
}

// PackHandshake serializes the handshake. The layout is a uint32 actor count
// followed, for each actor, by a length-prefixed packed address and a
// length-prefixed packed pattern set. The snapshot takes the remaining bytes.
func PackHandshake(hs *Handshake) ([]byte, error) {
	out := binary.BigEndian.AppendUint32(nil, uint32(len(hs.Actors)))
	for _, actor := range hs.Actors {
		addr, err := Marshal(actor.Address)
		if err != nil {
			return nil, fmt.Errorf("failed to pack address %s: %w", actor.Address, err)
		}
		patterns := actor.Patterns
		if patterns == nil {
			patterns = []string{}
		}
		subs, err := Marshal(patterns)
		if err != nil {
			return nil, fmt.Errorf("failed to pack subscriptions of %s: %w", actor.Address, err)
		}
		out = binary.BigEndian.AppendUint32(out, uint32(len(addr)))
		out = append(out, addr...)
		out = binary.BigEndian.AppendUint32(out, uint32(len(subs)))
		out = append(out, subs...)
	}
	return append(out, hs.Snapshot...), nil
}

// UnpackHandshake parses a payload produced by PackHandshake
func UnpackHandshake(payload []byte) (*Handshake, error) {
	count, rest, err := readUint32(payload)
	if err != nil {
		return nil, err
	}

	hs := &Handshake{Actors: make([]ActorSubscriptions, 0, min(int(count), 1024))}
	for i := uint32(0); i < count; i++ {
		var addrBytes, subsBytes []byte
		if addrBytes, rest, err = readChunk(rest); err != nil {
			return nil, err
		}
		if subsBytes, rest, err = readChunk(rest); err != nil {
			return nil, err
		}

		var actor ActorSubscriptions
		if err := Unmarshal(addrBytes, &actor.Address); err != nil {
			return nil, err
		}
		if err := Unmarshal(subsBytes, &actor.Patterns); err != nil {
			return nil, err
		}
		hs.Actors = append(hs.Actors, actor)
	}

	if len(rest) > 0 {
		hs.Snapshot = append([]byte(nil), rest...)
	}
	return hs, nil
}

func readUint32(buf []byte) (uint32, []byte, error) {
	if len(buf) < 4 {
		return 0, nil, gerrors.NewErrInvalidPayload(fmt.Errorf("truncated handshake: %d bytes left", len(buf)))
	}
	return binary.BigEndian.Uint32(buf), buf[4:], nil
}

func readChunk(buf []byte) ([]byte, []byte, error) {
	size, rest, err := readUint32(buf)
	if err != nil {
		return nil, nil, err
	}
	if uint64(size) > uint64(len(rest)) {
		return nil, nil, gerrors.NewErrInvalidPayload(fmt.Errorf("truncated handshake: chunk of %d bytes, %d left", size, len(rest)))
	}
	return rest[:size], rest[size:], nil
}
