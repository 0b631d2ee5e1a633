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

package errors

import (
	"errors"
	"fmt"
)

var (
	// ErrHandshakeTimeout is returned when the peer did not answer the subscription exchange in time.
	ErrHandshakeTimeout = errors.New("handshake timed out")

	// ErrDuplicatePeer is returned when a second link to an already connected peer completes its handshake.
	ErrDuplicatePeer = errors.New("duplicate peer connection")

	// ErrGatewayClosed is returned when sending through a gateway that has been shut down.
	ErrGatewayClosed = errors.New("gateway is closed")

	// ErrNotConnected is returned when sending application traffic before the handshake has completed.
	ErrNotConnected = errors.New("gateway is not connected")

	// ErrPeerAborted is returned when the peer announced a deliberate teardown of the link.
	ErrPeerAborted = errors.New("link aborted by peer")

	// ErrUnexpectedHandshake is returned when a peer sends a second subscription exchange.
	ErrUnexpectedHandshake = errors.New("unexpected handshake")

	// ErrSelfConnection is returned when a process ends up connected to itself.
	ErrSelfConnection = errors.New("connection to self")

	// ErrBindExhausted is returned when the listener ran out of bind attempts.
	ErrBindExhausted = errors.New("no bind attempt succeeded")

	// ErrListenerNotStarted is returned when using a listener that is not bound.
	ErrListenerNotStarted = errors.New("listener is not started")

	// ErrInvalidFrame indicates a frame whose header or trailer is malformed.
	ErrInvalidFrame = errors.New("invalid frame")

	// ErrChecksumMismatch indicates a trailer whose checksum does not match the received block.
	ErrChecksumMismatch = errors.New("checksum mismatch")

	// ErrBlockTooLarge indicates a header announcing a block bigger than allowed.
	ErrBlockTooLarge = errors.New("block exceeds maximum size")

	// ErrInvalidPayload indicates a payload that cannot be decoded.
	ErrInvalidPayload = errors.New("invalid payload")

	// ErrInvalidMessage indicates an envelope that is structurally invalid.
	ErrInvalidMessage = errors.New("invalid message")

	// ErrActorNotFound is returned when a local actor cannot be found.
	ErrActorNotFound = errors.New("actor not found")

	// ErrActorAlreadyExists is returned when spawning an actor with a name in use.
	ErrActorAlreadyExists = errors.New("actor already exists")

	// ErrBusClosed is returned when using a bus that has been closed.
	ErrBusClosed = errors.New("bus is closed")

	// ErrInvalidConfig is returned when a component is built with missing collaborators.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrNodeNotStarted is returned when stopping a node that did not start.
	ErrNodeNotStarted = errors.New("node is not started")

	// ErrDiscoveryNotStarted is returned when querying a discovery provider before it started.
	ErrDiscoveryNotStarted = errors.New("discovery provider is not started")
)

// NewErrInvalidPayload wraps a decoding failure with ErrInvalidPayload
func NewErrInvalidPayload(err error) error {
	return errors.Join(ErrInvalidPayload, err)
}

// NewErrDuplicatePeer formats an ErrDuplicatePeer for the given peer
func NewErrDuplicatePeer(peer string) error {
	return fmt.Errorf("peer=(%s) %w", peer, ErrDuplicatePeer)
}

// NewErrActorAlreadyExists formats an ErrActorAlreadyExists for the given actor name
func NewErrActorAlreadyExists(name string) error {
	return fmt.Errorf("actor=(%s) %w", name, ErrActorAlreadyExists)
}

// NewErrActorNotFound formats an ErrActorNotFound for the given actor name
func NewErrActorNotFound(name string) error {
	return fmt.Errorf("actor=(%s) %w", name, ErrActorNotFound)
}

// LinkError describes a fatal failure of an established link
type LinkError struct {
	peer string
	err  error
}

// enforce compilation error
var _ error = (*LinkError)(nil)

// NewLinkError creates an instance of LinkError
func NewLinkError(peer string, err error) *LinkError {
	return &LinkError{peer: peer, err: err}
}

// Error implements the standard error interface
func (e *LinkError) Error() string {
	return fmt.Sprintf("link to %s failed: %v", e.peer, e.err)
}

func (e *LinkError) Unwrap() error {
	return e.err
}
