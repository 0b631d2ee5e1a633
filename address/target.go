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

package address

import (
	"fmt"
	"net"
	"strconv"
	"strings"
)

// Transport is the kind of byte stream used to reach a peer
type Transport uint8

const (
	// TCP is a network transport
	TCP Transport = iota
	// Unix is the local (unix-domain) transport
	Unix
)

// String implements fmt.Stringer
func (t Transport) String() string {
	if t == Unix {
		return "unix"
	}
	return "tcp"
}

// ParseTransport converts "tcp" or "unix" into a Transport
func ParseTransport(s string) (Transport, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "tcp", "":
		return TCP, nil
	case "unix", "local":
		return Unix, nil
	default:
		return TCP, fmt.Errorf("%w: unknown transport %q", ErrInvalidTarget, s)
	}
}

// abstractPrefix marks a unix address living in the abstract namespace
const abstractPrefix = "="

// Target is a connection target: host and port for TCP, or a socket path
// and optional port for the local transport.
type Target struct {
	Host      string    `cbor:"1,keyasint"`
	Port      int       `cbor:"2,keyasint"`
	Transport Transport `cbor:"3,keyasint"`
}

// NewTarget creates a Target
func NewTarget(host string, port int, transport Transport) Target {
	return Target{Host: host, Port: port, Transport: transport}
}

// ParseTarget parses host:port (TCP) or path[:port] (unix).
// A path prefixed with '=' denotes an abstract unix address.
func ParseTarget(s string, transport Transport) (Target, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Target{}, ErrInvalidTarget
	}

	if transport == Unix {
		path, port := s, 0
		if idx := strings.LastIndex(s, ":"); idx > 0 {
			if p, err := strconv.Atoi(s[idx+1:]); err == nil {
				path, port = s[:idx], p
			}
		}
		if path == "" || path == abstractPrefix || port < 0 {
			return Target{}, fmt.Errorf("%w: %q", ErrInvalidTarget, s)
		}
		return Target{Host: path, Port: port, Transport: Unix}, nil
	}

	host, portStr, err := net.SplitHostPort(s)
	if err != nil {
		return Target{}, fmt.Errorf("%w: %v", ErrInvalidTarget, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port <= 0 || port > 65535 || host == "" {
		return Target{}, fmt.Errorf("%w: %q", ErrInvalidTarget, s)
	}
	return Target{Host: host, Port: port, Transport: TCP}, nil
}

// Network returns the name of the network as understood by the net package
func (t Target) Network() string {
	return t.Transport.String()
}

// IsAbstract reports whether a unix target lives in the abstract namespace
func (t Target) IsAbstract() bool {
	return t.Transport == Unix && strings.HasPrefix(t.Host, abstractPrefix)
}

// Dial returns the address string to hand over to net.Dial / net.Listen.
// Unix targets carrying a port map to "<path>.<port>"; abstract targets use
// the leading '@' understood by the Go runtime.
func (t Target) Dial() string {
	if t.Transport == TCP {
		return net.JoinHostPort(t.Host, strconv.Itoa(t.Port))
	}
	path := t.Host
	if t.IsAbstract() {
		path = "@" + strings.TrimPrefix(path, abstractPrefix)
	}
	if t.Port > 0 {
		path = path + "." + strconv.Itoa(t.Port)
	}
	return path
}

// WithPort returns a copy of the target using the given port
func (t Target) WithPort(port int) Target {
	t.Port = port
	return t
}

// String returns host:port or path[:port]
func (t Target) String() string {
	if t.Transport == TCP {
		return net.JoinHostPort(t.Host, strconv.Itoa(t.Port))
	}
	if t.Port > 0 {
		return t.Host + ":" + strconv.Itoa(t.Port)
	}
	return t.Host
}
