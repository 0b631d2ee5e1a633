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

// Package socket provides the byte-stream primitives used by the bus:
// dialing and listening over tcp and unix transports.
package socket

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"syscall"
	"time"

	"github.com/hashicorp/go-sockaddr"

	"github.com/tochemey/gobus/address"
)

// DefaultKeepAlive is the keep-alive period of tcp links
const DefaultKeepAlive = 15 * time.Second

// Dial opens a stream to target. The context bounds the connect time.
func Dial(ctx context.Context, target address.Target) (net.Conn, error) {
	dialer := net.Dialer{KeepAlive: DefaultKeepAlive}
	conn, err := dialer.DialContext(ctx, target.Network(), target.Dial())
	if err != nil {
		return nil, err
	}
	if tcp, ok := conn.(*net.TCPConn); ok {
		_ = tcp.SetNoDelay(true)
	}
	return conn, nil
}

// Listen binds target. Port sharing is disabled so that a second process
// binding the same address fails with an address-in-use error.
func Listen(ctx context.Context, target address.Target) (net.Listener, error) {
	config := net.ListenConfig{
		KeepAlive: DefaultKeepAlive,
		Control:   exclusiveBind,
	}

	listener, err := config.Listen(ctx, target.Network(), target.Dial())
	if err == nil || target.Transport != address.Unix || target.IsAbstract() || !IsAddrInUse(err) {
		return listener, err
	}

	// a socket file left behind by a dead process is not a conflict
	if !isStale(ctx, target) {
		return nil, err
	}
	if rerr := os.Remove(target.Dial()); rerr != nil && !errors.Is(rerr, os.ErrNotExist) {
		return nil, err
	}
	return config.Listen(ctx, target.Network(), target.Dial())
}

// IsAddrInUse reports whether err is an address-in-use bind failure
func IsAddrInUse(err error) bool {
	return errors.Is(err, syscall.EADDRINUSE)
}

// IsClosed reports whether err results from using a closed connection
func IsClosed(err error) bool {
	return errors.Is(err, net.ErrClosed)
}

// isStale reports whether nobody accepts connections on a unix socket file
func isStale(ctx context.Context, target address.Target) bool {
	ctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	conn, err := Dial(ctx, target)
	if err != nil {
		return errors.Is(err, syscall.ECONNREFUSED)
	}
	_ = conn.Close()
	return false
}

// Target returns the target a listener is bound to
func Target(listener net.Listener, transport address.Transport, fallback address.Target) address.Target {
	if tcpAddr, ok := listener.Addr().(*net.TCPAddr); ok {
		return address.NewTarget(fallback.Host, tcpAddr.Port, transport)
	}
	return fallback
}

// AdvertiseHost returns the host other processes should use to reach a
// listener bound to host. Wildcard hosts resolve to a private address of the
// machine, then a public one.
func AdvertiseHost(host string) (string, error) {
	switch host {
	case "", "0.0.0.0", "::", "[::]":
	default:
		return host, nil
	}

	ipStr, err := sockaddr.GetPrivateIP()
	if err != nil {
		return "", fmt.Errorf("failed to get private interface addresses: %w", err)
	}
	if ipStr == "" {
		if ipStr, err = sockaddr.GetPublicIP(); err != nil {
			return "", fmt.Errorf("failed to get public interface addresses: %w", err)
		}
	}
	if ipStr == "" {
		return "", errors.New("no private IP address found, and explicit IP not provided")
	}
	parsed := net.ParseIP(ipStr)
	if parsed == nil {
		return "", fmt.Errorf("failed to parse private IP address: %q", ipStr)
	}
	return parsed.String(), nil
}
