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

// Package compression provides stream compression of gateway links.
// Both ends of a link must use the same Kind.
package compression

import (
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"time"
)

var (
	// ErrZstdEncoderInit is returned when no zstd encoder can be created
	ErrZstdEncoderInit = errors.New("compression: failed to create zstd encoder")
	// ErrZstdDecoderInit is returned when no zstd decoder can be created
	ErrZstdDecoderInit = errors.New("compression: failed to create zstd decoder")
	// ErrBrotliWriterInit is returned when no brotli writer can be created
	ErrBrotliWriterInit = errors.New("compression: failed to create brotli writer")
	// ErrBrotliReaderInit is returned when no brotli reader can be created
	ErrBrotliReaderInit = errors.New("compression: failed to create brotli reader")
)

// Kind is the compression algorithm of a link
type Kind uint8

const (
	// None leaves the link uncompressed
	None Kind = iota
	// Zstd compresses the link with zstd
	Zstd
	// Brotli compresses the link with brotli
	Brotli
)

// String implements fmt.Stringer
func (k Kind) String() string {
	switch k {
	case Zstd:
		return "zstd"
	case Brotli:
		return "brotli"
	default:
		return "none"
	}
}

// ParseKind converts "none", "zstd" or "brotli" into a Kind
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return None, nil
	case "zstd":
		return Zstd, nil
	case "brotli":
		return Brotli, nil
	default:
		return None, fmt.Errorf("unknown compression %q", s)
	}
}

// ConnWrapper transforms a [net.Conn] by adding a compression layer.
// Implementations must be safe to call from multiple goroutines.
type ConnWrapper interface {
	Wrap(conn net.Conn) (net.Conn, error)
}

// NewWrapper returns the ConnWrapper of kind, nil for None
func NewWrapper(kind Kind) (ConnWrapper, error) {
	switch kind {
	case Zstd:
		return NewZstdConnWrapper()
	case Brotli:
		return NewBrotliConnWrapper(), nil
	default:
		return nil, nil
	}
}

// Wrap applies wrapper to conn, returning conn itself when wrapper is nil
func Wrap(wrapper ConnWrapper, conn net.Conn) (net.Conn, error) {
	if wrapper == nil {
		return conn, nil
	}
	return wrapper.Wrap(conn)
}

type flushWriter interface {
	io.Writer
	Flush() error
}

type compressedConn struct {
	raw    net.Conn
	reader io.Reader
	writer flushWriter
	closer func() error
	once   sync.Once
	err    error
}

var _ net.Conn = (*compressedConn)(nil)

func (c *compressedConn) Read(p []byte) (int, error) {
	return c.reader.Read(p)
}

// Write compresses p and flushes so that the peer can decode it right away
func (c *compressedConn) Write(p []byte) (int, error) {
	n, err := c.writer.Write(p)
	if err != nil {
		return n, err
	}
	if ferr := c.writer.Flush(); ferr != nil {
		return n, ferr
	}
	return n, nil
}

func (c *compressedConn) Close() error {
	c.once.Do(func() {
		nerr := c.raw.Close()
		cerr := c.closer()
		c.err = errors.Join(nerr, cerr)
	})
	return c.err
}

func (c *compressedConn) LocalAddr() net.Addr                { return c.raw.LocalAddr() }
func (c *compressedConn) RemoteAddr() net.Addr               { return c.raw.RemoteAddr() }
func (c *compressedConn) SetDeadline(t time.Time) error      { return c.raw.SetDeadline(t) }
func (c *compressedConn) SetReadDeadline(t time.Time) error  { return c.raw.SetReadDeadline(t) }
func (c *compressedConn) SetWriteDeadline(t time.Time) error { return c.raw.SetWriteDeadline(t) }
