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

package compression

import (
	"net"

	"github.com/andybalholm/brotli"
)

// BrotliConnWrapper compresses links with brotli
type BrotliConnWrapper struct {
	level   int
	writers *pool[*brotli.Writer]
	readers *pool[*brotli.Reader]
}

var _ ConnWrapper = (*BrotliConnWrapper)(nil)

// BrotliOption configures a BrotliConnWrapper
type BrotliOption func(*BrotliConnWrapper)

// WithBrotliLevel sets the compression level, from brotli.BestSpeed to
// brotli.BestCompression
func WithBrotliLevel(level int) BrotliOption {
	return func(b *BrotliConnWrapper) { b.level = level }
}

// NewBrotliConnWrapper creates a BrotliConnWrapper
func NewBrotliConnWrapper(opts ...BrotliOption) *BrotliConnWrapper {
	b := &BrotliConnWrapper{level: brotli.DefaultCompression}
	for _, opt := range opts {
		opt(b)
	}
	level := b.level
	b.writers = newPool(func() (*brotli.Writer, error) { return brotli.NewWriterLevel(nil, level), nil })
	b.readers = newPool(func() (*brotli.Reader, error) { return brotli.NewReader(nil), nil })
	return b
}

// Wrap implements ConnWrapper
func (b *BrotliConnWrapper) Wrap(conn net.Conn) (net.Conn, error) {
	bw, err := b.writers.get()
	if err != nil {
		return nil, ErrBrotliWriterInit
	}
	br, err := b.readers.get()
	if err != nil {
		b.writers.put(bw)
		return nil, ErrBrotliReaderInit
	}

	bw.Reset(conn)
	if err := br.Reset(conn); err != nil {
		b.release(bw, br)
		return nil, err
	}

	return &compressedConn{
		raw:    conn,
		reader: br,
		writer: bw,
		closer: func() error {
			b.release(bw, br)
			return nil
		},
	}, nil
}

func (b *BrotliConnWrapper) release(bw *brotli.Writer, br *brotli.Reader) {
	bw.Reset(nil)
	_ = br.Reset(nil)
	b.writers.put(bw)
	b.readers.put(br)
}
