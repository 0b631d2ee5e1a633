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
	"errors"
	"net"

	"github.com/klauspost/compress/zstd"
)

const (
	zstdWindow    = 512 << 10
	zstdMaxMemory = 64 << 20
)

// ZstdConnWrapper compresses links with zstd. Every link gets its own
// single-goroutine encoder and decoder, taken back when the link closes.
type ZstdConnWrapper struct {
	encoders *pool[*zstd.Encoder]
	decoders *pool[*zstd.Decoder]
}

var _ ConnWrapper = (*ZstdConnWrapper)(nil)

type zstdConfig struct {
	level  zstd.EncoderLevel
	window int
}

// ZstdOption configures a ZstdConnWrapper
type ZstdOption func(*zstdConfig)

// WithZstdLevel sets the encoder level
func WithZstdLevel(level zstd.EncoderLevel) ZstdOption {
	return func(c *zstdConfig) { c.level = level }
}

// WithZstdWindow sets the encoder window size, a power of two
func WithZstdWindow(size int) ZstdOption {
	return func(c *zstdConfig) { c.window = size }
}

// NewZstdConnWrapper creates a ZstdConnWrapper. Invalid options are
// reported here rather than when a link is wrapped.
func NewZstdConnWrapper(opts ...ZstdOption) (*ZstdConnWrapper, error) {
	cfg := zstdConfig{level: zstd.SpeedDefault, window: zstdWindow}
	for _, opt := range opts {
		opt(&cfg)
	}

	encoderOpts := []zstd.EOption{
		zstd.WithEncoderLevel(cfg.level),
		zstd.WithWindowSize(cfg.window),
		zstd.WithEncoderConcurrency(1),
		zstd.WithLowerEncoderMem(true),
	}
	decoderOpts := []zstd.DOption{
		zstd.WithDecoderConcurrency(1),
		zstd.WithDecoderLowmem(true),
		zstd.WithDecoderMaxMemory(zstdMaxMemory),
	}

	w := &ZstdConnWrapper{
		encoders: newPool(func() (*zstd.Encoder, error) { return zstd.NewWriter(nil, encoderOpts...) }),
		decoders: newPool(func() (*zstd.Decoder, error) { return zstd.NewReader(nil, decoderOpts...) }),
	}

	enc, err := w.encoders.get()
	if err != nil {
		return nil, errors.Join(ErrZstdEncoderInit, err)
	}
	dec, err := w.decoders.get()
	if err != nil {
		return nil, errors.Join(ErrZstdDecoderInit, err)
	}
	w.release(enc, dec)
	return w, nil
}

// Wrap implements ConnWrapper
func (z *ZstdConnWrapper) Wrap(conn net.Conn) (net.Conn, error) {
	enc, err := z.encoders.get()
	if err != nil {
		return nil, errors.Join(ErrZstdEncoderInit, err)
	}
	dec, err := z.decoders.get()
	if err != nil {
		z.encoders.put(enc)
		return nil, errors.Join(ErrZstdDecoderInit, err)
	}

	enc.Reset(conn)
	if err := dec.Reset(conn); err != nil {
		z.release(enc, dec)
		return nil, err
	}

	// the raw connection is closed first, so no final frame is written
	return &compressedConn{
		raw:    conn,
		reader: dec,
		writer: enc,
		closer: func() error {
			z.release(enc, dec)
			return nil
		},
	}, nil
}

func (z *ZstdConnWrapper) release(enc *zstd.Encoder, dec *zstd.Decoder) {
	enc.Reset(nil)
	_ = dec.Reset(nil)
	z.encoders.put(enc)
	z.decoders.put(dec)
}
