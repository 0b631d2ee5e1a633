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
	"bytes"
	"io"
	"net"
	"testing"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseKind(t *testing.T) {
	kind, err := ParseKind("ZSTD")
	require.NoError(t, err)
	assert.Equal(t, Zstd, kind)

	kind, err = ParseKind("")
	require.NoError(t, err)
	assert.Equal(t, None, kind)

	_, err = ParseKind("gzip")
	require.Error(t, err)
	assert.Equal(t, "brotli", Brotli.String())
}

func TestNewWrapper(t *testing.T) {
	wrapper, err := NewWrapper(None)
	require.NoError(t, err)
	require.Nil(t, wrapper)

	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()
	conn, err := Wrap(nil, client)
	require.NoError(t, err)
	assert.Equal(t, client, conn)
}

func TestConnWrapperEndToEnd(t *testing.T) {
	for _, kind := range []Kind{Zstd, Brotli} {
		t.Run(kind.String(), func(t *testing.T) {
			wrapper, err := NewWrapper(kind)
			require.NoError(t, err)

			listener, err := net.Listen("tcp", "127.0.0.1:0")
			require.NoError(t, err)
			defer listener.Close()

			payload := bytes.Repeat([]byte("gobus frame payload "), 64)
			received := make(chan []byte, 1)

			go func() {
				raw, err := listener.Accept()
				if err != nil {
					received <- nil
					return
				}
				conn, err := wrapper.Wrap(raw)
				if err != nil {
					_ = raw.Close()
					received <- nil
					return
				}
				defer conn.Close()

				buf := make([]byte, len(payload))
				_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
				if _, err := io.ReadFull(conn, buf); err != nil {
					received <- nil
					return
				}
				_, _ = conn.Write(buf)
				received <- buf
			}()

			raw, err := net.Dial("tcp", listener.Addr().String())
			require.NoError(t, err)
			conn, err := wrapper.Wrap(raw)
			require.NoError(t, err)

			_, err = conn.Write(payload)
			require.NoError(t, err)

			echo := make([]byte, len(payload))
			require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
			_, err = io.ReadFull(conn, echo)
			require.NoError(t, err)
			assert.Equal(t, payload, echo)
			assert.Equal(t, payload, <-received)

			require.NoError(t, conn.Close())
			// closing twice is harmless
			_ = conn.Close()
		})
	}
}

func TestPool(t *testing.T) {
	built := 0
	p := newPool(func() (*bytes.Buffer, error) {
		built++
		return new(bytes.Buffer), nil
	})

	first, err := p.get()
	require.NoError(t, err)
	assert.Equal(t, 1, built)
	p.put(first)

	_, err = p.get()
	require.NoError(t, err)

	failing := newPool(func() (*bytes.Buffer, error) { return nil, io.ErrUnexpectedEOF })
	_, err = failing.get()
	require.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestZstdOptions(t *testing.T) {
	_, err := NewZstdConnWrapper(WithZstdWindow(3))
	require.ErrorIs(t, err, ErrZstdEncoderInit)

	wrapper, err := NewZstdConnWrapper(WithZstdLevel(zstd.SpeedFastest), WithZstdWindow(1<<20))
	require.NoError(t, err)
	require.NotNil(t, wrapper)
	require.NotNil(t, NewBrotliConnWrapper(WithBrotliLevel(brotli.BestSpeed)))
}
