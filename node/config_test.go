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

package node

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tochemey/gobus/address"
	"github.com/tochemey/gobus/log"
)

func TestConfig(t *testing.T) {
	t.Run("With defaults", func(t *testing.T) {
		config := NewConfig("alice", WithHost("localhost"))
		require.NoError(t, config.Validate())
		assert.Equal(t, address.NewPeerID("localhost", "alice"), config.Peer())
		assert.Equal(t, address.NewTarget(DefaultBindHost, DefaultPort, address.TCP), config.listenTarget())
		assert.Equal(t, EngineThreaded, config.engine)
		assert.Equal(t, 30*time.Second, config.handshakeTimeout)
		assert.Equal(t, 2*time.Second, config.retryBackoff)
		assert.Equal(t, 5, config.maxBindAttempts)
		assert.Equal(t, log.DiscardLogger, config.Logger())
		assert.Empty(t, config.StaticPeers())
	})
	t.Run("With unix socket", func(t *testing.T) {
		config := NewConfig("alice", WithUnixSocket("=gobus"), WithStaticPeers("=gobus:1"))
		require.NoError(t, config.Validate())
		assert.Equal(t, address.NewTarget("=gobus", 0, address.Unix), config.listenTarget())
		assert.Equal(t, []string{"=gobus:1"}, config.StaticPeers())
	})
	t.Run("With invalid settings", func(t *testing.T) {
		testCases := map[string][]Option{
			"engine":      {WithEngine("evented", 2)},
			"readers":     {OptionFunc(func(c *Config) { c.readers = 1 })},
			"checksum":    {WithChecksum("crc32")},
			"compression": {WithCompression("lz4")},
			"static peer": {WithStaticPeers("localhost")},
			"port":        {WithBindAddr("127.0.0.1", 70000)},
			"unix path":   {WithUnixSocket("")},
			"mdns":        {WithoutListener(), WithMDNS("", "")},
			"mdns unix":   {WithUnixSocket("/tmp/gobus.sock"), WithMDNS("", "")},
			"backoff":     {WithRetryBackoff(0)},
			"ping":        {WithPingInterval(-time.Second)},
			"block size":  {WithMaxBlockSize(0)},
		}
		for name, opts := range testCases {
			t.Run(name, func(t *testing.T) {
				assert.Error(t, NewConfig("alice", opts...).Validate())
			})
		}
	})
	t.Run("With missing process", func(t *testing.T) {
		assert.Error(t, NewConfig("").Validate())
	})
}
