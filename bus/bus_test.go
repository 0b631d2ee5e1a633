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

package bus

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/tochemey/gobus/address"
	gerrors "github.com/tochemey/gobus/errors"
	"github.com/tochemey/gobus/log"
	"github.com/tochemey/gobus/message"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type recorder struct {
	mu       sync.Mutex
	messages []*message.Envelope
}

func (r *recorder) handle(_ context.Context, env *message.Envelope) {
	r.mu.Lock()
	r.messages = append(r.messages, env)
	r.mu.Unlock()
}

func (r *recorder) ids() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.messages))
	for _, env := range r.messages {
		ids = append(ids, env.ID)
	}
	return ids
}

type routeMock struct {
	id        string
	accept    func(env *message.Envelope) bool
	mu        sync.Mutex
	forwarded []*message.Envelope
}

func (r *routeMock) ID() string { return r.id }

func (r *routeMock) WillForward(env *message.Envelope) bool { return r.accept(env) }

func (r *routeMock) Forward(env *message.Envelope) error {
	r.mu.Lock()
	r.forwarded = append(r.forwarded, env)
	r.mu.Unlock()
	return nil
}

func (r *routeMock) ids() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.forwarded))
	for _, env := range r.forwarded {
		ids = append(ids, env.ID)
	}
	return ids
}

var local = address.NewPeerID("h1", "alice")

func TestBus(t *testing.T) {
	ctx := context.Background()

	t.Run("With local publish", func(t *testing.T) {
		b := New(local, log.DiscardLogger)
		rec := new(recorder)
		_, err := b.Spawn("x", rec.handle, "Foo.Bar.*")
		require.NoError(t, err)
		sender, err := b.Spawn("sender", func(context.Context, *message.Envelope) {}, "Foo.*")
		require.NoError(t, err)

		require.NoError(t, sender.Publish("Foo.Bar.Baz", []byte("1")))
		require.NoError(t, sender.Publish("Foo.Qux", []byte("2")))

		require.Eventually(t, func() bool {
			return len(rec.ids()) == 1
		}, time.Second, 10*time.Millisecond)
		assert.Equal(t, []string{"Foo.Bar.Baz"}, rec.ids())
		require.NoError(t, b.Close(ctx))
	})
	t.Run("With direct send", func(t *testing.T) {
		b := New(local, log.DiscardLogger)
		rec := new(recorder)
		x, err := b.Spawn("x", rec.handle)
		require.NoError(t, err)
		sender, err := b.Spawn("sender", func(context.Context, *message.Envelope) {})
		require.NoError(t, err)

		require.NoError(t, sender.Send("Ping", x.Address(), nil))
		err = sender.Send("Ping", address.New("unknown", local), nil)
		require.ErrorIs(t, err, gerrors.ErrActorNotFound)

		require.Eventually(t, func() bool {
			return len(rec.ids()) == 1
		}, time.Second, 10*time.Millisecond)
		require.NoError(t, b.Close(ctx))
	})
	t.Run("With routes", func(t *testing.T) {
		b := New(local, log.DiscardLogger)
		route := &routeMock{id: "g1", accept: func(env *message.Envelope) bool { return env.ID != "Local.Only" }}
		b.Attach(route)
		assert.Equal(t, 1, b.Routes())

		pid, err := b.Spawn("x", func(context.Context, *message.Envelope) {}, "A.*")
		require.NoError(t, err)
		require.NoError(t, pid.Publish("Foo", nil))
		require.NoError(t, pid.Publish("Local.Only", nil))
		require.NoError(t, b.Publish(message.New("Scoped", pid.Address(), nil).WithScope(address.ScopeProcess)))
		require.NoError(t, b.Publish(message.NewTo("Remote", pid.Address(), address.New("y", address.NewPeerID("h2", "bob")), nil)))

		// dispatched by the route itself
		b.Dispatch(message.New("Echo", pid.Address(), nil), "g1")

		require.NoError(t, pid.Stop(ctx))
		assert.Equal(t, []string{message.Subscribe, "Foo", "Remote", message.Bye}, route.ids())

		b.Detach(route)
		assert.Zero(t, b.Routes())
		require.NoError(t, b.Close(ctx))
	})
	t.Run("With subscribe and unsubscribe", func(t *testing.T) {
		b := New(local, log.DiscardLogger)
		route := &routeMock{id: "g1", accept: func(*message.Envelope) bool { return true }}
		b.Attach(route)

		pid, err := b.Spawn("x", func(context.Context, *message.Envelope) {})
		require.NoError(t, err)
		require.NoError(t, pid.Subscribe("Foo.*"))
		assert.True(t, pid.Accepts("Foo.Bar"))
		assert.Equal(t, []message.ActorSubscriptions{{Address: pid.Address(), Patterns: []string{"Foo.*"}}}, b.Actors())

		require.NoError(t, pid.Unsubscribe("Foo.*"))
		assert.False(t, pid.Accepts("Foo.Bar"))
		assert.Equal(t, []string{message.Subscribe, message.Unsubscribe}, route.ids())

		require.Error(t, pid.Subscribe("Foo..Bar"))
		require.NoError(t, b.Close(ctx))
	})
	t.Run("With spawn errors", func(t *testing.T) {
		b := New(local, nil)
		_, err := b.Spawn("x", func(context.Context, *message.Envelope) {})
		require.NoError(t, err)
		_, err = b.Spawn("x", func(context.Context, *message.Envelope) {})
		require.ErrorIs(t, err, gerrors.ErrActorAlreadyExists)
		_, err = b.Spawn("", func(context.Context, *message.Envelope) {})
		require.Error(t, err)
		_, err = b.Spawn("y", func(context.Context, *message.Envelope) {}, "")
		require.Error(t, err)

		require.NoError(t, b.Close(ctx))
		require.NoError(t, b.Close(ctx))
		_, err = b.Spawn("z", func(context.Context, *message.Envelope) {})
		require.ErrorIs(t, err, gerrors.ErrBusClosed)
		require.ErrorIs(t, b.Publish(message.New("A", b.Address(), nil)), gerrors.ErrBusClosed)
	})
	t.Run("With messages processed in order", func(t *testing.T) {
		b := New(local, log.DiscardLogger)
		rec := new(recorder)
		x, err := b.Spawn("x", rec.handle)
		require.NoError(t, err)

		want := make([]string, 0, 100)
		for i := range 100 {
			id := "Seq." + string(rune('a'+i%26))
			want = append(want, id)
			b.Dispatch(message.NewTo(id, b.Address(), x.Address(), nil), "")
		}
		require.Eventually(t, func() bool {
			return len(rec.ids()) == 100
		}, time.Second, 10*time.Millisecond)
		assert.Equal(t, want, rec.ids())
		require.NoError(t, b.Close(ctx))
	})
}
