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

package errorschain

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
)

func TestErrorsChain(t *testing.T) {
	ctx := context.Background()

	t.Run("With ReturnFirst", func(t *testing.T) {
		e1 := errors.New("err1")
		var calls []string

		err := New(ReturnFirst()).
			AddStep("listener", func(context.Context) error { calls = append(calls, "listener"); return nil }).
			AddStep("manager", func(context.Context) error { calls = append(calls, "manager"); return e1 }).
			AddStep("engine", func(context.Context) error { calls = append(calls, "engine"); return nil }).
			Run(ctx)

		require.ErrorIs(t, err, e1)
		assert.EqualError(t, err, "manager: err1")
		assert.Equal(t, []string{"listener", "manager"}, calls)
	})
	t.Run("With ReturnAll", func(t *testing.T) {
		e1 := errors.New("err1")
		e2 := errors.New("err2")
		var calls int

		err := New(ReturnAll()).
			AddStep("listener", func(context.Context) error { calls++; return e1 }).
			AddStep("manager", func(context.Context) error { calls++; return nil }).
			AddError("engine", e2).
			Run(ctx)

		require.ErrorIs(t, err, e1)
		require.ErrorIs(t, err, e2)
		assert.Len(t, multierr.Errors(err), 2)
		assert.Equal(t, 2, calls)
	})
	t.Run("With no error", func(t *testing.T) {
		err := New().AddError("bus", nil).AddStep("discovery", nil).Run(ctx)
		require.NoError(t, err)
	})
	t.Run("With context", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		err := New().AddStep("engine", func(ctx context.Context) error { return ctx.Err() }).Run(cctx)
		require.ErrorIs(t, err, context.Canceled)
	})
}
