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
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrors(t *testing.T) {
	linkErr := NewLinkError("alice@host", io.EOF)
	require.Error(t, linkErr)
	require.EqualError(t, linkErr, "link to alice@host failed: EOF")
	assert.ErrorIs(t, linkErr, io.EOF)

	err := NewErrDuplicatePeer("bob@host")
	require.ErrorIs(t, err, ErrDuplicatePeer)
	require.EqualError(t, err, "peer=(bob@host) duplicate peer connection")

	err = NewErrInvalidPayload(errors.New("truncated"))
	require.ErrorIs(t, err, ErrInvalidPayload)

	require.ErrorIs(t, NewErrActorNotFound("printer"), ErrActorNotFound)
	require.ErrorIs(t, NewErrActorAlreadyExists("printer"), ErrActorAlreadyExists)
}
