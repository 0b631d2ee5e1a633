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

// Package errorschain runs a sequence of fallible steps, such as the
// shutdown of the components of a node, and combines their errors.
package errorschain

import (
	"context"
	"fmt"

	"go.uber.org/multierr"
)

// Step is a named unit of work of a Chain
type Step func(ctx context.Context) error

type entry struct {
	name string
	step Step
}

// Chain runs its steps in the order they were added
type Chain struct {
	returnFirst bool
	entries     []entry
}

// ChainOption configures a Chain
type ChainOption func(*Chain)

// New creates a Chain. By default every step runs and all errors are returned.
func New(opts ...ChainOption) *Chain {
	chain := &Chain{
		entries: make([]entry, 0),
	}
	for _, opt := range opts {
		opt(chain)
	}
	return chain
}

// ReturnFirst stops the chain at the first failing step
func ReturnFirst() ChainOption {
	return func(c *Chain) { c.returnFirst = true }
}

// ReturnAll runs every step and combines their errors
func ReturnAll() ChainOption {
	return func(c *Chain) { c.returnFirst = false }
}

// AddStep appends a step. A nil step is skipped.
func (c *Chain) AddStep(name string, step Step) *Chain {
	if step != nil {
		c.entries = append(c.entries, entry{name: name, step: step})
	}
	return c
}

// AddError appends a step failing with err, nil errors included
func (c *Chain) AddError(name string, err error) *Chain {
	return c.AddStep(name, func(context.Context) error { return err })
}

// Run executes the steps. Every error is prefixed with the name of its step.
func (c *Chain) Run(ctx context.Context) error {
	var err error
	for _, e := range c.entries {
		stepErr := e.step(ctx)
		if stepErr == nil {
			continue
		}
		stepErr = fmt.Errorf("%s: %w", e.name, stepErr)
		if c.returnFirst {
			return stepErr
		}
		err = multierr.Append(err, stepErr)
	}
	return err
}
