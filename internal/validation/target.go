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

package validation

import (
	"fmt"
	"strings"

	"github.com/tochemey/gobus/address"
)

// targetValidator checks a connection target
type targetValidator struct {
	target    string
	transport address.Transport
}

var _ Validator = (*targetValidator)(nil)

// NewTargetValidator creates a validator for a host:port (tcp) or
// path[:port] (unix) connection target
func NewTargetValidator(target string, transport address.Transport) Validator {
	return &targetValidator{target: target, transport: transport}
}

// Validate implements Validator
func (v *targetValidator) Validate() error {
	if _, err := address.ParseTarget(v.target, v.transport); err != nil {
		return fmt.Errorf("invalid target=(%s): %w", v.target, err)
	}
	return nil
}

// identifierValidator checks a hierarchical identifier or pattern
type identifierValidator struct {
	field string
	id    string
}

// NewIdentifierValidator creates a validator for a hierarchical identifier
func NewIdentifierValidator(field, id string) Validator {
	return &identifierValidator{field: field, id: id}
}

// Validate implements Validator
func (v *identifierValidator) Validate() error {
	if err := address.ValidateID(v.id); err != nil {
		return fmt.Errorf("the [%s] is invalid (%s): %w", v.field, v.id, err)
	}
	return nil
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}
