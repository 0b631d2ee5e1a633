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

import "errors"

type assertion struct {
	ok      bool
	message string
}

// NewBooleanValidator creates a validator failing with message when ok is false
func NewBooleanValidator(ok bool, message string) Validator {
	return assertion{ok: ok, message: message}
}

// Validate implements Validator
func (a assertion) Validate() error {
	if a.ok {
		return nil
	}
	return errors.New(a.message)
}

type requiredString struct {
	field string
	value string
}

// NewEmptyStringValidator creates a validator failing when value is blank
func NewEmptyStringValidator(field, value string) Validator {
	return requiredString{field: field, value: value}
}

// Validate implements Validator
func (v requiredString) Validate() error {
	if isBlank(v.value) {
		return errors.New("the [" + v.field + "] is required")
	}
	return nil
}
