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

package address

import (
	"strings"

	"github.com/tidwall/match"
)

// IDSeparator separates the segments of a hierarchical identifier
const IDSeparator = "."

// IsPattern reports whether the given string contains wildcard characters
func IsPattern(s string) bool {
	return match.IsPattern(s)
}

// MatchID reports whether the message identifier id matches pattern.
// '*' matches any run of characters and '?' exactly one character.
func MatchID(pattern, id string) bool {
	if pattern == id {
		return true
	}
	return match.Match(id, pattern)
}

// ValidateID returns an error when id is not a usable identifier
func ValidateID(id string) error {
	if strings.TrimSpace(id) == "" {
		return ErrInvalidIdentifier
	}
	for _, segment := range strings.Split(id, IDSeparator) {
		if segment == "" {
			return ErrInvalidIdentifier
		}
	}
	return nil
}
