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

package mdns

import (
	"time"

	"github.com/tochemey/gobus/internal/validation"
)

const (
	// DefaultService is the DNS-SD service type registered by bus nodes
	DefaultService = "_gobus._tcp"
	// DefaultDomain is the mDNS domain
	DefaultDomain = "local."
	// DefaultBrowseTimeout bounds a single browse round
	DefaultBrowseTimeout = 2 * time.Second
	// DefaultInterval is the period between two browse rounds
	DefaultInterval = 10 * time.Second
)

// Config defines the mDNS provider settings
type Config struct {
	// Instance is the service instance name, the peer id of the process
	Instance string
	// Service specifies the service type
	Service string
	// Domain specifies the service domain
	Domain string
	// Port specifies the port the server listener is bound to
	Port int
	// IPv6 states whether to report ipv6 addresses instead of ipv4
	IPv6          bool
	BrowseTimeout time.Duration
	Interval      time.Duration
}

func (x *Config) sanitize() {
	if x.Service == "" {
		x.Service = DefaultService
	}
	if x.Domain == "" {
		x.Domain = DefaultDomain
	}
	if x.BrowseTimeout <= 0 {
		x.BrowseTimeout = DefaultBrowseTimeout
	}
	if x.Interval <= 0 {
		x.Interval = DefaultInterval
	}
}

// Validate checks the configuration
func (x Config) Validate() error {
	return validation.New(validation.FailFast()).
		AddValidator(validation.NewEmptyStringValidator("Instance", x.Instance)).
		AddValidator(validation.NewEmptyStringValidator("Service", x.Service)).
		AddValidator(validation.NewEmptyStringValidator("Domain", x.Domain)).
		AddAssertion(x.Port > 0 && x.Port <= 65535, "Port is invalid").
		Validate()
}
