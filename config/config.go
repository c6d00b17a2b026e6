/*
 * Copyright 2026 The Syncengine Authors.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package config centralizes the engine-wide knobs an embedder chooses
// once at startup: ping schedule, inactivity timeout, the persistence
// backend, the metrics registerer, the procedure HTTP client and the
// logger. It follows the teacher's types.NewConfig(opts ...Option)
// functional-options shape rather than a struct literal, so new knobs can
// be added without breaking existing callers.
package config

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/bittoy/syncengine/logger"
	"github.com/bittoy/syncengine/procedure"
	"github.com/bittoy/syncengine/scope"
	"github.com/bittoy/syncengine/session"
	"github.com/bittoy/syncengine/transport"
)

// Config is the resolved, immutable set of engine-wide defaults. Build one
// with New.
type Config struct {
	KeepaliveInterval time.Duration
	KeepaliveVariance time.Duration
	InactivityTimeout time.Duration

	Backend    scope.Backend
	Registerer prometheus.Registerer
	HTTPClient procedure.Client
	Logger     logger.Logger
}

// Option configures a Config at construction time.
type Option func(*Config)

func WithKeepalive(interval, variance time.Duration) Option {
	return func(c *Config) {
		if interval > 0 {
			c.KeepaliveInterval = interval
		}
		c.KeepaliveVariance = variance
	}
}

func WithInactivityTimeout(d time.Duration) Option {
	return func(c *Config) {
		if d > 0 {
			c.InactivityTimeout = d
		}
	}
}

func WithBackend(b scope.Backend) Option {
	return func(c *Config) {
		if b != nil {
			c.Backend = b
		}
	}
}

func WithRegisterer(r prometheus.Registerer) Option {
	return func(c *Config) { c.Registerer = r }
}

func WithHTTPClient(client procedure.Client) Option {
	return func(c *Config) {
		if client != nil {
			c.HTTPClient = client
		}
	}
}

func WithLogger(l logger.Logger) Option {
	return func(c *Config) {
		if l != nil {
			c.Logger = l
		}
	}
}

// New builds a Config with the spec's documented defaults (spec §4.7,
// §4.8), overridden by opts in order.
func New(opts ...Option) *Config {
	c := &Config{
		KeepaliveInterval: transport.DefaultKeepaliveInterval,
		KeepaliveVariance: transport.DefaultKeepaliveVariance,
		InactivityTimeout: session.DefaultInactivityTimeout,
		Backend:           scope.NewInMemoryBackend(),
		Registerer:        prometheus.DefaultRegisterer,
		HTTPClient:        procedure.NewDefaultClient(),
		Logger:            logger.Nop{},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// TransportOptions adapts this Config's keepalive settings and logger into
// transport.Option values, so a caller wiring a new transport.Transport
// does not have to re-derive them.
func (c *Config) TransportOptions() []transport.Option {
	return []transport.Option{
		transport.WithKeepalive(c.KeepaliveInterval, c.KeepaliveVariance),
		transport.WithLogger(c.Logger),
	}
}
