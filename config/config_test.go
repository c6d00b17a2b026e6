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

package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/bittoy/syncengine/session"
	"github.com/bittoy/syncengine/transport"
)

func TestNewAppliesDefaults(t *testing.T) {
	c := New()
	require.Equal(t, transport.DefaultKeepaliveInterval, c.KeepaliveInterval)
	require.Equal(t, session.DefaultInactivityTimeout, c.InactivityTimeout)
	require.NotNil(t, c.Backend)
	require.NotNil(t, c.HTTPClient)
}

func TestWithOptionsOverrideDefaults(t *testing.T) {
	c := New(
		WithKeepalive(5*time.Second, time.Second),
		WithInactivityTimeout(30*time.Second),
	)
	require.Equal(t, 5*time.Second, c.KeepaliveInterval)
	require.Equal(t, time.Second, c.KeepaliveVariance)
	require.Equal(t, 30*time.Second, c.InactivityTimeout)
}

func TestTransportOptionsCarriesKeepalive(t *testing.T) {
	c := New(WithKeepalive(7*time.Second, time.Second))
	opts := c.TransportOptions()
	require.Len(t, opts, 2)
}
