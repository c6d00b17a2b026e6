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

package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"
)

func TestIncMessagesSentAndReceived(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.IncMessagesSent("ScopeSync")
	m.IncMessagesSent("ScopeSync")
	m.IncMessagesReceived("Ping")

	require.Equal(t, float64(2), counterValue(t, m.MessagesSent.WithLabelValues("ScopeSync")))
	require.Equal(t, float64(1), counterValue(t, m.MessagesReceived.WithLabelValues("Ping")))
}

func TestSessionAcceptedAndExpired(t *testing.T) {
	m := New(nil)
	m.SessionAccepted()
	m.SessionAccepted()
	m.SessionExpired()

	var out dto.Metric
	require.NoError(t, m.SessionsActive.Write(&out))
	require.Equal(t, float64(1), out.GetGauge().GetValue())
}

func TestObserveApplyCountsFragmentTypes(t *testing.T) {
	m := New(nil)
	m.ObserveApply("canvas", 0.01, []string{"add", "add", "change"})

	require.Equal(t, float64(2), counterValue(t, m.FragmentsApplied.WithLabelValues("add")))
	require.Equal(t, float64(1), counterValue(t, m.FragmentsApplied.WithLabelValues("change")))
}

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var out dto.Metric
	require.NoError(t, c.Write(&out))
	return out.GetCounter().GetValue()
}
