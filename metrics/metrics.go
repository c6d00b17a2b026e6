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

// Package metrics instruments the scope/session/transport stack with
// Prometheus collectors, the same CounterVec/HistogramVec shape the
// teacher's engine/metrics.go uses. Unlike the teacher, collectors are
// constructed and registered explicitly by New(registerer) rather than
// registered against the global prometheus.DefaultRegisterer from an
// init() function, so an embedder running multiple engines in one process
// does not collide on metric names.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics is the full set of collectors this module publishes.
type Metrics struct {
	FragmentsApplied *prometheus.CounterVec
	ApplyDuration    *prometheus.HistogramVec
	SessionsActive   prometheus.Gauge
	MessagesSent     *prometheus.CounterVec
	MessagesReceived *prometheus.CounterVec
	ScopeSyncPeers   prometheus.Histogram
}

// New builds and registers every collector against reg. Passing nil
// builds unregistered collectors, useful in tests that don't care about
// scraping.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		FragmentsApplied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "syncengine",
			Subsystem: "scope",
			Name:      "fragments_applied_total",
			Help:      "Fragments successfully applied, by fragment type.",
		}, []string{"type"}),
		ApplyDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "syncengine",
			Subsystem: "scope",
			Name:      "apply_duration_seconds",
			Help:      "Latency of ApplySyncFragments batches.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"scope"}),
		SessionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "syncengine",
			Subsystem: "session",
			Name:      "active",
			Help:      "Currently accepted, unexpired sessions.",
		}),
		MessagesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "syncengine",
			Subsystem: "transport",
			Name:      "messages_sent_total",
			Help:      "Outbound messages, by type.",
		}, []string{"type"}),
		MessagesReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "syncengine",
			Subsystem: "transport",
			Name:      "messages_received_total",
			Help:      "Inbound messages, by type.",
		}, []string{"type"}),
		ScopeSyncPeers: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "syncengine",
			Subsystem: "session",
			Name:      "scope_sync_fanout_peers",
			Help:      "Peer sessions a ScopeSync broadcast was forwarded to.",
			Buckets:   prometheus.LinearBuckets(0, 2, 8),
		}),
	}
	if reg != nil {
		reg.MustRegister(
			m.FragmentsApplied,
			m.ApplyDuration,
			m.SessionsActive,
			m.MessagesSent,
			m.MessagesReceived,
			m.ScopeSyncPeers,
		)
	}
	return m
}

// IncMessagesSent satisfies transport.MessageCounter.
func (m *Metrics) IncMessagesSent(msgType string) { m.MessagesSent.WithLabelValues(msgType).Inc() }

// IncMessagesReceived satisfies transport.MessageCounter.
func (m *Metrics) IncMessagesReceived(msgType string) {
	m.MessagesReceived.WithLabelValues(msgType).Inc()
}

// SessionAccepted satisfies session.SessionMetrics.
func (m *Metrics) SessionAccepted() { m.SessionsActive.Inc() }

// SessionExpired satisfies session.SessionMetrics.
func (m *Metrics) SessionExpired() { m.SessionsActive.Dec() }

// ObserveApply records one ApplySyncFragments batch's fragment types and
// latency, for a scope-layer caller that wraps Scope.ApplySyncFragments.
func (m *Metrics) ObserveApply(scopeName string, seconds float64, fragmentTypes []string) {
	m.ApplyDuration.WithLabelValues(scopeName).Observe(seconds)
	for _, ft := range fragmentTypes {
		m.FragmentsApplied.WithLabelValues(ft).Inc()
	}
}

// ObserveScopeSyncFanout records how many peer sessions one outbound
// ScopeSync broadcast reached.
func (m *Metrics) ObserveScopeSyncFanout(peers int) {
	m.ScopeSyncPeers.Observe(float64(peers))
}
