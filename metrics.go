// Copyright (c) 2026 BoundlessVR project contributors.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package minbit

import "github.com/prometheus/client_golang/prometheus"

// Metrics records per-engine counters for the error taxonomy and request
// lifecycle described in the protocol's error handling design. A nil
// *Metrics is a valid no-op receiver, so instrumentation stays opt-in via
// WithMetrics.
type Metrics struct {
	requestsCompleted *prometheus.CounterVec
	requestsTimedOut  prometheus.Counter
	headersDiscarded  prometheus.Counter
	schemaLoadErrors  prometheus.Counter
	activeConnections prometheus.Gauge
}

// NewMetrics constructs a Metrics recorder and registers its collectors
// with reg. Pass prometheus.NewRegistry() in tests to avoid colliding with
// the default global registry across parallel test binaries.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		requestsCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "minbit",
			Name:      "requests_completed_total",
			Help:      "Requests that reached Complete, by direction.",
		}, []string{"direction"}),
		requestsTimedOut: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "minbit",
			Name:      "requests_timed_out_total",
			Help:      "Outgoing requests that exceeded the request timeout.",
		}),
		headersDiscarded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "minbit",
			Name:      "headers_discarded_total",
			Help:      "Unknown headers or missing schema lengths that forced a read-buffer flush.",
		}),
		schemaLoadErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "minbit",
			Name:      "schema_load_errors_total",
			Help:      "Failed attempts to (re)load a schema JSON file.",
		}),
		activeConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "minbit",
			Name:      "active_connections",
			Help:      "Connections currently owned by a TCPServer or TCPClient harness.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.requestsCompleted, m.requestsTimedOut, m.headersDiscarded, m.schemaLoadErrors, m.activeConnections)
	}
	return m
}

func (m *Metrics) completed(direction Direction) {
	if m == nil {
		return
	}
	m.requestsCompleted.WithLabelValues(direction.String()).Inc()
}

func (m *Metrics) timedOut() {
	if m == nil {
		return
	}
	m.requestsTimedOut.Inc()
}

func (m *Metrics) headerDiscarded() {
	if m == nil {
		return
	}
	m.headersDiscarded.Inc()
}

func (m *Metrics) schemaLoadError() {
	if m == nil {
		return
	}
	m.schemaLoadErrors.Inc()
}

func (m *Metrics) connectionOpened() {
	if m == nil {
		return
	}
	m.activeConnections.Inc()
}

func (m *Metrics) connectionClosed() {
	if m == nil {
		return
	}
	m.activeConnections.Dec()
}
