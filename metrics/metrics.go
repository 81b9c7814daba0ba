// Copyright 2011 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package metrics exposes Prometheus instrumentation for the transport
// package (SPEC_FULL.md §3 DOMAIN STACK), wiring the teacher's
// prometheus/client_golang dependency into the transport's lifecycle
// (bytes moved, packets per direction, rekeys, errors, live
// connections).
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Transport collects the counters and gauges one Transport instance
// updates as it runs. A nil *Transport is valid everywhere it's used
// as a method receiver below, so callers that don't want metrics can
// simply leave the field unset.
type Transport struct {
	BytesRead       prometheus.Counter
	BytesWritten    prometheus.Counter
	PacketsRead     prometheus.Counter
	PacketsWritten  prometheus.Counter
	RekeysStarted   prometheus.Counter
	RekeysCompleted prometheus.Counter
	Errors          *prometheus.CounterVec
	Connections     prometheus.Gauge
}

// New builds a Transport metrics set and registers it against reg. A
// nil reg uses prometheus.DefaultRegisterer.
func New(reg prometheus.Registerer, namespace string) *Transport {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Transport{
		BytesRead: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "transport", Name: "bytes_read_total",
			Help: "Total payload bytes of decoded SSH packets (padding and MAC excluded).",
		}),
		BytesWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "transport", Name: "bytes_written_total",
			Help: "Total payload bytes of encoded SSH packets, before framing and encryption.",
		}),
		PacketsRead: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "transport", Name: "packets_read_total",
			Help: "Total SSH packets decoded.",
		}),
		PacketsWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "transport", Name: "packets_written_total",
			Help: "Total SSH packets encoded.",
		}),
		RekeysStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "transport", Name: "rekeys_started_total",
			Help: "Total key exchanges entered, including the first.",
		}),
		RekeysCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "transport", Name: "rekeys_completed_total",
			Help: "Total key exchanges that installed new keys successfully.",
		}),
		Errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "transport", Name: "errors_total",
			Help: "Transport errors by disconnect reason.",
		}, []string{"reason"}),
		Connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "transport", Name: "connections",
			Help: "Transports currently open.",
		}),
	}
	reg.MustRegister(m.BytesRead, m.BytesWritten, m.PacketsRead, m.PacketsWritten,
		m.RekeysStarted, m.RekeysCompleted, m.Errors, m.Connections)
	return m
}

func (m *Transport) addBytesRead(n int) {
	if m == nil {
		return
	}
	m.BytesRead.Add(float64(n))
	m.PacketsRead.Inc()
}

func (m *Transport) addBytesWritten(n int) {
	if m == nil {
		return
	}
	m.BytesWritten.Add(float64(n))
	m.PacketsWritten.Inc()
}

// ObserveRead records one successfully decoded packet.
func (m *Transport) ObserveRead(payloadLen int) { m.addBytesRead(payloadLen) }

// ObserveWrite records one successfully encoded packet.
func (m *Transport) ObserveWrite(payloadLen int) { m.addBytesWritten(payloadLen) }

// RekeyStarted records entry into a key exchange.
func (m *Transport) RekeyStarted() {
	if m == nil {
		return
	}
	m.RekeysStarted.Inc()
}

// RekeyCompleted records a key exchange that installed new keys.
func (m *Transport) RekeyCompleted() {
	if m == nil {
		return
	}
	m.RekeysCompleted.Inc()
}

// Error records a terminal transport error by its DISCONNECT reason
// code, or "unclassified" if it carries none.
func (m *Transport) Error(reason string) {
	if m == nil {
		return
	}
	if reason == "" {
		reason = "unclassified"
	}
	m.Errors.WithLabelValues(reason).Inc()
}

// ConnOpened/ConnClosed track the live-connection gauge.
func (m *Transport) ConnOpened() {
	if m == nil {
		return
	}
	m.Connections.Inc()
}

func (m *Transport) ConnClosed() {
	if m == nil {
		return
	}
	m.Connections.Dec()
}
