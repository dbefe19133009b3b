// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the stub server's Prometheus collectors.
type Metrics struct {
	Registry      *prometheus.Registry
	Requests      *prometheus.CounterVec
	BytesStreamed prometheus.Counter
	ActiveStreams prometheus.Gauge
}

// NewMetrics creates collectors registered on a private registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lerit",
			Subsystem: "stub",
			Name:      "requests_total",
			Help:      "Chat requests by response status code.",
		}, []string{"status"}),
		BytesStreamed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "lerit",
			Subsystem: "stub",
			Name:      "streamed_bytes_total",
			Help:      "Reply bytes written to clients.",
		}),
		ActiveStreams: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "lerit",
			Subsystem: "stub",
			Name:      "active_streams",
			Help:      "Replies currently being streamed.",
		}),
	}
	m.Registry.MustRegister(m.Requests, m.BytesStreamed, m.ActiveStreams)
	return m
}

func (m *Metrics) observeStatus(code int) {
	m.Requests.WithLabelValues(strconv.Itoa(code)).Inc()
}
