//
// Copyright 2018-2025 Cristian Maglie. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

package zipfetch

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics collects Prometheus metrics about fetcher runs. A single Metrics
// can be shared by any number of fetchers.
type Metrics struct {
	fetchesTotal    *prometheus.CounterVec
	entriesTotal    *prometheus.CounterVec
	bytesExtracted  prometheus.Counter
	durationSeconds prometheus.Histogram
	inProgress      prometheus.Gauge
}

// NewMetrics creates the fetcher metrics and registers them with reg. If reg
// is nil the metrics are created but not registered.
//
//   - zipfetch_fetches_total{outcome}: finished runs, "success" or "failure"
//   - zipfetch_entries_total{kind}: archive entries seen, "file", "dir" or "hidden"
//   - zipfetch_bytes_extracted_total: decompressed bytes written to disk
//   - zipfetch_fetch_duration_seconds: duration of the runs
//   - zipfetch_fetches_in_progress: runs currently executing
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		fetchesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "zipfetch_fetches_total",
				Help: "Archive fetches by outcome.",
			},
			[]string{"outcome"},
		),
		entriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "zipfetch_entries_total",
				Help: "Archive entries processed by kind.",
			},
			[]string{"kind"},
		),
		bytesExtracted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "zipfetch_bytes_extracted_total",
			Help: "Decompressed bytes written to disk.",
		}),
		durationSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "zipfetch_fetch_duration_seconds",
			Help:    "Duration of archive fetches.",
			Buckets: prometheus.ExponentialBuckets(0.1, 4, 8),
		}),
		inProgress: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "zipfetch_fetches_in_progress",
			Help: "Archive fetches currently running.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.fetchesTotal, m.entriesTotal, m.bytesExtracted, m.durationSeconds, m.inProgress)
	}
	return m
}

// The methods below accept a nil receiver so that the fetcher can call them
// unconditionally.

func (m *Metrics) runStarted() {
	if m == nil {
		return
	}
	m.inProgress.Inc()
}

func (m *Metrics) runFinished(success bool, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.inProgress.Dec()
	outcome := "failure"
	if success {
		outcome = "success"
	}
	m.fetchesTotal.WithLabelValues(outcome).Inc()
	m.durationSeconds.Observe(elapsed.Seconds())
}

func (m *Metrics) entry(kind string) {
	if m == nil {
		return
	}
	m.entriesTotal.WithLabelValues(kind).Inc()
}

func (m *Metrics) bytesWritten(n int) {
	if m == nil {
		return
	}
	m.bytesExtracted.Add(float64(n))
}
