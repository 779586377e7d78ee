// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package platform

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the process-wide Prometheus collectors for the execution
// engine. Registration happens unconditionally and regardless of the debug
// flag, so an embedding program can scrape them even without DEBUG set.
type Metrics struct {
	ActiveWorkers   prometheus.Gauge
	BlocksFailed    *prometheus.CounterVec
	BlocksCompleted *prometheus.CounterVec
	ControlCalls    *prometheus.HistogramVec
	registerer      prometheus.Registerer
}

func newMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	m := &Metrics{
		registerer: reg,
		ActiveWorkers: factory.NewGauge(prometheus.GaugeOpts{
			Name: "flowgraph_active_workers",
			Help: "Number of block worker goroutines currently running.",
		}),
		BlocksFailed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "flowgraph_blocks_failed_total",
			Help: "Total number of blocks that transitioned to Failed.",
		}, []string{"block"}),
		BlocksCompleted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "flowgraph_blocks_completed_total",
			Help: "Total number of blocks that transitioned to Completed.",
		}, []string{"block"}),
		ControlCalls: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "flowgraph_control_call_latency_seconds",
			Help:    "Time spent running each Graph.Call control method on its block's worker.",
			Buckets: prometheus.DefBuckets,
		}, []string{"block", "method"}),
	}
	return m
}

// Registerer exposes the underlying Prometheus registry so an embedding
// program can wire it into its own /metrics HTTP handler.
func (m *Metrics) Registerer() prometheus.Registerer {
	return m.registerer
}
