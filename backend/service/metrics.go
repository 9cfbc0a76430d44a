package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the job collectors exported on /metrics
type Metrics struct {
	JobsTotal   *prometheus.CounterVec
	JobDuration prometheus.Histogram
	Iterations  prometheus.Histogram
	JobsRunning prometheus.Gauge
}

// NewMetrics creates the job collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		JobsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "apcluster",
				Name:      "jobs_total",
				Help:      "Clustering jobs by final status",
			},
			[]string{"status"},
		),
		JobDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "apcluster",
				Name:      "job_duration_seconds",
				Help:      "Wall time of finished clustering jobs",
				Buckets:   prometheus.ExponentialBuckets(0.01, 4, 10),
			},
		),
		Iterations: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "apcluster",
				Name:      "iterations",
				Help:      "Message-passing iterations per completed job",
				Buckets:   prometheus.ExponentialBuckets(10, 2, 10),
			},
		),
		JobsRunning: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "apcluster",
				Name:      "jobs_running",
				Help:      "Clustering jobs currently holding a worker slot",
			},
		),
	}
}
