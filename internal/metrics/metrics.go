// Package metrics exposes forwarder counters on a Prometheus registry.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const namespace = "forwarder"

// Metrics holds every forwarder collector on a private registry
type Metrics struct {
	registry *prometheus.Registry

	RecordsReceived  *prometheus.CounterVec
	RecordsAcked     prometheus.Counter
	RecordsDropped   *prometheus.CounterVec
	MessagesSent     *prometheus.CounterVec
	PublishFailures  *prometheus.CounterVec
	RenderFailures   *prometheus.CounterVec
	ActionSuspended  *prometheus.GaugeVec
	ResumeAttempts   *prometheus.CounterVec
	AuthReloads      *prometheus.CounterVec
	PublishDurations *prometheus.HistogramVec
}

// New creates the collectors and registers them with Go runtime and process metrics
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		RecordsReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_received_total",
			Help:      "Records read from the source",
		}, []string{"source"}),
		RecordsAcked: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_acked_total",
			Help:      "Records confirmed to the source after every action accepted them",
		}),
		RecordsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_dropped_total",
			Help:      "Records not delivered to an action",
		}, []string{"action", "reason"}),
		MessagesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_published_total",
			Help:      "Records handed to an action's socket",
		}, []string{"action"}),
		PublishFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "publish_failures_total",
			Help:      "Failed publish calls by error kind",
		}, []string{"action", "kind"}),
		RenderFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "render_failures_total",
			Help:      "Template rendering errors",
		}, []string{"action"}),
		ActionSuspended: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "action_suspended",
			Help:      "1 while an action waits for a successful resume",
		}, []string{"action"}),
		ResumeAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resume_attempts_total",
			Help:      "Socket rebuild attempts by outcome",
		}, []string{"action", "result"}),
		AuthReloads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auth_reloads_total",
			Help:      "Authenticator certificate reloads by outcome",
		}, []string{"result"}),
		PublishDurations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "publish_duration_seconds",
			Help:      "Time spent in one publish call, including socket setup",
			Buckets:   prometheus.ExponentialBuckets(0.00005, 4, 10),
		}, []string{"action"}),
	}

	m.registry.MustRegister(
		m.RecordsReceived,
		m.RecordsAcked,
		m.RecordsDropped,
		m.MessagesSent,
		m.PublishFailures,
		m.RenderFailures,
		m.ActionSuspended,
		m.ResumeAttempts,
		m.AuthReloads,
		m.PublishDurations,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the underlying Prometheus registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
