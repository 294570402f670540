package core

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/filedepot/filedepot/pkg/metrics"
)

type Metrics struct {
	apiResponseTime    *prometheus.HistogramVec
	apiErrorCounter    *prometheus.CounterVec
	scanJobCounter     *prometheus.CounterVec
	scanDuration       *prometheus.HistogramVec
	quarantineCounter  *prometheus.CounterVec
	replicationCounter *prometheus.CounterVec
	queueDepth         *prometheus.GaugeVec
}

func NewMetrics(ns, system string) *Metrics {
	// setup metric
	metrics.SetupMetricsManager(ns, system, prometheus.DefaultRegisterer.(*prometheus.Registry))

	m := &Metrics{
		apiResponseTime:    metrics.NewHistogramVec("api_response_time", []string{"api"}),
		apiErrorCounter:    metrics.NewCounterVec("api_error", []string{"method", "api", "status"}),
		scanJobCounter:     metrics.NewCounterVec("scan_job_total", []string{"result"}),
		scanDuration:       metrics.NewHistogramVec("scan_duration_seconds", nil),
		quarantineCounter:  metrics.NewCounterVec("quarantine_total", []string{"action"}),
		replicationCounter: metrics.NewCounterVec("replication_job_total", []string{"result"}),
		queueDepth:         metrics.NewGaugeVec("queue_depth", []string{"queue", "status"}),
	}

	return m
}

func (m *Metrics) ApiResponseTimer(api string) *prometheus.Timer {
	return prometheus.NewTimer(m.apiResponseTime.WithLabelValues(api))
}

func (m *Metrics) ApiErrorInc(method, api string, status int) {
	m.apiErrorCounter.WithLabelValues(method, api, strconv.Itoa(status)).Inc()
}

func (m *Metrics) ScanJobInc(result string) {
	m.scanJobCounter.WithLabelValues(result).Inc()
}

func (m *Metrics) ScanTimer() *prometheus.Timer {
	return prometheus.NewTimer(m.scanDuration.WithLabelValues())
}

func (m *Metrics) QuarantineInc(action string) {
	m.quarantineCounter.WithLabelValues(action).Inc()
}

func (m *Metrics) ReplicationJobInc(result string) {
	m.replicationCounter.WithLabelValues(result).Inc()
}

func (m *Metrics) SetQueueDepth(queue, status string, depth int64) {
	m.queueDepth.WithLabelValues(queue, status).Set(float64(depth))
}
