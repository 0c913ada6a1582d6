package logredirect

import (
	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	ForwardedLines *prometheus.CounterVec
	ForwardedBytes *prometheus.CounterVec
	SinkErrors     *prometheus.CounterVec
}

func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		ForwardedLines: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "logredirect",
			Name:      "forwarded_lines_total",
			Help:      "Lines captured from a redirected stream and passed to the sink.",
		}, []string{"tag"}),
		ForwardedBytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "logredirect",
			Name:      "forwarded_bytes_total",
			Help:      "Bytes captured from a redirected stream and passed to the sink.",
		}, []string{"tag"}),
		SinkErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "logredirect",
			Name:      "sink_errors_total",
			Help:      "Lines the sink failed to accept.",
		}, []string{"tag"}),
	}
}

func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{m.ForwardedLines, m.ForwardedBytes, m.SinkErrors}
}

func (m *Metrics) observe(tag string, line string, err error) {
	if m == nil {
		return
	}
	m.ForwardedLines.WithLabelValues(tag).Inc()
	m.ForwardedBytes.WithLabelValues(tag).Add(float64(len(line)))
	if err != nil {
		m.SinkErrors.WithLabelValues(tag).Inc()
	}
}
