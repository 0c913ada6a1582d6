package launcher

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/xaionaro-go/enginelauncher/pkg/glutbridge"
	"github.com/xaionaro-go/enginelauncher/pkg/logredirect"
)

type Metrics struct {
	State                *prometheus.GaugeVec
	StageDuration        *prometheus.HistogramVec
	RegistrationOutcomes *prometheus.CounterVec
	ExitCode             prometheus.Gauge
	LogRedirect          *logredirect.Metrics
}

func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		State: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "state",
			Help:      "1 for the current bootstrap state, 0 for the others.",
		}, []string{"state"}),
		StageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Time spent reaching each bootstrap state.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10),
		}, []string{"state"}),
		RegistrationOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "registration_outcomes_total",
			Help:      "Entry point registration outcomes.",
		}, []string{"outcome"}),
		ExitCode: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "exit_code",
			Help:      "The exit code of the bootstrap sequence, -1 while it is running.",
		}),
		LogRedirect: logredirect.NewMetrics(namespace),
	}
}

func (m *Metrics) Collectors() []prometheus.Collector {
	return append(
		[]prometheus.Collector{m.State, m.StageDuration, m.RegistrationOutcomes, m.ExitCode},
		m.LogRedirect.Collectors()...,
	)
}

func (m *Metrics) observeState(state State, seconds float64) {
	if m == nil {
		return
	}
	for _, s := range AllStates() {
		v := 0.0
		if s == state {
			v = 1
		}
		m.State.WithLabelValues(s.String()).Set(v)
	}
	m.StageDuration.WithLabelValues(state.String()).Observe(seconds)
}

func (m *Metrics) observeReport(report *glutbridge.RegistrationReport) {
	if m == nil || report == nil {
		return
	}
	for _, o := range glutbridge.AllOutcomes() {
		if n := report.Count(o); n > 0 {
			m.RegistrationOutcomes.WithLabelValues(o.String()).Add(float64(n))
		}
	}
}

func (m *Metrics) observeExitCode(code ExitCode) {
	if m == nil {
		return
	}
	m.ExitCode.Set(float64(code))
}
