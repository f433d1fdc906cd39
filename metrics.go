package pgwire

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus instrumentation a Session reports through
// when attached via WithMetrics/WithPrometheusRegisterer. Registration is
// opt-in: a nil *Metrics disables recording entirely.
type Metrics struct {
	queryTotal     *prometheus.CounterVec
	queryLatency   *prometheus.HistogramVec
	connectTotal   prometheus.Counter
	connectFailure prometheus.Counter
	copyRowsTotal  prometheus.Counter
}

// NewMetrics constructs a Metrics recorder and registers its collectors
// against reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		queryTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pgwire_query_total",
				Help: "Total number of queries executed, by command tag.",
			},
			[]string{"command"},
		),
		queryLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pgwire_query_latency_seconds",
				Help:    "Query round-trip latency in seconds.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"command"},
		),
		connectTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pgwire_connect_total",
			Help: "Total number of connection attempts.",
		}),
		connectFailure: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pgwire_connect_failure_total",
			Help: "Total number of connection attempts that failed.",
		}),
		copyRowsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pgwire_copy_rows_total",
			Help: "Total number of rows sent through CopyIn streams.",
		}),
	}

	reg.MustRegister(m.queryTotal, m.queryLatency, m.connectTotal, m.connectFailure, m.copyRowsTotal)
	return m
}

func (m *Metrics) observeQuery(command string, seconds float64) {
	if m == nil {
		return
	}
	m.queryTotal.WithLabelValues(command).Inc()
	m.queryLatency.WithLabelValues(command).Observe(seconds)
}

func (m *Metrics) observeConnect(ok bool) {
	if m == nil {
		return
	}
	m.connectTotal.Inc()
	if !ok {
		m.connectFailure.Inc()
	}
}

func (m *Metrics) observeCopyRows(n int) {
	if m == nil {
		return
	}
	m.copyRowsTotal.Add(float64(n))
}
