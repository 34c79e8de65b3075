package server

import (
	"strconv"

	"github.com/mikekulinski/zkstate/pkg/zookeeper"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics are kept in a registry owned by one server, so several servers can live in one process.
type Metrics struct {
	Registry *prometheus.Registry

	requests           *prometheus.CounterVec
	protocolViolations prometheus.Counter
	recoveredPanics    prometheus.Counter
	znodes             prometheus.Gauge
	ephemerals         prometheus.Gauge
	sessions           prometheus.Gauge
	lastZxid           prometheus.Gauge
}

func NewMetrics() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "zkstate",
				Subsystem: "server",
				Name:      "requests_total",
				Help:      "Counter of requests applied, by opcode and result code.",
			}, []string{"opcode", "code"}),
		protocolViolations: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "zkstate",
				Subsystem: "server",
				Name:      "protocol_violations_total",
				Help:      "Counter of requests that broke the request contract.",
			}),
		recoveredPanics: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "zkstate",
				Subsystem: "server",
				Name:      "recovered_panics_total",
				Help:      "Counter of panics turned into system errors.",
			}),
		znodes: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "zkstate",
				Subsystem: "tree",
				Name:      "znodes",
				Help:      "Number of nodes in the tree, the root included.",
			}),
		ephemerals: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "zkstate",
				Subsystem: "tree",
				Name:      "ephemeral_nodes",
				Help:      "Number of ephemeral nodes.",
			}),
		sessions: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "zkstate",
				Subsystem: "session",
				Name:      "open",
				Help:      "Number of open sessions.",
			}),
		lastZxid: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "zkstate",
				Subsystem: "server",
				Name:      "last_zxid",
				Help:      "The last zxid handed out.",
			}),
	}
	m.Registry.MustRegister(
		m.requests,
		m.protocolViolations,
		m.recoveredPanics,
		m.znodes,
		m.ephemerals,
		m.sessions,
		m.lastZxid,
	)
	return m
}

func (m *Metrics) observe(op string, resp zookeeper.Response) {
	m.requests.WithLabelValues(op, strconv.Itoa(int(resp.Err))).Inc()
	m.lastZxid.Set(float64(resp.Zxid))
}
