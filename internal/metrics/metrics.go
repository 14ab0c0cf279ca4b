package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kode4food/quarry/pkg/api"
)

// Metrics holds the engine's instruments. Each instance owns its registry
// so that multiple engines (in tests, say) never collide
type Metrics struct {
	registry         *prometheus.Registry
	flowsStarted     *prometheus.CounterVec
	flowsTerminal    *prometheus.CounterVec
	handlerRuns      *prometheus.CounterVec
	responsesDropped *prometheus.CounterVec
	requestTimeouts  prometheus.Counter
	transportErrors  prometheus.Counter
	flowCounters     *prometheus.CounterVec
}

const namespace = "quarry"

// New creates a metrics set with a fresh registry
func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Metrics{
		registry: reg,
		flowsStarted: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "flows_started_total",
			Help:      "Count of flows started, by flow type.",
		}, []string{"flow_type"}),
		flowsTerminal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "flows_terminal_total",
			Help:      "Count of flows reaching a terminal status.",
		}, []string{"flow_type", "status"}),
		handlerRuns: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "handler_invocations_total",
			Help:      "Count of state handler invocations.",
		}, []string{"flow_type", "state"}),
		responsesDropped: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "responses_dropped_total",
			Help:      "Count of responses that were not recorded.",
		}, []string{"reason"}),
		requestTimeouts: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "request_timeouts_total",
			Help:      "Count of requests force-completed by their deadline.",
		}),
		transportErrors: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transport_errors_total",
			Help:      "Count of actions the transport failed to deliver.",
		}),
		flowCounters: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "flow_counter_total",
			Help:      "Counters incremented by flow handlers.",
		}, []string{"flow_type", "name"}),
	}
}

// Handler returns an HTTP handler exposing the registry
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the registry the instruments are bound to
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) FlowStarted(typ api.FlowType) {
	m.flowsStarted.WithLabelValues(string(typ)).Inc()
}

func (m *Metrics) FlowTerminal(typ api.FlowType, status api.FlowStatus) {
	m.flowsTerminal.WithLabelValues(string(typ), string(status)).Inc()
}

func (m *Metrics) HandlerInvoked(typ api.FlowType, state api.StateID) {
	m.handlerRuns.WithLabelValues(string(typ), string(state)).Inc()
}

func (m *Metrics) ResponseDropped(reason string) {
	m.responsesDropped.WithLabelValues(reason).Inc()
}

func (m *Metrics) RequestTimedOut() {
	m.requestTimeouts.Inc()
}

func (m *Metrics) TransportFailed() {
	m.transportErrors.Inc()
}

// FlowCounter increments a counter a handler asked for through Inc
func (m *Metrics) FlowCounter(typ api.FlowType, name string) {
	m.flowCounters.WithLabelValues(string(typ), name).Inc()
}
