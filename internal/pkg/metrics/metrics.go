package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "ess_gateway"

// Metrics holds the business counters exposed on /metrics.
type Metrics struct {
	registry *prometheus.Registry

	InboundResponses   *prometheus.CounterVec
	Transitions        *prometheus.CounterVec
	TaskOutcomes       *prometheus.CounterVec
	CallbackDeliveries *prometheus.CounterVec
	LedgerEvents       *prometheus.CounterVec

	ApplicationBacklog *prometheus.GaugeVec
	TaskBacklog        *prometheus.GaugeVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		InboundResponses: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "inbound_responses_total",
			Help:      "Responses returned to the portal by message type and response code.",
		}, []string{"message_type", "response_code"}),
		Transitions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "application_transitions_total",
			Help:      "Application status transitions.",
		}, []string{"from", "to"}),
		TaskOutcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "task_outcomes_total",
			Help:      "Durable task executions by kind and outcome.",
		}, []string{"kind", "outcome"}),
		CallbackDeliveries: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "callback_deliveries_total",
			Help:      "Outbound callback delivery attempts by message type and outcome.",
		}, []string{"message_type", "outcome"}),
		LedgerEvents: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ledger_events_total",
			Help:      "Ledger events received by type and outcome.",
		}, []string{"type", "outcome"}),
		ApplicationBacklog: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "applications",
			Help:      "Applications currently in each non-terminal status.",
		}, []string{"status"}),
		TaskBacklog: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "tasks",
			Help:      "Durable tasks by status.",
		}, []string{"status"}),
	}
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// The helpers below are nil-safe so components can run without metrics in tests.

func (m *Metrics) ObserveResponse(messageType, code string) {
	if m == nil {
		return
	}
	m.InboundResponses.WithLabelValues(messageType, code).Inc()
}

func (m *Metrics) ObserveTransition(from, to string) {
	if m == nil {
		return
	}
	m.Transitions.WithLabelValues(from, to).Inc()
}

func (m *Metrics) ObserveTask(kind, outcome string) {
	if m == nil {
		return
	}
	m.TaskOutcomes.WithLabelValues(kind, outcome).Inc()
}

func (m *Metrics) ObserveCallback(messageType, outcome string) {
	if m == nil {
		return
	}
	m.CallbackDeliveries.WithLabelValues(messageType, outcome).Inc()
}

func (m *Metrics) ObserveLedgerEvent(eventType, outcome string) {
	if m == nil {
		return
	}
	m.LedgerEvents.WithLabelValues(eventType, outcome).Inc()
}

func (m *Metrics) SetApplications(status string, n int64) {
	if m == nil {
		return
	}
	m.ApplicationBacklog.WithLabelValues(status).Set(float64(n))
}

func (m *Metrics) SetTasks(status string, n int64) {
	if m == nil {
		return
	}
	m.TaskBacklog.WithLabelValues(status).Set(float64(n))
}
