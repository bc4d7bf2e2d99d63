// Package metrics exposes Prometheus counters for the alarm lifecycle.
//
// A nil *Metrics is valid and records nothing, so components can take one
// optionally.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "brewlog"

// Metrics holds the alarm lifecycle counters.
type Metrics struct {
	armed     *prometheus.CounterVec
	cancelled *prometheus.CounterVec
	fired     *prometheus.CounterVec
	recovered *prometheus.CounterVec
	tasks     *prometheus.CounterVec
}

// New creates the counters and registers them with reg.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		armed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alarms_armed_total",
			Help:      "Arm attempts by result (armed, missed, inactive, failed).",
		}, []string{"result"}),
		cancelled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alarms_cancelled_total",
			Help:      "Registration cancellations by scope (alarm, batch, all).",
		}, []string{"scope"}),
		fired: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alarms_fired_total",
			Help:      "Executor invocations by outcome (delivered, suppressed, failed).",
		}, []string{"outcome"}),
		recovered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recovery_alarms_total",
			Help:      "Alarms handled by boot recovery, by result.",
		}, []string{"result"}),
		tasks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "queue_tasks_total",
			Help:      "Deferred-task executions by result (done, retried, dropped).",
		}, []string{"backend", "result"}),
	}

	for _, c := range []prometheus.Collector{m.armed, m.cancelled, m.fired, m.recovered, m.tasks} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Handler serves the metrics gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// Armed counts one arm attempt.
func (m *Metrics) Armed(result string) {
	if m == nil {
		return
	}
	m.armed.WithLabelValues(result).Inc()
}

// Cancelled counts one cancellation.
func (m *Metrics) Cancelled(scope string) {
	if m == nil {
		return
	}
	m.cancelled.WithLabelValues(scope).Inc()
}

// Fired counts one executor invocation.
func (m *Metrics) Fired(outcome string) {
	if m == nil {
		return
	}
	m.fired.WithLabelValues(outcome).Inc()
}

// Recovered adds n alarms with the given recovery result.
func (m *Metrics) Recovered(result string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.recovered.WithLabelValues(result).Add(float64(n))
}

// Task counts one deferred-task execution.
func (m *Metrics) Task(backend, result string) {
	if m == nil {
		return
	}
	m.tasks.WithLabelValues(backend, result).Inc()
}
