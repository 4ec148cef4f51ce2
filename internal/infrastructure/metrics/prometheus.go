package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"readconfirm/internal/ports"
)

const namespace = "readconfirm"

// Registry owns the process collectors. Each instance has its own prometheus
// registry so tests can build several.
type Registry struct {
	registry        *prometheus.Registry
	actionOutcomes  *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
}

var _ ports.OutcomeRecorder = (*Registry)(nil)

func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()
	r := &Registry{
		registry: reg,
		actionOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "action_outcomes_total",
			Help:      "Confirmation and settings actions by outcome.",
		}, []string{"action", "outcome"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route pattern.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "code"}),
	}
	reg.MustRegister(
		r.actionOutcomes,
		r.requestDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

func (r *Registry) RecordOutcome(action string, outcome string) {
	r.actionOutcomes.WithLabelValues(action, outcome).Inc()
}

func (r *Registry) ObserveRequest(method string, route string, code int, elapsed time.Duration) {
	r.requestDuration.WithLabelValues(method, route, strconv.Itoa(code)).Observe(elapsed.Seconds())
}

// OutcomeCount reads a counter value back, for reports and tests.
func (r *Registry) OutcomeCount(action string, outcome string) float64 {
	families, err := r.registry.Gather()
	if err != nil {
		return 0
	}
	for _, family := range families {
		if family.GetName() != namespace+"_action_outcomes_total" {
			continue
		}
		for _, metric := range family.GetMetric() {
			labels := map[string]string{}
			for _, pair := range metric.GetLabel() {
				labels[pair.GetName()] = pair.GetValue()
			}
			if labels["action"] == action && labels["outcome"] == outcome {
				return metric.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}
