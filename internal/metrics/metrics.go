package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var (
	// Registry is the dedicated Prometheus registry for the service.
	Registry = prometheus.NewRegistry()

	// ProviderRequests counts Uber Direct API calls by operation and status code.
	ProviderRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "uber_api_requests_total", Help: "Uber Direct API requests by operation and status."},
		[]string{"op", "status"},
	)

	// WebhookEvents counts inbound webhook events by kind and outcome.
	WebhookEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "uber_webhook_events_total", Help: "Inbound webhook events by kind and outcome."},
		[]string{"kind", "outcome"},
	)

	// TaskRuns counts background task executions by name and outcome.
	TaskRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "task_runs_total", Help: "Background task executions by name and outcome."},
		[]string{"name", "outcome"},
	)
)

var regOnce sync.Once

// Register registers all collectors on the service registry.
func Register() {
	regOnce.Do(func() {
		Registry.MustRegister(ProviderRequests)
		Registry.MustRegister(WebhookEvents)
		Registry.MustRegister(TaskRuns)
		Registry.MustRegister(collectors.NewGoCollector())
		Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	})
}
