// Package metrics exposes Prometheus collectors for the cast lifecycle.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Publish and dispatch outcomes used as the "result" label.
const (
	ResultPosted  = "posted"
	ResultFailed  = "failed"
	ResultSkipped = "skipped"
	ResultOK      = "ok"
	ResultRetry   = "retry"
)

// Metrics records lifecycle events.  Implementations must be safe for
// concurrent use.
type Metrics interface {
	CastScheduled()
	CastCancelled()
	CastPublished(result string)
	JobDispatched(result string)
	JobsPending(n int64)
	ObserveRequest(route string, status int, elapsed time.Duration)
}

type promMetrics struct {
	scheduled  prometheus.Counter
	cancelled  prometheus.Counter
	published  *prometheus.CounterVec
	dispatched *prometheus.CounterVec
	pending    prometheus.Gauge
	requests   *prometheus.HistogramVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) Metrics {
	m := &promMetrics{}

	m.scheduled = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "castscheduler_casts_scheduled_total",
		Help: "Number of casts scheduled.",
	})
	m.cancelled = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "castscheduler_casts_cancelled_total",
		Help: "Number of pending casts cancelled by their owner.",
	})
	m.published = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "castscheduler_casts_published_total",
		Help: "Publish attempts by outcome.",
	}, []string{"result"})
	m.dispatched = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "castscheduler_jobs_dispatched_total",
		Help: "Due jobs handed to the broker by outcome.",
	}, []string{"result"})
	m.pending = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "castscheduler_jobs_pending",
		Help: "Deferred jobs waiting in the scheduler as of the last dispatch tick.",
	})
	m.requests = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name: "castscheduler_http_request_duration_seconds",
		Help: "Duration in seconds of HTTP requests served.",
	}, []string{"route", "code"})

	reg.MustRegister(m.scheduled, m.cancelled, m.published, m.dispatched, m.pending, m.requests)
	return m
}

func (m *promMetrics) CastScheduled()              { m.scheduled.Inc() }
func (m *promMetrics) CastCancelled()              { m.cancelled.Inc() }
func (m *promMetrics) CastPublished(result string) { m.published.WithLabelValues(result).Inc() }
func (m *promMetrics) JobDispatched(result string) { m.dispatched.WithLabelValues(result).Inc() }
func (m *promMetrics) JobsPending(n int64)         { m.pending.Set(float64(n)) }

func (m *promMetrics) ObserveRequest(route string, status int, elapsed time.Duration) {
	m.requests.WithLabelValues(route, statusClass(status)).Observe(elapsed.Seconds())
}

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}

type nop struct{}

// Nop discards everything.
func Nop() Metrics { return nop{} }

func (nop) CastScheduled()                            {}
func (nop) CastCancelled()                            {}
func (nop) CastPublished(string)                      {}
func (nop) JobDispatched(string)                      {}
func (nop) JobsPending(int64)                         {}
func (nop) ObserveRequest(string, int, time.Duration) {}
