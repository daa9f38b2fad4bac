package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "autopilot"

// Metrics groups the collectors exposed on /metrics.
type Metrics struct {
	// ActionsTotal counts automated actions by action and outcome (success|failure|skipped).
	ActionsTotal *prometheus.CounterVec
	// TicksTotal counts loop iterations.
	TicksTotal prometheus.Counter
	// TickDuration observes time spent in one runner pass.
	TickDuration prometheus.Histogram
	// QueueDepth reports queue lengths by queue (monitor|upload).
	QueueDepth *prometheus.GaugeVec
	// LoopRunning is 1 while the polling loop is active.
	LoopRunning prometheus.Gauge
	// SessionSaves counts session persistence attempts by outcome.
	SessionSaves *prometheus.CounterVec
	// ReplierLatency observes inference calls.
	ReplierLatency prometheus.Histogram
	// HTTPRequests counts facade requests by path and status code.
	HTTPRequests *prometheus.CounterVec
}

// New registers all collectors on reg. Passing nil uses the default registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Metrics{
		ActionsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "actions_total",
			Help:      "Automated browser actions by action and outcome.",
		}, []string{"action", "outcome"}),
		TicksTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "loop_ticks_total",
			Help:      "Polling loop iterations.",
		}),
		TickDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "runner_pass_seconds",
			Help:      "Duration of one task runner pass.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
		}),
		QueueDepth: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "queue_depth",
			Help:      "Items held in each queue.",
		}, []string{"queue"}),
		LoopRunning: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "loop_running",
			Help:      "1 while the polling loop is active.",
		}),
		SessionSaves: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_saves_total",
			Help:      "Session persistence attempts by outcome.",
		}, []string{"outcome"}),
		ReplierLatency: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "replier_latency_seconds",
			Help:      "Reply generation latency.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10},
		}),
		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Facade requests by path and status code.",
		}, []string{"path", "code"}),
	}
}

// Action records one action outcome. Safe on a nil receiver.
func (m *Metrics) Action(action, outcome string) {
	if m == nil {
		return
	}
	m.ActionsTotal.WithLabelValues(action, outcome).Inc()
}

// Tick records one loop iteration and, when ran is true, the runner pass duration.
func (m *Metrics) Tick(ran bool, d time.Duration) {
	if m == nil {
		return
	}
	m.TicksTotal.Inc()
	if ran {
		m.TickDuration.Observe(d.Seconds())
	}
}

// Queues sets the queue depth gauges.
func (m *Metrics) Queues(monitor, upload int) {
	if m == nil {
		return
	}
	m.QueueDepth.WithLabelValues("monitor").Set(float64(monitor))
	m.QueueDepth.WithLabelValues("upload").Set(float64(upload))
}

// Running flips the loop gauge.
func (m *Metrics) Running(on bool) {
	if m == nil {
		return
	}
	if on {
		m.LoopRunning.Set(1)
		return
	}
	m.LoopRunning.Set(0)
}

// SessionSave records a save outcome.
func (m *Metrics) SessionSave(err error) {
	if m == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	m.SessionSaves.WithLabelValues(outcome).Inc()
}

// Reply observes one inference call.
func (m *Metrics) Reply(d time.Duration) {
	if m == nil {
		return
	}
	m.ReplierLatency.Observe(d.Seconds())
}

// Request records one facade response.
func (m *Metrics) Request(path string, code int) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(path, statusLabel(code)).Inc()
}

func statusLabel(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
