// Package metrics exports turn and chat counters to Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gosuda/stackchat/internal/turn"
)

const namespace = "stackchat"

// Recorder holds the collectors for one registry. It implements turn.Sink.
type Recorder struct {
	registry *prometheus.Registry

	eventsTotal    *prometheus.CounterVec
	toolCallsTotal *prometheus.CounterVec
	shieldTotal    *prometheus.CounterVec
	deltaBytes     prometheus.Counter
	turnsTotal     *prometheus.CounterVec
	turnDuration   *prometheus.HistogramVec
	turnsActive    prometheus.Gauge
}

// New creates a Recorder with its own registry, including the Go and
// process collectors.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		eventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "turn_events_total",
				Help:      "Total number of turn events consumed, by kind",
			},
			[]string{"kind"},
		),
		toolCallsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "tool_calls_total",
				Help:      "Total number of tool calls reported by the stack",
			},
			[]string{"tool"},
		),
		shieldTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "shield_calls_total",
				Help:      "Total number of shield calls",
			},
			[]string{"result"}, // result: pass, violation
		),
		deltaBytes: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "content_delta_bytes_total",
				Help:      "Total bytes of assistant text streamed",
			},
		),
		turnsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "turns_total",
				Help:      "Total number of turns, by terminal state",
			},
			[]string{"state"},
		),
		turnDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "turn_duration_seconds",
				Help:      "Duration of turns from first request to terminal state",
				Buckets:   []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120},
			},
			[]string{"state"},
		),
		turnsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "turns_active",
				Help:      "Number of turns currently streaming",
			},
		),
	}

	r.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.eventsTotal,
		r.toolCallsTotal,
		r.shieldTotal,
		r.deltaBytes,
		r.turnsTotal,
		r.turnDuration,
		r.turnsActive,
	)

	return r
}

// Record implements turn.Sink.
func (r *Recorder) Record(ev turn.Event) {
	r.eventsTotal.WithLabelValues(ev.Kind()).Inc()

	switch e := ev.(type) {
	case turn.ContentDelta:
		r.deltaBytes.Add(float64(len(e.Text)))
	case turn.ToolExecution:
		for _, c := range e.Calls {
			r.toolCallsTotal.WithLabelValues(c.Name).Inc()
		}
	case turn.ShieldCall:
		result := "pass"
		if e.Violation != "" {
			result = "violation"
		}
		r.shieldTotal.WithLabelValues(result).Inc()
	}
}

// TurnStarted marks a turn as active and returns a function that records its
// terminal state and duration. Call the returned function exactly once.
func (r *Recorder) TurnStarted() func(state turn.State) {
	start := time.Now()
	r.turnsActive.Inc()
	return func(state turn.State) {
		r.turnsActive.Dec()
		r.turnsTotal.WithLabelValues(string(state)).Inc()
		r.turnDuration.WithLabelValues(string(state)).Observe(time.Since(start).Seconds())
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}
