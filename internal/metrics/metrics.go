package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ToolRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "tool_requests_total", Help: "Tool server requests by tool and HTTP status"},
		[]string{"tool", "status"},
	)
	PipelineRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "pipeline_runs_total", Help: "Completed pipeline runs by outcome"},
		[]string{"outcome"},
	)
	GateDecisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "gate_decisions_total", Help: "Gate verdicts"},
		[]string{"decision"},
	)
	ExternalCalls = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "external_call_seconds",
			Help:    "Latency of outbound HTTP calls",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"service", "status"},
	)
	MentionsExtracted = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "mentions_extracted_total", Help: "Cashtag mentions extracted from posts"},
	)
)

func init() {
	prometheus.MustRegister(ToolRequests, PipelineRuns, GateDecisions, ExternalCalls, MentionsExtracted)
}

// ObserveExternal records one outbound call. status 0 means a transport error.
func ObserveExternal(service string, status int, d time.Duration) {
	label := "error"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	ExternalCalls.WithLabelValues(service, label).Observe(d.Seconds())
}

func Handler() http.Handler {
	return promhttp.Handler()
}
