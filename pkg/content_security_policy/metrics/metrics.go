// Package metrics exposes Prometheus metrics for the delivery gate and the
// report collector. A nil *Recorder records nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Recorder struct {
	policyDecisions  *prometheus.CounterVec
	reportsReceived  prometheus.Counter
	reportOutcomes   *prometheus.CounterVec
	forwardFailures  prometheus.Counter
	scriptInjections prometheus.Counter
	forwardDuration  prometheus.Histogram
}

// NewRecorder registers the metrics with the registry.
func NewRecorder(registerer prometheus.Registerer) *Recorder {
	recorder := &Recorder{
		policyDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "csp_policy_decisions_total",
			Help: "Delivery gate decisions grouped by state",
		}, []string{"state"}),
		reportsReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "csp_reports_received_total",
			Help: "Violation reports received by the collector",
		}),
		reportOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "csp_reports_outcome_total",
			Help: "Violation reports grouped by ingest outcome",
		}, []string{"outcome"}),
		forwardFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "csp_reports_forward_failures_total",
			Help: "Violation reports that could not be forwarded",
		}),
		scriptInjections: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "csp_script_injections_total",
			Help: "HTML responses the report script was injected into",
		}),
		forwardDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "csp_report_forward_duration_seconds",
			Help:    "Latency of forwarding a violation report",
			Buckets: prometheus.DefBuckets,
		}),
	}

	if registerer != nil {
		registerer.MustRegister(
			recorder.policyDecisions,
			recorder.reportsReceived,
			recorder.reportOutcomes,
			recorder.forwardFailures,
			recorder.scriptInjections,
			recorder.forwardDuration,
		)
	}

	return recorder
}

// Handler serves the registry's metrics.
func Handler(registry *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry})
}

func (recorder *Recorder) ObservePolicyDecision(state string) {
	if recorder == nil {
		return
	}
	recorder.policyDecisions.WithLabelValues(state).Inc()
}

func (recorder *Recorder) ObserveReportReceived() {
	if recorder == nil {
		return
	}
	recorder.reportsReceived.Inc()
}

func (recorder *Recorder) ObserveReportOutcome(outcome string) {
	if recorder == nil {
		return
	}
	recorder.reportOutcomes.WithLabelValues(outcome).Inc()
}

// ObserveForward records the latency of a forward attempt and whether it failed.
func (recorder *Recorder) ObserveForward(duration time.Duration, err error) {
	if recorder == nil {
		return
	}
	recorder.forwardDuration.Observe(duration.Seconds())
	if err != nil {
		recorder.forwardFailures.Inc()
	}
}

func (recorder *Recorder) ObserveScriptInjection() {
	if recorder == nil {
		return
	}
	recorder.scriptInjections.Inc()
}
