// Package metrics provides Prometheus metrics for the relay admin service.
package metrics

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "relayadmin"

// Version is reported through the info gauge.
var Version = "dev"

var (
	// atomic.Pointer keeps the Record* hot path lock-free and makes every
	// recorder a no-op until Init has run.
	requestsTotal       atomic.Pointer[prometheus.CounterVec]
	requestDuration     atomic.Pointer[prometheus.HistogramVec]
	authFailuresTotal   atomic.Pointer[prometheus.CounterVec]
	moderationTotal     atomic.Pointer[prometheus.CounterVec]
	verificationTotal   atomic.Pointer[prometheus.CounterVec]
	relayCallsTotal     atomic.Pointer[prometheus.CounterVec]
	relayCallDuration   atomic.Pointer[prometheus.HistogramVec]
	helpdeskQueueDepth  atomic.Pointer[prometheus.Gauge]
	helpdeskNotesTotal  atomic.Pointer[prometheus.CounterVec]
	consensusVerdictVec atomic.Pointer[prometheus.CounterVec]
)

// Init registers all metrics with reg. Call once at startup.
func Init(reg prometheus.Registerer) error {
	reqs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total number of HTTP requests handled",
	}, []string{"method", "path", "status"})

	dur := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency in seconds",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	authFailures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "auth",
		Name:      "failures_total",
		Help:      "Rejected credentials by scheme and reason",
	}, []string{"scheme", "reason"})

	moderation := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "moderation",
		Name:      "actions_total",
		Help:      "Moderation intents by action and final dispatch status",
	}, []string{"action", "status"})

	verification := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "moderation",
		Name:      "verifications_total",
		Help:      "Post-action verification outcomes",
	}, []string{"outcome"})

	relayCalls := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "relay",
		Name:      "calls_total",
		Help:      "Relay RPC and WebSocket calls by operation and result",
	}, []string{"op", "result"})

	relayDur := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "relay",
		Name:      "call_duration_seconds",
		Help:      "Relay call latency in seconds",
		Buckets:   prometheus.DefBuckets,
	}, []string{"op"})

	queueDepth := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "helpdesk",
		Name:      "queue_depth",
		Help:      "Helpdesk notes waiting to be sent",
	})

	notes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "helpdesk",
		Name:      "notes_total",
		Help:      "Helpdesk note deliveries by result",
	}, []string{"result"})

	verdicts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "consensus",
		Name:      "verdicts_total",
		Help:      "Consensus verdicts by bucket and agreement",
	}, []string{"verdict", "agreement"})

	info := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "info",
		Help:      "Service version and build information",
	}, []string{"version"})

	collectors := map[string]prometheus.Collector{
		"requestsTotal":      reqs,
		"requestDuration":    dur,
		"authFailures":       authFailures,
		"moderationActions":  moderation,
		"verifications":      verification,
		"relayCalls":         relayCalls,
		"relayCallDuration":  relayDur,
		"helpdeskQueueDepth": queueDepth,
		"helpdeskNotes":      notes,
		"consensusVerdicts":  verdicts,
		"info":               info,
	}
	for name, c := range collectors {
		if err := reg.Register(c); err != nil {
			return fmt.Errorf("failed to register %s: %w", name, err)
		}
	}
	info.WithLabelValues(Version).Set(1)

	requestsTotal.Store(reqs)
	requestDuration.Store(dur)
	authFailuresTotal.Store(authFailures)
	moderationTotal.Store(moderation)
	verificationTotal.Store(verification)
	relayCallsTotal.Store(relayCalls)
	relayCallDuration.Store(relayDur)
	helpdeskQueueDepth.Store(&queueDepth)
	helpdeskNotesTotal.Store(notes)
	consensusVerdictVec.Store(verdicts)

	return nil
}

// RecordRequest counts a handled request. path must already be normalised.
func RecordRequest(method, path, status string) {
	if c := requestsTotal.Load(); c != nil {
		c.WithLabelValues(method, path, status).Inc()
	}
}

// RecordRequestDuration observes request latency in seconds.
func RecordRequestDuration(method, path, status string, seconds float64) {
	if h := requestDuration.Load(); h != nil {
		h.WithLabelValues(method, path, status).Observe(seconds)
	}
}

// RecordAuthFailure counts a rejected credential.
// scheme is "jwt", "nip98", "webhook" or "operator".
func RecordAuthFailure(scheme, reason string) {
	if c := authFailuresTotal.Load(); c != nil {
		c.WithLabelValues(scheme, reason).Inc()
	}
}

// RecordModeration counts a finished moderation intent.
func RecordModeration(action, status string) {
	if c := moderationTotal.Load(); c != nil {
		c.WithLabelValues(action, status).Inc()
	}
}

// RecordVerification counts a verification outcome: "matched", "mismatch" or "error".
func RecordVerification(outcome string) {
	if c := verificationTotal.Load(); c != nil {
		c.WithLabelValues(outcome).Inc()
	}
}

// RecordRelayCall counts a relay call and observes its latency.
func RecordRelayCall(op, result string, seconds float64) {
	if c := relayCallsTotal.Load(); c != nil {
		c.WithLabelValues(op, result).Inc()
	}
	if h := relayCallDuration.Load(); h != nil {
		h.WithLabelValues(op).Observe(seconds)
	}
}

// SetHelpdeskQueueDepth reports the number of queued helpdesk notes.
func SetHelpdeskQueueDepth(n int) {
	if g := helpdeskQueueDepth.Load(); g != nil {
		(*g).Set(float64(n))
	}
}

// RecordHelpdeskNote counts a helpdesk note delivery: "sent", "failed" or "dropped".
func RecordHelpdeskNote(result string) {
	if c := helpdeskNotesTotal.Load(); c != nil {
		c.WithLabelValues(result).Inc()
	}
}

// RecordConsensus counts an aggregated verdict.
func RecordConsensus(verdict, agreement string) {
	if c := consensusVerdictVec.Load(); c != nil {
		c.WithLabelValues(verdict, agreement).Inc()
	}
}

// Handler returns an HTTP handler for the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// HandlerFor returns an HTTP handler serving reg.
func HandlerFor(reg prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

// GetMetricsText returns the Prometheus text-format output from a registry.
func GetMetricsText(reg prometheus.Gatherer) (string, error) {
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	HandlerFor(reg).ServeHTTP(w, req)

	body, err := io.ReadAll(w.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read metrics output: %w", err)
	}
	return string(body), nil
}
