// internal/utils/metrics/metrics.go
// Package metrics holds the broadcaster's application metrics.
package metrics

import (
	"fmt"
	"net/http"
	"time"

	"github.com/VictoriaMetrics/metrics"
)

const (
	OutcomeConfirmed = "confirmed"
	OutcomeRetryable = "retryable"
	OutcomeFatal     = "fatal"
	OutcomeTransport = "transport"
	OutcomeExhausted = "exhausted"
	OutcomeCancelled = "cancelled"
)

var (
	feeCacheHits   = metrics.NewCounter("fee_estimate_cache_hits_total")
	feeCacheMisses = metrics.NewCounter("fee_estimate_cache_misses_total")
	pollTimeouts   = metrics.NewCounter("confirmation_poll_timeouts_total")
)

func IncFeeCacheHit() {
	feeCacheHits.Inc()
}

func IncFeeCacheMiss() {
	feeCacheMisses.Inc()
}

func IncPollTimeout() {
	pollTimeouts.Inc()
}

// RecordAttempt counts a single execute call for txType.
func RecordAttempt(txType string) {
	metrics.GetOrCreateCounter(fmt.Sprintf(`broadcast_attempts_total{tx_type=%q}`, txType)).Inc()
}

// RecordOutcome counts the classified result of an attempt or of a whole broadcast.
func RecordOutcome(txType, outcome string) {
	metrics.GetOrCreateCounter(fmt.Sprintf(`broadcast_outcomes_total{tx_type=%q,outcome=%q}`, txType, outcome)).Inc()
}

// ObservePriorityFee tracks the bounded fee per compute unit used for an attempt.
func ObservePriorityFee(txType string, feePerCU uint64) {
	metrics.GetOrCreateHistogram(fmt.Sprintf(`broadcast_priority_fee_per_cu{tx_type=%q}`, txType)).Update(float64(feePerCU))
}

// RecordGatewayLatency tracks the duration of a single Gateway HTTP call.
func RecordGatewayLatency(endpoint string, statusCode int, d time.Duration) {
	metrics.GetOrCreateSummary(fmt.Sprintf(`gateway_request_duration_seconds{endpoint=%q,code="%d"}`, endpoint, statusCode)).Update(d.Seconds())
}

// Handler exposes all registered metrics in Prometheus text format.
func Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		metrics.WritePrometheus(w, true)
	})
}
