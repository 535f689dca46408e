package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandlerExposesBroadcastMetrics(t *testing.T) {
	RecordAttempt("swap")
	RecordOutcome("swap", OutcomeConfirmed)
	ObservePriorityFee("swap", 200000)
	RecordGatewayLatency("estimate-gas", 200, 15*time.Millisecond)
	IncFeeCacheHit()

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.Contains(t, body, `broadcast_attempts_total{tx_type="swap"}`)
	assert.Contains(t, body, `broadcast_outcomes_total{tx_type="swap",outcome="confirmed"}`)
	assert.Contains(t, body, "fee_estimate_cache_hits_total")
	assert.Contains(t, body, `gateway_request_duration_seconds`)
}
