package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveOperation_CountsByOutcome(t *testing.T) {
	InitMetrics()
	before := testutil.ToFloat64(RelationshipOps.WithLabelValues("send_friend_request", "conflict"))

	ObserveOperation("send_friend_request", "conflict", 3*time.Millisecond)
	ObserveOperation("send_friend_request", "conflict", time.Millisecond)

	after := testutil.ToFloat64(RelationshipOps.WithLabelValues("send_friend_request", "conflict"))
	assert.Equal(t, before+2, after)
}

func TestInitMetrics_Twice(t *testing.T) {
	assert.NotPanics(t, InitMetrics)
	assert.NotPanics(t, InitMetrics)
}

func TestHandler_ExposesCollectors(t *testing.T) {
	InitMetrics()
	ObserveOperation("block_member", "ok", time.Millisecond)

	w := httptest.NewRecorder()
	Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "social_relationship_operations_total")
}
