package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestRecorders(t *testing.T) {
	m := New(func() int { return 3 })

	m.ObserveScore(0.82, true)
	m.ObserveScore(0.31, false)
	m.ObserveScore(0.35, false)
	require.Equal(t, 1.0, testutil.ToFloat64(m.BidsScored.WithLabelValues("flagged")))
	require.Equal(t, 2.0, testutil.ToFloat64(m.BidsScored.WithLabelValues("clean")))

	m.ObserveTraining("synthetic", 100)
	require.Equal(t, 1.0, testutil.ToFloat64(m.ModelTrainings.WithLabelValues("synthetic")))

	m.ObserveChatReply("faq")
	m.ObserveUpload("rejected")
	require.Equal(t, 1.0, testutil.ToFloat64(m.ChatReplies.WithLabelValues("faq")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.Uploads.WithLabelValues("rejected")))

	m.ObserveRequest("/api/bids/{bidId}", http.MethodGet, 404, 5*time.Millisecond)
	m.ObserveRequest("", http.MethodGet, 404, time.Millisecond)
	require.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequests.WithLabelValues("/api/bids/{bidId}", "GET", "404")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequests.WithLabelValues("unmatched", "GET", "404")))

	require.Equal(t, 3.0, testutil.ToFloat64(m.AlertClients))
}

func TestHandlerExposesRegistry(t *testing.T) {
	m := New(nil)
	m.ObserveUpload("accepted")

	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), `actms_uploads_total{result="accepted"} 1`)
	require.Contains(t, rr.Body.String(), "go_goroutines")
}
