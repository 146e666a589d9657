package monitoring

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMiddlewareRecordsRequests(t *testing.T) {
	gin.SetMode(gin.TestMode)
	metrics := New(prometheus.NewRegistry())

	router := gin.New()
	router.Use(Middleware(metrics))
	router.GET("/sessions/:id", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	for _, id := range []string{"a", "b", "c"} {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/sessions/"+id, nil))
		require.Equal(t, http.StatusOK, w.Code)
	}

	// All three hits land on the route template, one series total.
	count := testutil.ToFloat64(metrics.HTTPRequests.WithLabelValues("GET", "/sessions/:id", "200"))
	assert.Equal(t, 3.0, count)
}

func TestMiddlewareLabelsUnmatchedRoutes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	metrics := New(prometheus.NewRegistry())

	router := gin.New()
	router.Use(Middleware(metrics))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/no/such/route", nil))
	require.Equal(t, http.StatusNotFound, w.Code)

	count := testutil.ToFloat64(metrics.HTTPRequests.WithLabelValues("GET", "unmatched", "404"))
	assert.Equal(t, 1.0, count)
}

func TestBridgeStatsCounters(t *testing.T) {
	metrics := New(prometheus.NewRegistry())

	metrics.MessageSent("editor", "set-code")
	metrics.MessageSent("editor", "set-code")
	metrics.MessageReceived("editor", "ready")
	metrics.MessageDropped("preview")
	metrics.SessionOpened("editor")
	metrics.SessionOpened("editor")
	metrics.SessionClosed("editor")

	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.MessagesSent.WithLabelValues("editor", "set-code")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.MessagesReceived.WithLabelValues("editor", "ready")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.MessagesDropped.WithLabelValues("preview")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.SessionsActive.WithLabelValues("editor")))
}
