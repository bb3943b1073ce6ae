package monitor

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestInitTwice(t *testing.T) {
	assert.NotPanics(t, func() {
		Init()
		Init()
	})
}

func TestDeviceMetrics(t *testing.T) {
	m := newDeviceMetrics()
	m.register(prometheus.NewRegistry())

	m.FramesSent.WithLabelValues("SIGN").Add(3)
	m.ExchangeFailures.WithLabelValues("SIGN", "device_status").Inc()
	m.ObserveCommand("SIGN", time.Now().Add(-time.Second))

	assert.Equal(t, 3.0, testutil.ToFloat64(m.FramesSent.WithLabelValues("SIGN")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ExchangeFailures.WithLabelValues("SIGN", "device_status")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.CommandDuration))
}

func TestPrometheusMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(PrometheusMiddleware())
	r.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })

	before := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("GET", "/ping", "200"))

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/ping", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, before+1, testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("GET", "/ping", "200")))
}
