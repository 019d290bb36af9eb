package metrics

import (
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCounters(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.OrderCreated()
	m.OrderCreated()
	m.OrderFailed("insufficient_stock")
	m.Restored(3)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.OrdersCreated))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.OrderFailures.WithLabelValues("insufficient_stock")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.StockRestored))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.OrderCreated()
		m.OrderFailed("x")
		m.Restored(1)
		m.ObserveRequest("/", "200", 1)
	})
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.ObserveRequest("/api/v1/orders", "201", 12)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), `storefront_http_requests_total{handler="/api/v1/orders",status="201"} 1`)
}
