package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_RegistersAndExposes(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.Checkouts.WithLabelValues("success").Inc()
	m.Checkouts.WithLabelValues("insufficient_stock").Add(2)
	m.PriceFallbacks.Inc()

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Checkouts.WithLabelValues("success")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Checkouts.WithLabelValues("insufficient_stock")))

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body, _ := io.ReadAll(rec.Body)
	assert.Contains(t, string(body), `cart_checkouts_total{outcome="success"} 1`)
	assert.Contains(t, string(body), "cart_price_lookup_fallbacks_total 1")
}

func TestNew_DoubleRegistrationPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	New(reg)
	assert.Panics(t, func() { New(reg) })
}
