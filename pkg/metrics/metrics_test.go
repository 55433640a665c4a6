package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	return m.GetCounter().GetValue()
}

func TestRegistry(t *testing.T) {
	if Registry == nil {
		t.Error("Registry should not be nil")
	}
	if Registry != prometheus.DefaultRegisterer {
		t.Error("Registry should be the default Prometheus registerer")
	}
}

func TestObserveRequest(t *testing.T) {
	before := counterValue(t, HTTPRequests.WithLabelValues("/aggregate", "200"))

	ObserveRequest("/aggregate", http.StatusOK, 12*time.Millisecond)

	after := counterValue(t, HTTPRequests.WithLabelValues("/aggregate", "200"))
	if after != before+1 {
		t.Errorf("amd_http_requests_total = %v, want %v", after, before+1)
	}
}

func TestHandler(t *testing.T) {
	ObserveRequest("/health", http.StatusOK, time.Millisecond)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "amd_http_requests_total") {
		t.Error("metrics output missing amd_http_requests_total")
	}
}
