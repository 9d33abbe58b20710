package middleware

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestNewMetrics(t *testing.T) {
	m := NewMetrics()
	if m == nil {
		t.Fatal("NewMetrics() returned nil")
	}
	if m.rateLimitRequests == nil {
		t.Error("rateLimitRequests is nil")
	}
	if m.httpRequestDuration == nil {
		t.Error("httpRequestDuration is nil")
	}
}

func TestMetrics_Register(t *testing.T) {
	m := NewMetrics()
	reg := prometheus.NewRegistry()

	if err := m.Register(reg); err != nil {
		t.Fatalf("Register() failed: %v", err)
	}

	m.IncRateLimitRequests("/rankings")
	m.IncRateLimitBlocked("/rankings")
	m.ObserveHTTPRequest("GET", "/rankings", "200", 0.05, 0, 1024)

	metrics, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather() failed: %v", err)
	}

	want := map[string]bool{
		MetricRateLimitRequests:     false,
		MetricRateLimitBlocked:      false,
		MetricHTTPRequestDuration:   false,
		MetricHTTPRequestsTotal:     false,
		MetricHTTPRequestSizeBytes:  false,
		MetricHTTPResponseSizeBytes: false,
	}
	for _, mf := range metrics {
		if _, ok := want[mf.GetName()]; ok {
			want[mf.GetName()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("metric %s not found in registry", name)
		}
	}
}

func TestMetrics_RegisterTwiceFails(t *testing.T) {
	m := NewMetrics()
	reg := prometheus.NewRegistry()

	if err := m.Register(reg); err != nil {
		t.Fatalf("first Register() failed: %v", err)
	}
	if err := m.Register(reg); err == nil {
		t.Error("second Register() should fail with duplicate collectors")
	}
}

func TestMetrics_ObserveHTTPRequestCounts(t *testing.T) {
	m := NewMetrics()
	reg := prometheus.NewRegistry()
	if err := m.Register(reg); err != nil {
		t.Fatalf("Register() failed: %v", err)
	}

	m.ObserveHTTPRequest("GET", "/rankings", "200", 0.01, 0, 512)
	m.ObserveHTTPRequest("GET", "/rankings", "200", 0.02, 0, 512)
	m.ObserveHTTPRequest("POST", "/rankings/preview", "200", 0.10, 256, 2048)

	metrics, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather() failed: %v", err)
	}

	var totals *dto.MetricFamily
	for i := range metrics {
		if metrics[i].GetName() == MetricHTTPRequestsTotal {
			totals = metrics[i]
			break
		}
	}
	if totals == nil {
		t.Fatal("http_requests_total metric not found")
	}
	if len(totals.GetMetric()) != 2 {
		t.Errorf("expected 2 label combinations, got %d", len(totals.GetMetric()))
	}
	for _, metric := range totals.GetMetric() {
		for _, label := range metric.GetLabel() {
			if label.GetName() == "path" && label.GetValue() == "/rankings" {
				if got := metric.GetCounter().GetValue(); got != 2 {
					t.Errorf("GET /rankings count = %v, want 2", got)
				}
			}
		}
	}
}
