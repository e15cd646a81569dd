package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		expected string
	}{
		// Static routes - no normalization
		{
			name:     "root path",
			path:     "/",
			expected: "/",
		},
		{
			name:     "markets collection",
			path:     "/markets",
			expected: "/markets",
		},
		{
			name:     "market search",
			path:     "/markets/search",
			expected: "/markets/search",
		},
		{
			name:     "health endpoint",
			path:     "/health",
			expected: "/health",
		},
		{
			name:     "ready endpoint",
			path:     "/ready",
			expected: "/ready",
		},
		{
			name:     "metrics endpoint",
			path:     "/metrics",
			expected: "/metrics",
		},

		// Market patterns
		{
			name:     "market by name",
			path:     "/markets/Hollywood%20Farmers%20Market",
			expected: "/markets/{name}",
		},
		{
			name:     "market reviews",
			path:     "/markets/Hollywood%20Farmers%20Market/reviews",
			expected: "/markets/{name}/reviews",
		},

		// Unknown paths pass through
		{
			name:     "unknown path",
			path:     "/notfound",
			expected: "/notfound",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := normalizePath(tt.path)
			if got != tt.expected {
				t.Errorf("normalizePath(%q) = %q, want %q", tt.path, got, tt.expected)
			}
		})
	}
}

func TestHTTPMetrics(t *testing.T) {
	tests := []struct {
		name           string
		method         string
		path           string
		responseStatus int
		responseBody   string
		wantMetrics    bool // false if health check endpoint
	}{
		{
			name:           "GET request",
			method:         http.MethodGet,
			path:           "/markets",
			responseStatus: http.StatusOK,
			responseBody:   `{"markets":[]}`,
			wantMetrics:    true,
		},
		{
			name:           "POST request",
			method:         http.MethodPost,
			path:           "/markets/Fremont/reviews",
			responseStatus: http.StatusCreated,
			responseBody:   `{"id":"123"}`,
			wantMetrics:    true,
		},
		{
			name:           "404 error",
			method:         http.MethodGet,
			path:           "/notfound",
			responseStatus: http.StatusNotFound,
			responseBody:   `{"error":{"code":"not_found"}}`,
			wantMetrics:    true,
		},
		{
			name:           "Health check excluded",
			method:         http.MethodGet,
			path:           "/health",
			responseStatus: http.StatusOK,
			responseBody:   `{"status":"ok"}`,
			wantMetrics:    false,
		},
		{
			name:           "Ready check excluded",
			method:         http.MethodGet,
			path:           "/ready",
			responseStatus: http.StatusOK,
			responseBody:   `{"ready":true}`,
			wantMetrics:    false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewMetrics()
			reg := prometheus.NewRegistry()
			if err := m.Register(reg); err != nil {
				t.Fatalf("Register() failed: %v", err)
			}

			handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.responseStatus)
				_, _ = w.Write([]byte(tt.responseBody))
			})

			wrapped := HTTPMetrics(m)(handler)

			req := httptest.NewRequest(tt.method, tt.path, nil)
			rec := httptest.NewRecorder()
			wrapped.ServeHTTP(rec, req)

			if rec.Code != tt.responseStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.responseStatus)
			}

			metrics, err := reg.Gather()
			if err != nil {
				t.Fatalf("Gather() failed: %v", err)
			}

			foundDuration := false
			foundTotal := false

			for _, mf := range metrics {
				if mf.GetName() == MetricHTTPRequestDuration {
					foundDuration = true
					if !tt.wantMetrics && len(mf.GetMetric()) > 0 {
						t.Errorf("expected no duration metrics for %s, but found some", tt.path)
					}
				}
				if mf.GetName() == MetricHTTPRequestsTotal {
					foundTotal = true
					if !tt.wantMetrics && len(mf.GetMetric()) > 0 {
						t.Errorf("expected no counter metrics for %s, but found some", tt.path)
					}
				}
			}

			if tt.wantMetrics {
				if !foundDuration {
					t.Error("duration metric not found")
				}
				if !foundTotal {
					t.Error("total metric not found")
				}
			}
		})
	}
}

func TestHTTPMetrics_Labels(t *testing.T) {
	m := NewMetrics()
	reg := prometheus.NewRegistry()
	if err := m.Register(reg); err != nil {
		t.Fatalf("Register() failed: %v", err)
	}

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	wrapped := HTTPMetrics(m)(handler)

	req := httptest.NewRequest(http.MethodGet, "/markets/Lloyd/reviews", nil)
	rec := httptest.NewRecorder()
	wrapped.ServeHTTP(rec, req)

	metrics, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather() failed: %v", err)
	}

	var totalMetric *dto.MetricFamily
	for i := range metrics {
		if metrics[i].GetName() == MetricHTTPRequestsTotal {
			totalMetric = metrics[i]
			break
		}
	}

	if totalMetric == nil {
		t.Fatal("total metric not found")
	}

	if len(totalMetric.GetMetric()) != 1 {
		t.Fatalf("expected 1 metric entry, got %d", len(totalMetric.GetMetric()))
	}

	labelMap := make(map[string]string)
	for _, label := range totalMetric.GetMetric()[0].GetLabel() {
		labelMap[label.GetName()] = label.GetValue()
	}

	if labelMap["method"] != http.MethodGet {
		t.Errorf("method label = %q, want %q", labelMap["method"], http.MethodGet)
	}
	if labelMap["path"] != "/markets/{name}/reviews" {
		t.Errorf("path label = %q, want %q", labelMap["path"], "/markets/{name}/reviews")
	}
	if labelMap["status"] != "200" {
		t.Errorf("status label = %q, want %q", labelMap["status"], "200")
	}
}

func TestObserveSearch(t *testing.T) {
	m := NewMetrics()
	reg := prometheus.NewRegistry()
	if err := m.Register(reg); err != nil {
		t.Fatalf("Register() failed: %v", err)
	}

	m.ObserveSearch("city", "rating_desc", 7)
	m.ObserveSearch("city", "rating_desc", 3)
	m.ObserveSearch("radius", "none", 0)

	metrics, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather() failed: %v", err)
	}

	var searches *dto.MetricFamily
	for i := range metrics {
		if metrics[i].GetName() == MetricSearchesTotal {
			searches = metrics[i]
			break
		}
	}
	if searches == nil {
		t.Fatal("search counter not found")
	}
	if len(searches.GetMetric()) != 2 {
		t.Fatalf("expected 2 label combinations, got %d", len(searches.GetMetric()))
	}

	for _, metric := range searches.GetMetric() {
		labelMap := make(map[string]string)
		for _, label := range metric.GetLabel() {
			labelMap[label.GetName()] = label.GetValue()
		}
		switch labelMap["criterion"] {
		case "city":
			if metric.GetCounter().GetValue() != 2 {
				t.Errorf("city counter = %v, want 2", metric.GetCounter().GetValue())
			}
		case "radius":
			if metric.GetCounter().GetValue() != 1 {
				t.Errorf("radius counter = %v, want 1", metric.GetCounter().GetValue())
			}
		default:
			t.Errorf("unexpected criterion label %q", labelMap["criterion"])
		}
	}
}
