package middleware

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	dto "github.com/prometheus/client_model/go"
)

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/api/files/", "/api/files/"},
		{"/api/files/42/", "/api/files/{id}/"},
		{"/api/files/42/download/", "/api/files/{id}/download/"},
		{"/api/visualize/7/", "/api/visualize/{id}/"},
		{"/api/files/abc/", "/api/files/abc/"},
		{"/health/live", "/health/live"},
	}
	for _, tt := range tests {
		if got := normalizePath(tt.path); got != tt.want {
			t.Errorf("normalizePath(%q) = %q, ожидалось %q", tt.path, got, tt.want)
		}
	}
}

func TestMetricsMiddleware_CountsRequests(t *testing.T) {
	h := MetricsMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))

	counterValue := func() float64 {
		var m dto.Metric
		if err := httpRequestsTotal.WithLabelValues(http.MethodPost, "/api/files/{id}/", "201").Write(&m); err != nil {
			t.Fatalf("Write: %v", err)
		}
		return m.GetCounter().GetValue()
	}
	before := counterValue()

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/files/15/", nil))

	if got := counterValue(); got != before+1 {
		t.Errorf("счётчик = %v, ожидалось %v", got, before+1)
	}
}

func TestRouteLabel(t *testing.T) {
	tests := []struct {
		name    string
		pattern string
		path    string
		want    string
	}{
		{"со слэшем", "/api/files/{id}/", "/api/files/3/", "/api/files/{id}/"},
		{"вложенный со слэшем", "/api/files/{id}/download/", "/api/files/3/download/", "/api/files/{id}/download/"},
		{"без слэша", "/health/live", "/health/live", "/health/live"},
		{"корень списка", "/api/files/", "/api/files/", "/api/files/"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got string
			r := chi.NewRouter()
			r.Get(tt.pattern, func(_ http.ResponseWriter, req *http.Request) {
				got = routeLabel(req)
			})

			r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, tt.path, nil))

			if got != tt.want {
				t.Errorf("routeLabel = %q, ожидалось %q", got, tt.want)
			}
		})
	}
}

func TestMetricsMiddleware_RouteLabel(t *testing.T) {
	r := chi.NewRouter()
	r.Use(MetricsMiddleware())
	r.Get("/api/visualize/{id}/", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	counterValue := func() float64 {
		var m dto.Metric
		if err := httpRequestsTotal.WithLabelValues(http.MethodGet, "/api/visualize/{id}/", "200").Write(&m); err != nil {
			t.Fatalf("Write: %v", err)
		}
		return m.GetCounter().GetValue()
	}
	before := counterValue()

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/visualize/9/", nil))

	if got := counterValue(); got != before+1 {
		t.Errorf("счётчик с лейблом шаблона = %v, ожидалось %v", got, before+1)
	}
}

func TestRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(RequestLogger(logger))
	r.Get("/api/files/{id}/", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/files/3/", nil))

	out := buf.String()
	for _, want := range []string{
		`"level":"WARN"`,
		`"status":404`,
		`"route":"/api/files/{id}/"`,
		`"request_id"`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("в логе нет %s: %s", want, out)
		}
	}
	if strings.Contains(out, "Authorization") {
		t.Error("заголовок Authorization не должен логироваться")
	}
}
