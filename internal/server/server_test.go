package server

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bigkaa/dataviz/internal/api/handlers"
	"github.com/bigkaa/dataviz/internal/config"
)

func testConfig() *config.Config {
	return &config.Config{
		Port:             0,
		HTTPReadTimeout:  time.Second,
		HTTPWriteTimeout: time.Second,
		HTTPIdleTimeout:  time.Second,
		ShutdownTimeout:  time.Second,
	}
}

func testHandler(logger *slog.Logger) *handlers.APIHandler {
	return handlers.NewAPIHandler(handlers.NewHealthHandler(nil, nil), handlers.Services{}, nil, 1<<20, logger)
}

func TestRun_StopsOnContextCancel(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv := New(testConfig(), logger, testHandler(logger), nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("сервер не остановился")
	}
}

func TestRouter(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	router := NewRouter(testConfig(), logger, testHandler(logger), nil)

	tests := []struct {
		path   string
		status int
	}{
		{"/health/live", http.StatusOK},
		{"/health/ready", http.StatusServiceUnavailable},
		{"/api/files/", http.StatusUnauthorized},
		{"/nope", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))
			if rec.Code != tt.status {
				t.Errorf("статус = %d, ожидался %d", rec.Code, tt.status)
			}
		})
	}
}
