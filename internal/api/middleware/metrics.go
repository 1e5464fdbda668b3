// Пакет middleware - HTTP middleware dataviz: аутентификация, политика
// доступа, Prometheus-метрики и журнал запросов.
package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dv_http_requests_total",
			Help: "Количество HTTP-запросов по методу, маршруту и статусу",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dv_http_request_duration_seconds",
			Help:    "Время обработки HTTP-запроса, секунды",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	httpResponseBytes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dv_http_response_bytes_total",
			Help: "Объём тел HTTP-ответов, байты",
		},
		[]string{"method", "path"},
	)
)

// MetricsMiddleware считает запросы, время обработки и объём ответов.
// Лейбл path - шаблон маршрута chi; вне роутера числовые сегменты
// заменяются на {id}.
func MetricsMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := wrapWriter(w, r)

			next.ServeHTTP(ww, r)

			path := routeLabel(r)
			httpRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(statusOf(ww))).Inc()
			httpRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
			httpResponseBytes.WithLabelValues(r.Method, path).Add(float64(ww.BytesWritten()))
		})
	}
}

// wrapWriter переиспользует обёртку, если она уже создана выше по цепочке.
func wrapWriter(w http.ResponseWriter, r *http.Request) chimw.WrapResponseWriter {
	if ww, ok := w.(chimw.WrapResponseWriter); ok {
		return ww
	}
	return chimw.NewWrapResponseWriter(w, r.ProtoMajor)
}

// statusOf - статус ответа; обработчик без WriteHeader отвечает 200.
func statusOf(ww chimw.WrapResponseWriter) int {
	if ww.Status() == 0 {
		return http.StatusOK
	}
	return ww.Status()
}

// routeLabel - шаблон маршрута chi. RoutePattern отбрасывает завершающий
// слэш, а маршруты API зарегистрированы с ним, поэтому слэш восстанавливается
// по пути запроса.
func routeLabel(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			if strings.HasSuffix(r.URL.Path, "/") && !strings.HasSuffix(pattern, "/") {
				pattern += "/"
			}
			return pattern
		}
	}
	return normalizePath(r.URL.Path)
}

// normalizePath: /api/files/42/download/ -> /api/files/{id}/download/
func normalizePath(path string) string {
	segments := strings.Split(path, "/")
	for i, s := range segments {
		if s == "" {
			continue
		}
		if _, err := strconv.ParseUint(s, 10, 64); err == nil {
			segments[i] = "{id}"
		}
	}
	return strings.Join(segments, "/")
}
