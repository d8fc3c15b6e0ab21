// metrics.go — Prometheus HTTP метрики для Beryll Tracking Module.
// Регистрирует метрики: bt_http_requests_total, bt_http_request_duration_seconds.
package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP метрики
var (
	// httpRequestsTotal — общее количество HTTP-запросов.
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bt_http_requests_total",
			Help: "Общее количество HTTP-запросов к Beryll Tracking Module",
		},
		[]string{"method", "path", "status"},
	)

	// httpRequestDuration — гистограмма длительности HTTP-запросов.
	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bt_http_request_duration_seconds",
			Help:    "Длительность HTTP-запросов к Beryll Tracking Module в секундах",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

// MetricsMiddleware возвращает HTTP middleware для сбора Prometheus метрик.
// Записывает количество запросов и длительность для каждого endpoint.
func MetricsMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// Нормализуем путь для лейблов метрик
			// (заменяем UUID на {id} для предотвращения кардинальности)
			normalizedPath := normalizePath(r.URL.Path)

			wrapped := newMetricsResponseWriter(w)
			next.ServeHTTP(wrapped, r)

			duration := time.Since(start).Seconds()
			status := strconv.Itoa(wrapped.statusCode)

			httpRequestsTotal.WithLabelValues(r.Method, normalizedPath, status).Inc()
			httpRequestDuration.WithLabelValues(r.Method, normalizedPath).Observe(duration)
		})
	}
}

// metricsResponseWriter — обёртка для перехвата статус-кода.
type metricsResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func newMetricsResponseWriter(w http.ResponseWriter) *metricsResponseWriter {
	return &metricsResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}
}

func (rw *metricsResponseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Unwrap позволяет http.ResponseController получить доступ к оригинальному ResponseWriter.
func (rw *metricsResponseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// uuidLen — длина UUID в текстовом представлении.
const uuidLen = 36

// normalizePath заменяет UUID-сегменты пути на {id} для предотвращения
// взрывного роста кардинальности метрик.
// /api/v1/servers/a1b2c3d4-.../components → /api/v1/servers/{id}/components
func normalizePath(path string) string {
	// Статические пути — возвращаем как есть
	switch path {
	case "/health/live", "/health/ready", "/metrics",
		"/api/v1/servers",
		"/api/v1/components/search",
		"/api/v1/components/check-serial",
		"/api/v1/approvals/queue",
		"/api/v1/approvals/stats",
		"/api/v1/checklists/templates",
		"/api/v1/users/me",
		"/api/v1/users/role-overrides":
		return path
	}

	// Динамические пути с UUID; после идентификатора может идти
	// вложенный ресурс.
	prefixes := []struct {
		prefix string
		result string
	}{
		{"/api/v1/servers/", "/api/v1/servers/{id}"},
		{"/api/v1/components/", "/api/v1/components/{id}"},
		{"/api/v1/approvals/", "/api/v1/approvals/{id}"},
		{"/api/v1/users/role-overrides/", "/api/v1/users/role-overrides/{id}"},
	}

	for _, p := range prefixes {
		if len(path) > len(p.prefix) && path[:len(p.prefix)] == p.prefix {
			suffix := ""
			if len(path) > len(p.prefix)+uuidLen {
				suffix = path[len(p.prefix)+uuidLen:]
			}
			switch suffix {
			case "/status", "/archive", "/components", "/components/batch",
				"/history", "/checklist", "/approvals", "/stages",
				"/serials", "/replace", "/approve", "/reject":
				return p.result + suffix
			default:
				if len(suffix) > len("/checklist/") && suffix[:len("/checklist/")] == "/checklist/" {
					return p.result + "/checklist/{templateId}"
				}
				return p.result
			}
		}
	}

	return path
}
