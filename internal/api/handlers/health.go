package handlers

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bigkaa/dataviz/internal/config"
)

const (
	serviceName = "dataviz"
	statusOK    = "ok"
	statusFail  = "fail"
)

// ReadinessChecker - проверка одной зависимости для /health/ready.
type ReadinessChecker interface {
	CheckReady() (status string, message string)
}

type namedChecker struct {
	name    string
	checker ReadinessChecker
}

// HealthHandler обслуживает /health/live, /health/ready и /metrics.
type HealthHandler struct {
	checks      []namedChecker
	promHandler http.Handler
}

// NewHealthHandler создаёт обработчик проверок: PostgreSQL и каталог загрузок.
// Непереданная проверка считается проваленной.
func NewHealthHandler(pgChecker, fsChecker ReadinessChecker) *HealthHandler {
	return &HealthHandler{
		checks: []namedChecker{
			{name: "postgresql", checker: pgChecker},
			{name: "filestore", checker: fsChecker},
		},
		promHandler: promhttp.Handler(),
	}
}

type checkResult struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

type liveResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
	Service   string `json:"service"`
}

type readyResponse struct {
	Status    string                 `json:"status"`
	Timestamp string                 `json:"timestamp"`
	Checks    map[string]checkResult `json:"checks"`
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339)
}

func (h *HealthHandler) HealthLive(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, liveResponse{
		Status:    statusOK,
		Timestamp: now(),
		Version:   config.Version,
		Service:   serviceName,
	})
}

// HealthReady отвечает 503, если хотя бы одна проверка не "ok".
func (h *HealthHandler) HealthReady(w http.ResponseWriter, _ *http.Request) {
	resp := readyResponse{
		Status:    statusOK,
		Timestamp: now(),
		Checks:    make(map[string]checkResult, len(h.checks)),
	}
	code := http.StatusOK

	for _, c := range h.checks {
		res := checkResult{Status: statusFail, Message: "не инициализирован"}
		if c.checker != nil {
			res.Status, res.Message = c.checker.CheckReady()
		}
		if res.Status != statusOK {
			resp.Status = statusFail
			code = http.StatusServiceUnavailable
		}
		resp.Checks[c.name] = res
	}

	writeJSON(w, code, resp)
}

func (h *HealthHandler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	h.promHandler.ServeHTTP(w, r)
}
