package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"sort"
	"time"
)

const healthCheckTimeout = 3 * time.Second

// Checker проверяет доступность зависимости.
type Checker interface {
	Check(ctx context.Context) error
}

// CheckerFunc позволяет передать функцию как Checker.
type CheckerFunc func(ctx context.Context) error

func (f CheckerFunc) Check(ctx context.Context) error { return f(ctx) }

type HealthStatus struct {
	Status string `json:"status"`
}

type HealthResponse struct {
	Status string                  `json:"status"`
	Checks map[string]HealthStatus `json:"checks"`
}

type HealthHandler struct {
	checkers map[string]Checker
	logger   *slog.Logger
}

func NewHealthHandler(checkers map[string]Checker, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{checkers: checkers, logger: logger}
}

func (h *HealthHandler) Check(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	names := make([]string, 0, len(h.checkers))
	for name := range h.checkers {
		names = append(names, name)
	}
	sort.Strings(names)

	resp := HealthResponse{Status: "ok", Checks: make(map[string]HealthStatus, len(names))}
	status := http.StatusOK
	for _, name := range names {
		if err := h.checkers[name].Check(ctx); err != nil {
			h.logger.ErrorContext(ctx, "health check failed", slog.String("name", name), slog.Any("error", err))
			resp.Checks[name] = HealthStatus{Status: "error"}
			resp.Status = "error"
			status = http.StatusServiceUnavailable
			continue
		}
		resp.Checks[name] = HealthStatus{Status: "ok"}
	}

	if err := writeJSON(w, status, resp, nil); err != nil {
		h.logger.ErrorContext(ctx, "failed to write health response", slog.Any("error", err))
	}
}
