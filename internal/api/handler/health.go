package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const readinessTimeout = time.Second

// Pinger is implemented by the relational store.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler exposes Kubernetes-style liveness and readiness endpoints.
type HealthHandler struct {
	checks []dependencyCheck
}

type dependencyCheck struct {
	name string
	ping func(context.Context) error
}

// NewHealthHandler accepts nil for dependencies that are not in use; the in-memory
// storage driver runs with neither.
func NewHealthHandler(db Pinger, rdb redis.Cmdable) *HealthHandler {
	h := &HealthHandler{}
	if db != nil {
		h.checks = append(h.checks, dependencyCheck{name: "database", ping: db.Ping})
	}
	if rdb != nil {
		h.checks = append(h.checks, dependencyCheck{name: "cache", ping: func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		}})
	}
	return h
}

// Live reports OK while the process is up.
func (h *HealthHandler) Live(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// Ready pings each configured dependency and fails on the first one that is down.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
	defer cancel()

	status := make(map[string]string, len(h.checks))
	for _, c := range h.checks {
		if err := c.ping(ctx); err != nil {
			zap.L().Warn("readiness check failed", zap.String("dependency", c.name), zap.Error(err))
			RespondError(w, r, http.StatusServiceUnavailable, "health/"+c.name+"-unavailable", c.name+" unavailable")
			return
		}
		status[c.name] = "ok"
	}

	RespondJSON(w, http.StatusOK, map[string]any{"status": "ready", "checks": status})
}
