package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const readinessTimeout = time.Second

// Pinger is satisfied by *pgxpool.Pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler exposes liveness and readiness probes. Either dependency may
// be nil, in which case it is reported as skipped.
type HealthHandler struct {
	db    Pinger
	redis redis.Cmdable
}

func NewHealthHandler(db Pinger, redis redis.Cmdable) *HealthHandler {
	return &HealthHandler{db: db, redis: redis}
}

func (h *HealthHandler) Live(w http.ResponseWriter, r *http.Request) {
	RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Ready reports per-dependency status and answers 503 when any check fails.
// Redis is advisory for idempotency, but a configured Redis that is down
// still fails readiness so the instance is drained.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
	defer cancel()

	checks := map[string]string{
		"database": probe(ctx, "database", h.db != nil, func(ctx context.Context) error { return h.db.Ping(ctx) }),
		"redis":    probe(ctx, "redis", h.redis != nil, func(ctx context.Context) error { return h.redis.Ping(ctx).Err() }),
	}

	status, code := "ready", http.StatusOK
	for _, v := range checks {
		if v == "down" {
			status, code = "unavailable", http.StatusServiceUnavailable
		}
	}
	RespondJSON(w, code, map[string]any{"status": status, "checks": checks})
}

func probe(ctx context.Context, name string, configured bool, ping func(context.Context) error) string {
	if !configured {
		return "skipped"
	}
	if err := ping(ctx); err != nil {
		zap.L().Warn("readiness check failed", zap.String("dependency", name), zap.Error(err))
		return "down"
	}
	return "up"
}
