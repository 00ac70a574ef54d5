package observability

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-redis/redis/v8"
)

// HealthStatus reports the health of the service's dependencies
type HealthStatus struct {
	Healthy   bool              `json:"healthy"`
	Checks    map[string]string `json:"checks"`
	CheckedAt time.Time         `json:"checked_at"`
}

// HealthChecker verifies connectivity to the durable store and Redis
type HealthChecker struct {
	db     *sql.DB
	client *redis.Client
}

// NewHealthChecker creates a health checker for the given dependencies.
// Either dependency may be nil and is then skipped.
func NewHealthChecker(db *sql.DB, client *redis.Client) *HealthChecker {
	return &HealthChecker{db: db, client: client}
}

// Check pings each dependency with a bounded timeout
func (h *HealthChecker) Check(ctx context.Context) HealthStatus {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	status := HealthStatus{
		Healthy:   true,
		Checks:    make(map[string]string),
		CheckedAt: time.Now().UTC(),
	}

	if h.db != nil {
		if err := h.db.PingContext(ctx); err != nil {
			status.Healthy = false
			status.Checks["database"] = err.Error()
		} else {
			status.Checks["database"] = "ok"
		}
	}

	if h.client != nil {
		if err := h.client.Ping(ctx).Err(); err != nil {
			status.Healthy = false
			status.Checks["redis"] = err.Error()
		} else {
			status.Checks["redis"] = "ok"
		}
	}

	return status
}

// HTTPHandler serves the health status as JSON, 503 when unhealthy
func (h *HealthChecker) HTTPHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := h.Check(r.Context())

		w.Header().Set("Content-Type", "application/json")
		if !status.Healthy {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(status)
	}
}
