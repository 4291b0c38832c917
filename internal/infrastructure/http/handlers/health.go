package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// HealthHandler handles GET /health, the liveness probe.
// Returns 200 immediately; confirms the process is alive.
type HealthHandler struct{}

func NewHealthHandler() *HealthHandler {
	return &HealthHandler{}
}

func (h *HealthHandler) Liveness(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status": "ok",
	})
}

// Pinger is any dependency that can report its own reachability.
type Pinger interface {
	Ping() error
}

type dependencyCheck struct {
	name  string
	check func(ctx context.Context) error
}

// HealthDependenciesHandler handles GET /health/ready, the readiness probe.
// MongoDB is always checked; Redis and RabbitMQ only when the event bus uses
// them.
type HealthDependenciesHandler struct {
	checks []dependencyCheck
}

// NewHealthDependenciesHandler builds the readiness probe. rdb and rabbit
// may be nil.
func NewHealthDependenciesHandler(db *mongo.Database, rdb *redis.Client, rabbit Pinger) *HealthDependenciesHandler {
	checks := []dependencyCheck{{
		name: "mongodb",
		check: func(ctx context.Context) error {
			return db.RunCommand(ctx, bson.D{{Key: "ping", Value: 1}}).Err()
		},
	}}
	if rdb != nil {
		checks = append(checks, dependencyCheck{
			name:  "redis",
			check: func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
		})
	}
	if rabbit != nil {
		checks = append(checks, dependencyCheck{
			name:  "rabbitmq",
			check: func(context.Context) error { return rabbit.Ping() },
		})
	}
	return &HealthDependenciesHandler{checks: checks}
}

type dependencyStatus struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

type readinessResponse struct {
	Status       string                      `json:"status"`
	Dependencies map[string]dependencyStatus `json:"dependencies"`
}

func (h *HealthDependenciesHandler) Readiness(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 3*time.Second)
	defer cancel()

	deps := make(map[string]dependencyStatus, len(h.checks))
	healthy := true

	for _, dc := range h.checks {
		if err := dc.check(ctx); err != nil {
			deps[dc.name] = dependencyStatus{Status: "unhealthy", Error: err.Error()}
			healthy = false
			continue
		}
		deps[dc.name] = dependencyStatus{Status: "ok"}
	}

	status := "ok"
	httpStatus := http.StatusOK
	if !healthy {
		status = "degraded"
		httpStatus = http.StatusServiceUnavailable
	}

	return c.JSON(httpStatus, readinessResponse{
		Status:       status,
		Dependencies: deps,
	})
}
