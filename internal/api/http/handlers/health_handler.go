package handlers

import (
	"context"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/spec-kit/helpdesk-service/internal/persistence"
)

const readinessTimeout = 2 * time.Second

type pinger interface {
	Ping(ctx context.Context) error
}

type dependency struct {
	name   string
	client pinger
}

// HealthHandler serves the liveness and readiness checks.
type HealthHandler struct {
	serviceName string
	version     string
	startedAt   time.Time
	deps        []dependency
}

// NewHealthHandler returns a new handler instance. A nil postgres or redis is
// reported as disabled and does not fail readiness.
func NewHealthHandler(serviceName, version string, postgres *persistence.Postgres, redis *persistence.Redis) *HealthHandler {
	h := &HealthHandler{serviceName: serviceName, version: version, startedAt: time.Now()}
	if postgres != nil {
		h.deps = append(h.deps, dependency{name: "postgres", client: postgres})
	}
	if redis != nil {
		h.deps = append(h.deps, dependency{name: "redis", client: redis})
	}
	return h
}

// Live reports service liveness.
func (h *HealthHandler) Live(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":         "alive",
		"service":        h.serviceName,
		"version":        h.version,
		"uptime_seconds": int64(time.Since(h.startedAt).Seconds()),
	})
}

// Ready pings every configured dependency in parallel.
func (h *HealthHandler) Ready(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), readinessTimeout)
	defer cancel()

	var mu sync.Mutex
	depStatus := fiber.Map{"postgres": "disabled", "redis": "disabled"}
	ready := true

	var g errgroup.Group
	for _, dep := range h.deps {
		dep := dep
		g.Go(func() error {
			status := "ok"
			if err := dep.client.Ping(ctx); err != nil {
				status = err.Error()
			}
			mu.Lock()
			defer mu.Unlock()
			depStatus[dep.name] = status
			if status != "ok" {
				ready = false
			}
			return nil
		})
	}
	_ = g.Wait()

	if ready {
		return c.JSON(fiber.Map{"status": "ready", "dependencies": depStatus})
	}
	return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
		"error": fiber.Map{
			"code":    "DEPENDENCY_UNAVAILABLE",
			"message": "one or more dependencies unavailable",
			"details": depStatus,
		},
	})
}

// Metrics serves the Prometheus registry gathered by g, or the default
// gatherer when g is nil.
func Metrics(g prometheus.Gatherer) fiber.Handler {
	if g == nil {
		g = prometheus.DefaultGatherer
	}
	return adaptor.HTTPHandler(promhttp.HandlerFor(g, promhttp.HandlerOpts{}))
}
