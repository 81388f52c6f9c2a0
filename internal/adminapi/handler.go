// Package adminapi exposes the gin HTTP surface operators use to
// inspect and manage a running worker: health, metrics, the active
// rule set, circuit breaker state, the dedup window, and an on-demand
// rule reload (SPEC_FULL.md §6.x), grounded on the teacher's
// cmd/management-service and internal/management/handler.go — the
// same BaseHandler/gin.RouterGroup conventions, narrowed to this
// service's read-mostly surface.
package adminapi

import (
	stderrors "errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"changeprop/internal/config"
	"changeprop/internal/logger"
	"changeprop/internal/rulesource"
	"changeprop/pkg/dedupwindow"
	"changeprop/pkg/errors"
	"changeprop/pkg/health"
	"changeprop/pkg/match"
	"changeprop/pkg/ratelimit"
	"changeprop/pkg/retrycond"
	"changeprop/pkg/rule"
)

// BreakerLister is the subset of *executor.Executor this package
// needs to serve /circuit-breakers, accepted as an interface so
// adminapi never depends on internal/executor's full surface.
type BreakerLister interface {
	Breakers() map[string]string
}

// RegistryProvider is the subset of *executor.Executor this package
// needs to serve /rules.
type RegistryProvider interface {
	Registry() *rule.Registry
}

// Handler bundles every collaborator an admin route reads from. All
// fields but healthRegistry are read-only snapshots at request time —
// there is no handler-owned mutable state.
type Handler struct {
	registry RegistryProvider
	breakers BreakerLister
	dedup    dedupwindow.Window
	manager  *rulesource.Manager
	health   *health.CheckerRegistry
	logger   logger.Logger
}

func NewHandler(
	registry RegistryProvider,
	breakers BreakerLister,
	dedup dedupwindow.Window,
	manager *rulesource.Manager,
	healthRegistry *health.CheckerRegistry,
	log logger.Logger,
) *Handler {
	return &Handler{
		registry: registry,
		breakers: breakers,
		dedup:    dedup,
		manager:  manager,
		health:   healthRegistry,
		logger:   log,
	}
}

// RegisterRoutes wires every admin endpoint onto router, optionally
// behind a rate limiter for the one mutating route (spec.md §6.x:
// reload is rate-limited, read endpoints are not).
func (h *Handler) RegisterRoutes(router *gin.Engine, reloadRateLimit config.RateLimitConfig) {
	router.GET("/health", h.Health)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/rules", h.ListRules)
	router.GET("/circuit-breakers", h.ListCircuitBreakers)
	router.GET("/rules/:name/dedup-window", h.DedupWindow)
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	reload := router.Group("/")
	if reloadRateLimit.Enabled {
		reload.Use(ratelimit.RateLimitMiddleware(ratelimit.RateLimitConfig{
			RPS:             reloadRateLimit.RPS,
			Burst:           reloadRateLimit.Burst,
			CleanupInterval: time.Duration(reloadRateLimit.CleanupInterval) * time.Second,
			MaxAge:          time.Duration(reloadRateLimit.MaxAge) * time.Second,
		}, "rules_reload"))
	}
	reload.POST("/rules/reload", h.ReloadRules)
}

// Health reports the aggregate health of every registered dependency
// checker (Postgres, Redis, the broker) as one JSON document.
func (h *Handler) Health(c *gin.Context) {
	result := h.health.Check(c.Request.Context())
	status := http.StatusOK
	if result.Status == health.StatusUnhealthy {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, result)
}

type ruleSummary struct {
	Name  string `json:"name"`
	Topic string `json:"topic"`
}

// ListRules returns every compiled rule's name and bound topic.
func (h *Handler) ListRules(c *gin.Context) {
	reg := h.registry.Registry()

	var rules []ruleSummary
	for _, topic := range reg.Topics() {
		for _, r := range reg.RulesForTopic(topic) {
			rules = append(rules, ruleSummary{Name: r.Name, Topic: r.Topic})
		}
	}
	c.JSON(http.StatusOK, gin.H{"rules": rules, "count": len(rules)})
}

// ReloadRules triggers an immediate rule reload from the configured
// source. A compile failure (InvalidRule/InvalidMatch/
// InvalidRetryCondition) surfaces as 400 with the offending detail;
// any other failure (e.g. the Postgres query itself failing) is a 500.
func (h *Handler) ReloadRules(c *gin.Context) {
	ctx := c.Request.Context()
	if err := h.manager.Reload(ctx); err != nil {
		h.logger.ErrorwCtx(ctx, "rule reload request failed", "error", err)

		var invalidRule *rule.InvalidRule
		var invalidMatch *match.InvalidMatch
		var invalidRetry *retrycond.InvalidRetryCondition
		switch {
		case stderrors.As(err, &invalidRule), stderrors.As(err, &invalidMatch), stderrors.As(err, &invalidRetry):
			c.JSON(http.StatusBadRequest, errors.ToErrorResponse(errors.ErrValidation.WithCause(err)))
		default:
			c.JSON(http.StatusInternalServerError, errors.ToErrorResponse(errors.ErrInternal.WithCause(err)))
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "reloaded"})
}

// ListCircuitBreakers reports every exec-target breaker's current
// state, keyed by the host it guards.
func (h *Handler) ListCircuitBreakers(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"circuit_breakers": h.breakers.Breakers()})
}

// DedupWindow reports how many request IDs are currently recorded in
// the Redis retry-dedup window for the named rule.
func (h *Handler) DedupWindow(c *gin.Context) {
	name := c.Param("name")
	if _, ok := h.registry.Registry().Lookup(name); !ok {
		c.JSON(http.StatusNotFound, errors.ToErrorResponse(errors.ErrRuleNotFound.WithDetail("rule", name)))
		return
	}

	size, err := h.dedup.Size(c.Request.Context(), name)
	if err != nil {
		c.JSON(http.StatusInternalServerError, errors.ToErrorResponse(errors.ErrInternal.WithCause(err)))
		return
	}
	c.JSON(http.StatusOK, gin.H{"rule": name, "size": size})
}
