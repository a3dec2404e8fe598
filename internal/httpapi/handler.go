// Package httpapi is the control plane's own HTTP surface: health,
// metrics, and a direct-invoke endpoint for operator tooling. It is not
// the CRUD admin API for function/project/route definitions (out of
// scope) — it only runs what already exists, the way the teacher's
// internal/api package exposed a thin v1 surface over the driver.
package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/clowdy-dev/clowdy/contextresolver"
	"github.com/clowdy-dev/clowdy/domain"
	"github.com/clowdy-dev/clowdy/driver"
	"github.com/clowdy-dev/clowdy/invoke"
	"github.com/clowdy-dev/clowdy/pool"
	"github.com/clowdy-dev/clowdy/store"
)

// Handler serves the control plane's own operational endpoints.
type Handler struct {
	driver       driver.Driver
	pool         *pool.Pool
	functions    store.FunctionStore
	invocations  store.InvocationRecorder
	resolver     *contextresolver.Resolver
	orchestrator *invoke.Orchestrator
}

// NewHandler constructs a Handler.
func NewHandler(
	d driver.Driver,
	p *pool.Pool,
	functions store.FunctionStore,
	invocations store.InvocationRecorder,
	resolver *contextresolver.Resolver,
	orchestrator *invoke.Orchestrator,
) *Handler {
	return &Handler{
		driver:       d,
		pool:         p,
		functions:    functions,
		invocations:  invocations,
		resolver:     resolver,
		orchestrator: orchestrator,
	}
}

// RegisterRoutes wires the health/metrics/direct-invoke endpoints onto e.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", h.health)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	e.POST("/api/functions/:id/invoke", h.invokeFunction)
	e.GET("/api/pool/stats", h.poolStats)
}

func (h *Handler) poolStats(c echo.Context) error {
	stats := h.pool.Stats()
	byKey := make([]map[string]any, 0, len(stats.ByKey))
	for key, count := range stats.ByKey {
		byKey = append(byKey, map[string]any{
			"image":           key.Image,
			"network_enabled": key.NetworkEnabled,
			"count":           count,
		})
	}
	return c.JSON(http.StatusOK, map[string]any{
		"total":  stats.Total,
		"by_key": byKey,
	})
}

func (h *Handler) health(c echo.Context) error {
	if !h.driver.EngineReachable(c.Request().Context()) {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "engine unreachable"})
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// invokeRequest is the body for a direct invocation: the event passed
// to the function as-is, with no HTTP request to synthesize it from.
type invokeRequest struct {
	Event any `json:"event"`
}

func (h *Handler) invokeFunction(c echo.Context) error {
	ctx := c.Request().Context()
	id := c.Param("id")

	fn, err := h.functions.GetFunction(ctx, id)
	if err != nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "function not found"})
	}
	if fn.Status != domain.FunctionActive {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "function is not active"})
	}

	version, err := h.functions.GetVersion(ctx, fn.ID, fn.ActiveVersion)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "active version unavailable"})
	}

	var req invokeRequest
	if err := json.NewDecoder(c.Request().Body).Decode(&req); err != nil && err.Error() != "EOF" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	execCtx, err := h.resolver.Resolve(ctx, fn.ProjectID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "could not resolve execution context"})
	}

	result := h.orchestrator.Invoke(ctx, version.Code, req.Event, execCtx.EnvVars, fn.Name, execCtx.ImageName, fn.NetworkEnabled)

	status := domain.InvocationSuccess
	switch {
	case result.TimedOut:
		status = domain.InvocationTimeout
	case !result.Success:
		status = domain.InvocationError
	}

	inputJSON, _ := json.Marshal(req.Event)
	outputJSON, _ := json.Marshal(result.Output)
	inv := domain.Invocation{
		FunctionID: fn.ID,
		Input:      string(inputJSON),
		Output:     string(outputJSON),
		Status:     status,
		DurationMS: result.DurationMS,
		Source:     domain.SourceDirect,
		CreatedAt:  time.Now(),
	}
	if err := h.invocations.RecordInvocation(ctx, inv); err != nil {
		log.Error().Err(err).Str("function_id", fn.ID).Msg("failed to record invocation")
	}

	if !result.Success {
		return c.JSON(http.StatusOK, map[string]any{
			"success":     false,
			"output":      result.Output,
			"duration_ms": result.DurationMS,
			"cold_start":  result.ColdStart,
		})
	}
	return c.JSON(http.StatusOK, map[string]any{
		"success":     true,
		"output":      result.Output,
		"duration_ms": result.DurationMS,
		"cold_start":  result.ColdStart,
	})
}
