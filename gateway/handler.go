package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"github.com/clowdy-dev/clowdy/contextresolver"
	"github.com/clowdy-dev/clowdy/domain"
	"github.com/clowdy-dev/clowdy/invoke"
	"github.com/clowdy-dev/clowdy/store"
)

// Handler serves /api/gateway/:slug/* by resolving a project's routes,
// synthesizing an event from the request, running the matched function,
// and shaping the result back into an HTTP response.
type Handler struct {
	projects     store.ProjectStore
	routes       store.RouteStore
	functions    store.FunctionStore
	invocations  store.InvocationRecorder
	resolver     *contextresolver.Resolver
	orchestrator *invoke.Orchestrator
}

// NewHandler constructs a Handler.
func NewHandler(
	projects store.ProjectStore,
	routes store.RouteStore,
	functions store.FunctionStore,
	invocations store.InvocationRecorder,
	resolver *contextresolver.Resolver,
	orchestrator *invoke.Orchestrator,
) *Handler {
	return &Handler{
		projects:     projects,
		routes:       routes,
		functions:    functions,
		invocations:  invocations,
		resolver:     resolver,
		orchestrator: orchestrator,
	}
}

// RegisterRoutes wires the gateway passthrough into e.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.Any("/api/gateway/:slug/*", h.handle)
	e.Any("/api/gateway/:slug", h.handle)
}

func errJSON(msg string) map[string]string {
	return map[string]string{"error": msg}
}

func (h *Handler) handle(c echo.Context) error {
	ctx := c.Request().Context()
	slug := c.Param("slug")
	path := NormalizePath("/" + c.Param("*"))

	project, err := h.projects.GetProjectBySlug(ctx, slug)
	if err != nil {
		return c.JSON(http.StatusNotFound, errJSON("project not found"))
	}

	routes, err := h.routes.ListRoutes(ctx, project.ID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, errJSON("could not list routes"))
	}
	if len(routes) == 0 {
		return c.JSON(http.StatusNotFound, errJSON("project has no routes"))
	}

	route, params, ok := MatchRoute(routes, c.Request().Method, path)
	if !ok {
		return c.JSON(http.StatusNotFound, errJSON("no route matches this request"))
	}

	fn, err := h.functions.GetFunction(ctx, route.FunctionID)
	if err != nil {
		return c.JSON(http.StatusNotFound, errJSON("function not found"))
	}
	if fn.Status != domain.FunctionActive {
		return c.JSON(http.StatusServiceUnavailable, errJSON("function is not active"))
	}

	version, err := h.functions.GetVersion(ctx, fn.ID, fn.ActiveVersion)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, errJSON("active version unavailable"))
	}

	event, err := BuildEvent(c.Request(), path, params)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, errJSON("could not read request body"))
	}

	execCtx, err := h.resolver.Resolve(ctx, fn.ProjectID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, errJSON("could not resolve execution context"))
	}

	result := h.orchestrator.Invoke(ctx, version.Code, event, execCtx.EnvVars, fn.Name, execCtx.ImageName, fn.NetworkEnabled)

	h.record(ctx, fn, event, path, result)

	if !result.Success {
		return c.JSON(http.StatusInternalServerError, map[string]any{"error": result.Output})
	}
	return writeResponse(c, result.Output)
}

func (h *Handler) record(ctx context.Context, fn *domain.Function, event Event, path string, result invoke.Result) {
	status := domain.InvocationSuccess
	switch {
	case result.TimedOut:
		status = domain.InvocationTimeout
	case !result.Success:
		status = domain.InvocationError
	}

	inputJSON, _ := json.Marshal(event)
	outputJSON, _ := json.Marshal(result.Output)

	inv := domain.Invocation{
		FunctionID: fn.ID,
		Input:      string(inputJSON),
		Output:     string(outputJSON),
		Status:     status,
		DurationMS: result.DurationMS,
		Source:     domain.SourceGateway,
		HTTPMethod: event.Method,
		HTTPPath:   path,
		CreatedAt:  time.Now(),
	}
	if err := h.invocations.RecordInvocation(ctx, inv); err != nil {
		log.Error().Err(err).Str("function_id", fn.ID).Msg("failed to record invocation")
	}
}

// shapedResponse is the {statusCode, headers, body} contract a function may
// return to control its HTTP response directly, instead of the default
// 200-plus-JSON-wrap.
type shapedResponse struct {
	statusCode int
	headers    map[string]string
	body       any
	hasBody    bool
}

func asShapedResponse(output any) (shapedResponse, bool) {
	m, ok := output.(map[string]any)
	if !ok {
		return shapedResponse{}, false
	}
	code, ok := toStatusCode(m["statusCode"])
	if !ok {
		return shapedResponse{}, false
	}

	resp := shapedResponse{statusCode: code}
	if rawHeaders, ok := m["headers"].(map[string]any); ok {
		resp.headers = make(map[string]string, len(rawHeaders))
		for k, v := range rawHeaders {
			if s, ok := v.(string); ok {
				resp.headers[k] = s
			}
		}
	}
	if body, ok := m["body"]; ok {
		resp.body = body
		resp.hasBody = true
	}
	return resp, true
}

func toStatusCode(v any) (int, bool) {
	switch n := v.(type) {
	case float64:
		return int(n), true
	case int:
		return n, true
	default:
		return 0, false
	}
}

func writeResponse(c echo.Context, output any) error {
	shaped, ok := asShapedResponse(output)
	if !ok {
		return c.JSON(http.StatusOK, output)
	}

	for k, v := range shaped.headers {
		c.Response().Header().Set(k, v)
	}
	if !shaped.hasBody {
		return c.NoContent(shaped.statusCode)
	}
	if s, ok := shaped.body.(string); ok {
		return c.String(shaped.statusCode, s)
	}
	return c.JSON(shaped.statusCode, shaped.body)
}
