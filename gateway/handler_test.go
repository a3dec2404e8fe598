package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clowdy-dev/clowdy/contextresolver"
	"github.com/clowdy-dev/clowdy/domain"
	"github.com/clowdy-dev/clowdy/driver"
	"github.com/clowdy-dev/clowdy/invoke"
	"github.com/clowdy-dev/clowdy/placement"
	"github.com/clowdy-dev/clowdy/pool"
	"github.com/clowdy-dev/clowdy/store/memstore"
)

// scriptedDriver runs a fixed reply keyed off the "scenario" field of the
// request body carried in INPUT_JSON, standing in for the real bootstrap
// so the gateway can be exercised end-to-end without a Docker engine.
type scriptedDriver struct {
	createCalls int
	destroyed   []driver.Handle
}

func (d *scriptedDriver) Create(context.Context, driver.SandboxConfig) (driver.Handle, error) {
	d.createCalls++
	return driver.Handle("box"), nil
}
func (d *scriptedDriver) Inject(context.Context, driver.Handle, string, string, []byte) error {
	return nil
}
func (d *scriptedDriver) Exec(_ context.Context, _ driver.Handle, _ []string, env map[string]string, _ time.Duration) (int, []byte, []byte, error) {
	var event map[string]any
	_ = json.Unmarshal([]byte(env["INPUT_JSON"]), &event)
	reqBody, _ := event["body"].(map[string]any)

	switch reqBody["scenario"] {
	case "timeout":
		return driver.TimeoutExitCode, nil, nil, nil
	case "custom-response":
		body, _ := json.Marshal(map[string]any{
			"statusCode": 201,
			"headers":    map[string]any{"X-Custom": "yes"},
			"body":       map[string]any{"created": true},
		})
		return 0, body, nil, nil
	default:
		body, _ := json.Marshal(map[string]any{"message": "hello", "params": event["params"]})
		return 0, body, nil, nil
	}
}
func (d *scriptedDriver) Destroy(_ context.Context, h driver.Handle) {
	d.destroyed = append(d.destroyed, h)
}
func (d *scriptedDriver) EngineReachable(context.Context) bool { return true }
func (d *scriptedDriver) Close() error                         { return nil }

func newTestHandler(t *testing.T) (*Handler, *memstore.Store, *scriptedDriver) {
	t.Helper()
	s := memstore.New()
	d := &scriptedDriver{}
	p := pool.New(d, pool.DefaultConfig(), nil)
	pl := placement.New(d)
	orchestrator := invoke.New(d, p, pl)
	resolver := contextresolver.New(s, s)
	return NewHandler(s, s, s, s, resolver, orchestrator), s, d
}

func setupProjectWithRoute(t *testing.T, s *memstore.Store, method, path string) domain.Project {
	t.Helper()
	project := s.PutProject(domain.Project{Name: "demo", Slug: "demo"})
	s.PutFunction(domain.Function{
		ID:            "fn-1",
		ProjectID:     project.ID,
		Name:          "handler",
		Status:        domain.FunctionActive,
		ActiveVersion: 1,
	}, "ignored-by-scriptedDriver")
	s.PutRoute(domain.Route{ProjectID: project.ID, Method: domain.RouteMethod(method), Path: path, FunctionID: "fn-1"})
	return project
}

func doRequest(h *Handler, method, target string) *httptest.ResponseRecorder {
	e := echo.New()
	h.RegisterRoutes(e)
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestHandleHelloEvent(t *testing.T) {
	h, s, _ := newTestHandler(t)
	setupProjectWithRoute(t, s, http.MethodGet, "/hello")

	rec := doRequest(h, http.MethodGet, "/api/gateway/demo/hello")
	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "hello", body["message"])

	invs := s.Invocations()
	require.Len(t, invs, 1)
	assert.Equal(t, domain.InvocationSuccess, invs[0].Status)
	assert.Equal(t, domain.SourceGateway, invs[0].Source)
}

func TestHandlePathParams(t *testing.T) {
	h, s, _ := newTestHandler(t)
	setupProjectWithRoute(t, s, http.MethodGet, "/users/:id")

	rec := doRequest(h, http.MethodGet, "/api/gateway/demo/users/42")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHandleCustomShapedResponse(t *testing.T) {
	h, s, _ := newTestHandler(t)
	project := setupProjectWithRoute(t, s, http.MethodPost, "/create")

	body, _ := json.Marshal(map[string]any{"scenario": "custom-response"})
	req := httptest.NewRequest(http.MethodPost, "/api/gateway/"+project.Slug+"/create", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e := echo.New()
	h.RegisterRoutes(e)
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "yes", rec.Header().Get("X-Custom"))

	var parsed map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &parsed))
	assert.Equal(t, true, parsed["created"])
}

func TestHandleTimeout(t *testing.T) {
	h, s, d := newTestHandler(t)
	project := setupProjectWithRoute(t, s, http.MethodPost, "/slow")

	body, _ := json.Marshal(map[string]any{"scenario": "timeout"})
	req := httptest.NewRequest(http.MethodPost, "/api/gateway/"+project.Slug+"/slow", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e := echo.New()
	h.RegisterRoutes(e)
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	invs := s.Invocations()
	require.Len(t, invs, 1)
	assert.Equal(t, domain.InvocationTimeout, invs[0].Status)
	assert.Len(t, d.destroyed, 1, "a timed-out sandbox must be destroyed, not pooled")
}

func TestHandleWarmReuseAcrossInvocations(t *testing.T) {
	h, s, d := newTestHandler(t)
	setupProjectWithRoute(t, s, http.MethodGet, "/hello")

	doRequest(h, http.MethodGet, "/api/gateway/demo/hello")
	doRequest(h, http.MethodGet, "/api/gateway/demo/hello")

	assert.Equal(t, 1, d.createCalls, "second invocation should reuse the pooled sandbox")
}

func TestHandleMissingRoute(t *testing.T) {
	h, s, _ := newTestHandler(t)
	setupProjectWithRoute(t, s, http.MethodGet, "/hello")

	rec := doRequest(h, http.MethodGet, "/api/gateway/demo/does-not-exist")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleUnknownProjectSlug(t *testing.T) {
	h, _, _ := newTestHandler(t)
	rec := doRequest(h, http.MethodGet, "/api/gateway/nope/hello")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
