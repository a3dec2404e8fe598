package gateway

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildEventParsesJSONBody(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/p/hello?name=Ada", strings.NewReader(`{"name":"Ada"}`))
	req.Header.Set("Content-Type", "application/json")

	event, err := BuildEvent(req, "/hello", map[string]string{"slug": "p"})
	require.NoError(t, err)

	assert.Equal(t, "POST", event.Method)
	assert.Equal(t, "/hello", event.Path)
	assert.Equal(t, map[string]string{"slug": "p"}, event.Params)
	assert.Equal(t, "Ada", event.Query["name"])
	assert.Equal(t, map[string]any{"name": "Ada"}, event.Body)
}

func TestBuildEventQueryLastValueWins(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/a?x=1&x=2", nil)
	event, err := BuildEvent(req, "/a", nil)
	require.NoError(t, err)
	assert.Equal(t, "2", event.Query["x"])
}

func TestBuildEventExcludesSensitiveHeaders(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/a", nil)
	req.Header.Set("Authorization", "Bearer secret")
	req.Header.Set("Connection", "keep-alive")
	req.Header.Set("X-Custom", "value")

	event, err := BuildEvent(req, "/a", nil)
	require.NoError(t, err)

	assert.NotContains(t, event.Headers, "authorization")
	assert.NotContains(t, event.Headers, "connection")
	assert.NotContains(t, event.Headers, "host")
	assert.Equal(t, "value", event.Headers["x-custom"])
}

func TestBuildEventFallsBackToUTF8String(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/a", strings.NewReader("not json"))
	req.Header.Set("Content-Type", "text/plain")

	event, err := BuildEvent(req, "/a", nil)
	require.NoError(t, err)
	assert.Equal(t, "not json", event.Body)
}

func TestBuildEventEmptyBodyIsNil(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/a", nil)
	event, err := BuildEvent(req, "/a", nil)
	require.NoError(t, err)
	assert.Nil(t, event.Body)
}
