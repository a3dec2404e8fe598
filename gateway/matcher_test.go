package gateway

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clowdy-dev/clowdy/domain"
)

func TestCompileAndMatchLiteral(t *testing.T) {
	m := Compile("/hello")
	params, ok := m.Match("/hello")
	require.True(t, ok)
	assert.Empty(t, params)

	_, ok = m.Match("/hello/world")
	assert.False(t, ok)
}

func TestCompileAndMatchParams(t *testing.T) {
	m := Compile("/users/:id/posts/:postId")
	params, ok := m.Match("/users/42/posts/7")
	require.True(t, ok)
	assert.Equal(t, map[string]string{"id": "42", "postId": "7"}, params)
}

func TestMatchRejectsEmptyParamSegment(t *testing.T) {
	m := Compile("/users/:id")
	_, ok := m.Match("/users/")
	assert.False(t, ok)
}

func TestNormalizePath(t *testing.T) {
	cases := map[string]string{
		"":          "/",
		"a":         "/a",
		"/a/":       "/a",
		"/a/b/":     "/a/b",
		"/":         "/",
		"///a///b/": "/a/b",
	}
	for in, want := range cases {
		assert.Equal(t, want, NormalizePath(in), "NormalizePath(%q)", in)
	}
}

func TestMatchRouteExactMethodBeforeANY(t *testing.T) {
	routes := []domain.Route{
		{Method: domain.MethodANY, Path: "/a", FunctionID: "any-fn"},
		{Method: domain.MethodGET, Path: "/a", FunctionID: "get-fn"},
	}
	route, _, ok := MatchRoute(routes, "GET", "/a")
	require.True(t, ok)
	assert.Equal(t, "get-fn", route.FunctionID)
}

func TestMatchRouteFallsBackToANY(t *testing.T) {
	routes := []domain.Route{
		{Method: domain.MethodANY, Path: "/a", FunctionID: "any-fn"},
	}
	route, _, ok := MatchRoute(routes, "DELETE", "/a")
	require.True(t, ok)
	assert.Equal(t, "any-fn", route.FunctionID)
}

func TestMatchRouteFirstMatchWinsInStoreOrder(t *testing.T) {
	// Two GET routes where a more specific pattern is registered second;
	// store order wins, not specificity.
	routes := []domain.Route{
		{Method: domain.MethodGET, Path: "/users/:id", FunctionID: "generic"},
		{Method: domain.MethodGET, Path: "/users/42", FunctionID: "specific"},
	}
	route, _, ok := MatchRoute(routes, "GET", "/users/42")
	require.True(t, ok)
	assert.Equal(t, "generic", route.FunctionID)
}

func TestMatchRouteNoMatch(t *testing.T) {
	routes := []domain.Route{
		{Method: domain.MethodGET, Path: "/a", FunctionID: "fn"},
	}
	_, _, ok := MatchRoute(routes, "POST", "/a")
	assert.False(t, ok)
}
