// Package gateway implements the Route Matcher and HTTP surface that
// routes external requests into the invocation core: pattern
// compilation, method+path matching, event synthesis, and response
// shaping.
package gateway

import (
	"strings"
	"sync"

	"github.com/clowdy-dev/clowdy/domain"
)

// segment is one compiled path segment: either a literal that must match
// byte-for-byte, or a ":name" parameter that binds any non-empty,
// slash-free value.
type segment struct {
	literal string
	isParam bool
	name    string
}

// Matcher is a compiled route path.
type Matcher struct {
	segments []segment
}

// Compile turns a stored route path like "/users/:id/posts/:postId" into
// a Matcher over path segments. Empty segments from leading/trailing
// slashes are normalized away.
func Compile(pattern string) *Matcher {
	var segs []segment
	for _, part := range strings.Split(pattern, "/") {
		if part == "" {
			continue
		}
		if strings.HasPrefix(part, ":") {
			segs = append(segs, segment{isParam: true, name: part[1:]})
		} else {
			segs = append(segs, segment{literal: part})
		}
	}
	return &Matcher{segments: segs}
}

// Match tests path (already normalized by NormalizePath) against the
// compiled pattern, returning captured parameters on success.
func (m *Matcher) Match(path string) (map[string]string, bool) {
	parts := splitPath(path)
	if len(parts) != len(m.segments) {
		return nil, false
	}

	params := make(map[string]string, len(m.segments))
	for i, seg := range m.segments {
		part := parts[i]
		if seg.isParam {
			if part == "" {
				return nil, false
			}
			params[seg.name] = part
		} else if part != seg.literal {
			return nil, false
		}
	}
	return params, true
}

func splitPath(path string) []string {
	var parts []string
	for _, part := range strings.Split(path, "/") {
		if part != "" {
			parts = append(parts, part)
		}
	}
	return parts
}

// NormalizePath ensures a single leading "/", collapses repeated "/"
// into one, and strips any trailing "/" unless the path is just "/".
func NormalizePath(path string) string {
	return "/" + strings.Join(splitPath(path), "/")
}

// compiledRoute pairs a stored route with its (memoized) compiled matcher.
type compiledRoute struct {
	route   domain.Route
	matcher *Matcher
}

// matcherCache memoizes compilation per route path, since compilation is
// stable and cheap but routes are matched repeatedly.
var matcherCache sync.Map // map[string]*Matcher

func compileCached(path string) *Matcher {
	if v, ok := matcherCache.Load(path); ok {
		return v.(*Matcher)
	}
	m := Compile(path)
	matcherCache.Store(path, m)
	return m
}

// MatchRoute finds the first route matching (method, path): exact method
// matches are tried before ANY. Scan order is the order routes is given
// in — the caller's store order, per the spec's store-order contract
// (no longest-prefix or most-specific-wins policy).
func MatchRoute(routes []domain.Route, method, path string) (*domain.Route, map[string]string, bool) {
	normalized := NormalizePath(path)
	method = strings.ToUpper(method)

	for _, checkMethod := range []string{method, string(domain.MethodANY)} {
		for i := range routes {
			route := routes[i]
			if string(route.Method) != checkMethod {
				continue
			}
			if params, ok := compileCached(route.Path).Match(normalized); ok {
				return &route, params, true
			}
		}
	}
	return nil, nil, false
}
