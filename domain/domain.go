// Package domain holds the entities the invocation core reads and writes.
// These are owned by the external persistent store (see package store);
// the core treats them as plain data.
package domain

import "time"

// FunctionStatus is the lifecycle state of a Function.
type FunctionStatus string

const (
	FunctionActive FunctionStatus = "active"
	FunctionError  FunctionStatus = "error"
)

// Function is an immutable identifier with a mutable active-version pointer.
type Function struct {
	ID              string
	Name            string
	RuntimeTag      string // only "python" is supported today
	Status          FunctionStatus
	ActiveVersion   int
	NetworkEnabled  bool
	ProjectID       string // empty if the function has no project
}

// FunctionVersion is an append-only code snapshot. Versions never mutate.
type FunctionVersion struct {
	FunctionID string
	Version    int // >= 1
	Code       string
}

// Project groups functions, routes, and env vars under a public slug.
type Project struct {
	ID             string
	Name           string
	Slug           string
	Manifest       string // dependency manifest, may be empty
	ManifestHash   string // may be empty
	DatabaseURL    string // optional managed-database connection URL
}

// EnvVar is a (ProjectID, Key) unique value. IsSecret only affects
// external API responses; the core always injects the full value.
type EnvVar struct {
	ProjectID string
	Key       string
	Value     string
	IsSecret  bool
}

// RouteMethod is an HTTP method a Route responds to, or ANY.
type RouteMethod string

const (
	MethodGET    RouteMethod = "GET"
	MethodPOST   RouteMethod = "POST"
	MethodPUT    RouteMethod = "PUT"
	MethodDELETE RouteMethod = "DELETE"
	MethodPATCH  RouteMethod = "PATCH"
	MethodANY    RouteMethod = "ANY"
)

// Route maps an HTTP (method, path) pair to a function within a project.
type Route struct {
	ProjectID  string
	Method     RouteMethod
	Path       string // '/'-joined literal or ':name' segments
	FunctionID string
}

// InvocationStatus is the outcome recorded for an Invocation.
type InvocationStatus string

const (
	InvocationSuccess InvocationStatus = "success"
	InvocationError   InvocationStatus = "error"
	InvocationTimeout InvocationStatus = "timeout"
)

// InvocationSource distinguishes direct API calls from gateway-routed ones.
type InvocationSource string

const (
	SourceDirect  InvocationSource = "direct"
	SourceGateway InvocationSource = "gateway"
)

// Invocation is an append-only log entry emitted by the core for every run.
type Invocation struct {
	FunctionID string
	Input      string // serialized input (the event object for gateway calls)
	Output     string // JSON if the result was a dict, else string form
	Status     InvocationStatus
	DurationMS int64
	Source     InvocationSource
	HTTPMethod string // only set for InvocationSource == SourceGateway
	HTTPPath   string
	CreatedAt  time.Time
}
