// Package store declares the read/write seams the invocation core needs
// into the persistent system. The real transactional store (schema
// migrations, managed-Postgres provisioning, CRUD admin surface) is an
// external collaborator and is not implemented here; these interfaces
// are the contract it must satisfy. See store/memstore for a reference
// implementation used by tests.
package store

import (
	"context"
	"errors"

	"github.com/clowdy-dev/clowdy/domain"
)

// ErrNotFound is returned by any lookup that finds no matching row.
var ErrNotFound = errors.New("store: not found")

// FunctionStore resolves functions and their active code.
type FunctionStore interface {
	GetFunction(ctx context.Context, id string) (*domain.Function, error)
	GetVersion(ctx context.Context, functionID string, version int) (*domain.FunctionVersion, error)
}

// ProjectStore resolves projects by id or public slug.
type ProjectStore interface {
	GetProject(ctx context.Context, id string) (*domain.Project, error)
	GetProjectBySlug(ctx context.Context, slug string) (*domain.Project, error)
}

// EnvVarStore lists the env vars configured for a project.
type EnvVarStore interface {
	ListEnvVars(ctx context.Context, projectID string) ([]domain.EnvVar, error)
}

// RouteStore lists the routes configured for a project.
type RouteStore interface {
	ListRoutes(ctx context.Context, projectID string) ([]domain.Route, error)
}

// InvocationRecorder appends an invocation log entry.
type InvocationRecorder interface {
	RecordInvocation(ctx context.Context, inv domain.Invocation) error
}

// Store bundles every seam the invocation core depends on.
type Store interface {
	FunctionStore
	ProjectStore
	EnvVarStore
	RouteStore
	InvocationRecorder
}
