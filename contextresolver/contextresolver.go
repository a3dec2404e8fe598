// Package contextresolver resolves everything a function needs to run
// besides the code itself: project env vars, a custom image tag, and
// the managed-database URL. Shared by both the direct-invoke and
// gateway entry points so this logic isn't duplicated.
package contextresolver

import (
	"context"
	"fmt"

	"github.com/clowdy-dev/clowdy/imagebuilder"
	"github.com/clowdy-dev/clowdy/store"
)

// Context is everything needed to run a function besides the code.
type Context struct {
	// EnvVars is nil when the project has neither env vars nor a
	// database URL — distinct from a present-but-empty map, so the
	// Worker's env merge sees "no overrides" rather than an empty map.
	EnvVars   map[string]string
	ImageName string // empty if the project has no custom image
}

// Resolver resolves execution context for a project.
type Resolver struct {
	projects store.ProjectStore
	envVars  store.EnvVarStore
}

// New constructs a Resolver.
func New(projects store.ProjectStore, envVars store.EnvVarStore) *Resolver {
	return &Resolver{projects: projects, envVars: envVars}
}

// Resolve returns the Context for projectID, or an empty Context if
// projectID is empty (a function with no project).
func (r *Resolver) Resolve(ctx context.Context, projectID string) (Context, error) {
	if projectID == "" {
		return Context{}, nil
	}

	var envVars map[string]string

	rows, err := r.envVars.ListEnvVars(ctx, projectID)
	if err != nil {
		return Context{}, fmt.Errorf("contextresolver: list env vars: %w", err)
	}
	if len(rows) > 0 {
		envVars = make(map[string]string, len(rows))
		for _, ev := range rows {
			envVars[ev.Key] = ev.Value
		}
	}

	project, err := r.projects.GetProject(ctx, projectID)
	if err != nil {
		return Context{}, fmt.Errorf("contextresolver: get project: %w", err)
	}

	var imageName string
	if project.ManifestHash != "" {
		imageName = imagebuilder.ImageName(project.ID, project.ManifestHash)
	}

	if project.DatabaseURL != "" {
		if envVars == nil {
			envVars = make(map[string]string, 1)
		}
		envVars["DATABASE_URL"] = project.DatabaseURL
	}

	return Context{EnvVars: envVars, ImageName: imageName}, nil
}
