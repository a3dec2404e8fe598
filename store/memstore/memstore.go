// Package memstore is an in-memory reference implementation of store.Store,
// used by unit and integration tests in place of the real transactional
// store (out of scope per the core spec).
package memstore

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/clowdy-dev/clowdy/domain"
	"github.com/clowdy-dev/clowdy/store"
)

// Store is a thread-safe, in-process store.Store.
type Store struct {
	mu sync.RWMutex

	functions   map[string]domain.Function
	versions    map[string]map[int]domain.FunctionVersion
	projects    map[string]domain.Project
	slugs       map[string]string // slug -> project id
	envVars     map[string][]domain.EnvVar
	routes      map[string][]domain.Route
	invocations []domain.Invocation
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		functions: make(map[string]domain.Function),
		versions:  make(map[string]map[int]domain.FunctionVersion),
		projects:  make(map[string]domain.Project),
		slugs:     make(map[string]string),
		envVars:   make(map[string][]domain.EnvVar),
		routes:    make(map[string][]domain.Route),
	}
}

// PutFunction inserts or replaces a function and its active version's code.
func (s *Store) PutFunction(fn domain.Function, code string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if fn.ID == "" {
		fn.ID = uuid.NewString()
	}
	s.functions[fn.ID] = fn
	if s.versions[fn.ID] == nil {
		s.versions[fn.ID] = make(map[int]domain.FunctionVersion)
	}
	s.versions[fn.ID][fn.ActiveVersion] = domain.FunctionVersion{
		FunctionID: fn.ID,
		Version:    fn.ActiveVersion,
		Code:       code,
	}
}

// PutProject inserts or replaces a project.
func (s *Store) PutProject(p domain.Project) domain.Project {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	s.projects[p.ID] = p
	s.slugs[p.Slug] = p.ID
	return p
}

// PutEnvVar inserts or replaces a (project, key) env var.
func (s *Store) PutEnvVar(ev domain.EnvVar) {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := s.envVars[ev.ProjectID]
	for i, existing := range list {
		if existing.Key == ev.Key {
			list[i] = ev
			s.envVars[ev.ProjectID] = list
			return
		}
	}
	s.envVars[ev.ProjectID] = append(list, ev)
}

// PutRoute inserts a route. Routes are appended, preserving insertion
// order — the gateway matcher relies on store order (see gateway package).
func (s *Store) PutRoute(r domain.Route) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.routes[r.ProjectID] = append(s.routes[r.ProjectID], r)
}

func (s *Store) GetFunction(_ context.Context, id string) (*domain.Function, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn, ok := s.functions[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	out := fn
	return &out, nil
}

func (s *Store) GetVersion(_ context.Context, functionID string, version int) (*domain.FunctionVersion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	versions, ok := s.versions[functionID]
	if !ok {
		return nil, store.ErrNotFound
	}
	v, ok := versions[version]
	if !ok {
		return nil, store.ErrNotFound
	}
	out := v
	return &out, nil
}

func (s *Store) GetProject(_ context.Context, id string) (*domain.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.projects[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	out := p
	return &out, nil
}

func (s *Store) GetProjectBySlug(_ context.Context, slug string) (*domain.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.slugs[slug]
	if !ok {
		return nil, store.ErrNotFound
	}
	p := s.projects[id]
	return &p, nil
}

func (s *Store) ListEnvVars(_ context.Context, projectID string) ([]domain.EnvVar, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.EnvVar, len(s.envVars[projectID]))
	copy(out, s.envVars[projectID])
	return out, nil
}

func (s *Store) ListRoutes(_ context.Context, projectID string) ([]domain.Route, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Route, len(s.routes[projectID]))
	copy(out, s.routes[projectID])
	return out, nil
}

func (s *Store) RecordInvocation(_ context.Context, inv domain.Invocation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.invocations = append(s.invocations, inv)
	return nil
}

// Invocations returns a snapshot of every recorded invocation, for tests.
func (s *Store) Invocations() []domain.Invocation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Invocation, len(s.invocations))
	copy(out, s.invocations)
	return out
}

var _ store.Store = (*Store)(nil)
