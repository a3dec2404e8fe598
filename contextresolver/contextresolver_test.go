package contextresolver

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clowdy-dev/clowdy/domain"
	"github.com/clowdy-dev/clowdy/store/memstore"
)

func TestResolveEmptyProjectIDReturnsEmptyContext(t *testing.T) {
	s := memstore.New()
	r := New(s, s)

	ctx, err := r.Resolve(context.Background(), "")
	require.NoError(t, err)
	assert.Nil(t, ctx.EnvVars)
	assert.Empty(t, ctx.ImageName)
}

func TestResolveNilEnvVarsWhenProjectHasNone(t *testing.T) {
	s := memstore.New()
	p := s.PutProject(domain.Project{Name: "p", Slug: "p"})

	r := New(s, s)
	ctx, err := r.Resolve(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Nil(t, ctx.EnvVars)
}

func TestResolveAllocatesMapWhenEnvVarsPresent(t *testing.T) {
	s := memstore.New()
	p := s.PutProject(domain.Project{Name: "p", Slug: "p"})
	s.PutEnvVar(domain.EnvVar{ProjectID: p.ID, Key: "FOO", Value: "bar"})

	r := New(s, s)
	ctx, err := r.Resolve(context.Background(), p.ID)
	require.NoError(t, err)
	require.NotNil(t, ctx.EnvVars)
	assert.Equal(t, "bar", ctx.EnvVars["FOO"])
}

func TestResolveDatabaseURLOverridesAndAllocates(t *testing.T) {
	s := memstore.New()
	p := s.PutProject(domain.Project{Name: "p", Slug: "p", DatabaseURL: "postgres://x"})
	s.PutEnvVar(domain.EnvVar{ProjectID: p.ID, Key: "DATABASE_URL", Value: "user-set"})

	r := New(s, s)
	ctx, err := r.Resolve(context.Background(), p.ID)
	require.NoError(t, err)
	require.NotNil(t, ctx.EnvVars)
	assert.Equal(t, "postgres://x", ctx.EnvVars["DATABASE_URL"])
}

func TestResolveSetsImageNameOnlyWhenManifestHashPresent(t *testing.T) {
	s := memstore.New()
	withHash := s.PutProject(domain.Project{Name: "a", Slug: "a", ManifestHash: "deadbeef"})
	withoutHash := s.PutProject(domain.Project{Name: "b", Slug: "b"})

	r := New(s, s)

	ctxA, err := r.Resolve(context.Background(), withHash.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, ctxA.ImageName)

	ctxB, err := r.Resolve(context.Background(), withoutHash.ID)
	require.NoError(t, err)
	assert.Empty(t, ctxB.ImageName)
}
