// Package invoke implements the Invoke Orchestrator: the single entry
// point for running user code. It coordinates the warm pool (package
// pool), the cold-start path (package placement), and code execution
// (package worker), and decides whether a sandbox is released back to
// the pool or destroyed based on who failed — us or the user's code.
package invoke

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/clowdy-dev/clowdy/driver"
	"github.com/clowdy-dev/clowdy/placement"
	"github.com/clowdy-dev/clowdy/pool"
	"github.com/clowdy-dev/clowdy/worker"
)

// DefaultImage is used when the caller does not name a project-specific
// image.
const DefaultImage = "clowdy-python-runtime"

var tracer = otel.Tracer("github.com/clowdy-dev/clowdy/invoke")

// Result is returned for every invocation, success or failure.
type Result struct {
	Success    bool
	Output     any
	DurationMS int64
	ColdStart  bool
	TimedOut   bool
}

// Orchestrator ties the pool and placement together behind one entry point.
type Orchestrator struct {
	pool      *pool.Pool
	placement *placement.Placement
	d         driver.Driver
}

// New constructs an Orchestrator.
func New(d driver.Driver, p *pool.Pool, pl *placement.Placement) *Orchestrator {
	return &Orchestrator{pool: p, placement: pl, d: d}
}

// Invoke executes code against event, merging env into the exec
// environment, and returns the outcome. image defaults to DefaultImage
// when empty.
func (o *Orchestrator) Invoke(ctx context.Context, code string, event any, env map[string]string, functionName, image string, networkEnabled bool) Result {
	if image == "" {
		image = DefaultImage
	}

	ctx, span := tracer.Start(ctx, "invoke")
	defer span.End()
	span.SetAttributes(
		attribute.String("clowdy.image", image),
		attribute.Bool("clowdy.network_enabled", networkEnabled),
	)

	start := time.Now()
	key := pool.Key{Image: image, NetworkEnabled: networkEnabled}

	handle, coldStart, createErr := o.acquireOrCreate(ctx, key)
	span.SetAttributes(attribute.Bool("clowdy.cold_start", coldStart))

	if createErr != nil {
		span.SetStatus(codes.Error, createErr.Error())
		return Result{
			Success:    false,
			Output:     categorizeCreateError(image, createErr),
			DurationMS: since(start),
			ColdStart:  coldStart,
		}
	}

	result, err := worker.Execute(ctx, o.d, handle, code, event, env, functionName)
	if err != nil {
		// Worker raised against the Driver contract: the sandbox is
		// presumed corrupted. Destroy, don't release.
		o.placement.Destroy(ctx, handle)
		span.SetStatus(codes.Error, err.Error())
		return Result{
			Success:    false,
			Output:     fmt.Sprintf("execution error: %s", err),
			DurationMS: since(start),
			ColdStart:  coldStart,
		}
	}

	if result.TimedOut {
		// Timeout sentinel: destroy, don't reuse, even though the Worker
		// returned cleanly.
		o.placement.Destroy(ctx, handle)
	} else {
		// Clean user-code result, success or FunctionError: the sandbox
		// is healthy and goes back to the pool.
		o.pool.Release(ctx, handle, key)
	}

	if !result.Success {
		span.SetStatus(codes.Error, "function reported an error")
	}

	return Result{
		Success:    result.Success,
		Output:     result.Output,
		DurationMS: since(start),
		ColdStart:  coldStart,
		TimedOut:   result.TimedOut,
	}
}

// acquireOrCreate tries the warm pool first, falling back to a cold
// create. coldStart is true whenever the warm pool missed, regardless of
// whether the subsequent create succeeded.
func (o *Orchestrator) acquireOrCreate(ctx context.Context, key pool.Key) (handle driver.Handle, coldStart bool, err error) {
	if h, ok := o.pool.Acquire(key); ok {
		return h, false, nil
	}
	h, err := o.placement.Create(ctx, key.Image, key.NetworkEnabled)
	if err != nil {
		return "", true, err
	}
	return h, true, nil
}

func categorizeCreateError(image string, err error) string {
	switch {
	case errors.Is(err, driver.ErrEngineUnavailable):
		return "could not reach the sandbox engine — is it running?"
	case errors.Is(err, driver.ErrImageMissing):
		if image == DefaultImage {
			return fmt.Sprintf("image %q not found; build the default runtime image", image)
		}
		return fmt.Sprintf("image %q not found; the project's custom image may need to be rebuilt", image)
	case err != nil:
		return fmt.Sprintf("failed to create sandbox: %s", err)
	default:
		return "failed to create sandbox"
	}
}

func since(start time.Time) int64 {
	return time.Since(start).Milliseconds()
}
