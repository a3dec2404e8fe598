// Package driver defines the thin contract over a container engine that
// the rest of the core talks to: create, start, inject a file, exec a
// command, destroy. It is the single owner of engine credentials and
// socket discovery; every other component (placement, worker, the image
// builder) goes through this interface and never touches the engine
// client directly.
package driver

import (
	"context"
	"errors"
	"io"
	"time"
)

// Sentinel errors returned by Driver implementations. Exactly two of
// these — ErrEngineUnavailable and ErrImageMissing — are fatal to an
// invocation's cold-start path (see package invoke); the rest describe
// programmer errors against the Driver contract itself.
var (
	// ErrSandboxNotFound indicates the requested sandbox does not exist.
	ErrSandboxNotFound = errors.New("driver: sandbox not found")

	// ErrEngineUnavailable indicates the engine socket could not be
	// reached at all (daemon down, wrong socket path).
	ErrEngineUnavailable = errors.New("driver: engine unavailable")

	// ErrImageMissing indicates the requested image does not exist and
	// could not be pulled.
	ErrImageMissing = errors.New("driver: image missing")

	// ErrInvalidConfig indicates the provided configuration is invalid.
	ErrInvalidConfig = errors.New("driver: invalid sandbox configuration")
)

// TimeoutExitCode is the sentinel exit code Exec returns when the
// in-sandbox process is killed for exceeding its timeout.
const TimeoutExitCode = 124

// SandboxConfig is the contract between the core and Driver implementations.
type SandboxConfig struct {
	// Image is the engine image to run (e.g. "clowdy-python-runtime" or
	// a project-specific "clowdy-project-{id}:{hash}").
	Image string

	// MemoryMB is the hard memory cap in megabytes.
	MemoryMB int64

	// NanoCPUs is the CPU cap in nano-CPU units (1e9 == 1 full core).
	NanoCPUs int64

	// EnableNetworking allows outbound network access when true.
	EnableNetworking bool

	// Labels are arbitrary key-value metadata attached to the sandbox.
	Labels map[string]string
}

// DefaultResourceProfile is the fixed resource profile every sandbox is
// created with (spec: 128 MiB memory, 0.5 CPU cores).
func DefaultResourceProfile() (memoryMB, nanoCPUs int64) {
	return 128, 500_000_000
}

// Handle identifies a running sandbox inside the engine (e.g. a
// container ID). It carries no behavior of its own.
type Handle string

// Driver is the abstraction interface for sandbox backends. Implementations
// must be safe for concurrent use — many invocations may call Create/Exec/
// Destroy on the same Driver instance in parallel.
type Driver interface {
	// Create instantiates a sandbox running a no-op keep-alive command,
	// applies the resource caps in cfg, and starts it. Returns
	// ErrImageMissing if the image cannot be found or pulled, or
	// ErrEngineUnavailable if the engine cannot be reached at all.
	Create(ctx context.Context, cfg SandboxConfig) (Handle, error)

	// Inject places content as a file at path/filename inside the
	// sandbox via a single tar-stream upload. Idempotent: overwriting
	// the same path is allowed.
	Inject(ctx context.Context, h Handle, path, filename string, content []byte) error

	// Exec runs argv inside the sandbox with the merged environment,
	// subject to timeout. If the process exceeds timeout it is
	// terminated and exitCode is TimeoutExitCode.
	Exec(ctx context.Context, h Handle, argv []string, env map[string]string, timeout time.Duration) (exitCode int, stdout, stderr []byte, err error)

	// Destroy removes the sandbox. Best-effort: it never fails the caller.
	Destroy(ctx context.Context, h Handle)

	// EngineReachable is a cheap liveness probe.
	EngineReachable(ctx context.Context) bool

	// Close releases resources held by the driver itself (the engine
	// client). After Close is called the driver should not be used.
	Close() error
}

// ImageInspector is implemented by drivers that can check for and manage
// locally tagged images; the image builder depends on this subset.
type ImageInspector interface {
	// ImageExists reports whether image is present locally.
	ImageExists(ctx context.Context, image string) (bool, error)

	// BuildImage builds image from an in-memory tar build context and
	// tags it. buildLog, if non-nil on error, carries the engine's
	// trailing build output.
	BuildImage(ctx context.Context, tag string, buildContext io.Reader) (buildLog []string, err error)

	// ListImageTags returns every locally tagged image whose tag begins
	// with prefix.
	ListImageTags(ctx context.Context, prefix string) ([]string, error)

	// RemoveImage removes a single tag. Best-effort.
	RemoveImage(ctx context.Context, tag string)
}

// Factory constructs a Driver from a free-form config map. Backends
// register a Factory under a name in init(); NewDriver looks it up by
// name so the rest of the system never imports a specific backend.
type Factory func(cfg map[string]any) (Driver, error)

var registry = make(map[string]Factory)

// RegisterDriver registers a driver factory under the given name.
// Called from a backend package's init().
func RegisterDriver(name string, factory Factory) {
	registry[name] = factory
}

// NewDriver constructs a Driver using the factory registered under name.
func NewDriver(name string, cfg map[string]any) (Driver, error) {
	factory, ok := registry[name]
	if !ok {
		return nil, errors.New("driver: unknown driver " + name)
	}
	return factory(cfg)
}
