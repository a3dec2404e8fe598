// Package placement creates and destroys sandboxes under the fixed
// resource profile. Placement is the only component permitted to call
// driver.Create/Destroy directly; it carries no state beyond the driver
// reference.
package placement

import (
	"context"

	"github.com/clowdy-dev/clowdy/driver"
)

// Placement wraps a driver.Driver with the resource profile every
// sandbox it creates is bound to.
type Placement struct {
	d        driver.Driver
	memoryMB int64
	nanoCPUs int64
}

// New returns a Placement backed by d, using the package's fixed
// default resource profile.
func New(d driver.Driver) *Placement {
	memoryMB, nanoCPUs := driver.DefaultResourceProfile()
	return &Placement{d: d, memoryMB: memoryMB, nanoCPUs: nanoCPUs}
}

// NewWithResourceProfile is New but lets the caller override the
// resource profile — local dev configs may want smaller/larger caps
// than the fixed production default.
func NewWithResourceProfile(d driver.Driver, memoryMB, nanoCPUs int64) *Placement {
	return &Placement{d: d, memoryMB: memoryMB, nanoCPUs: nanoCPUs}
}

// Create provisions a fresh sandbox for the given (image, network) pair.
func (p *Placement) Create(ctx context.Context, image string, networkEnabled bool) (driver.Handle, error) {
	return p.d.Create(ctx, driver.SandboxConfig{
		Image:            image,
		MemoryMB:         p.memoryMB,
		NanoCPUs:         p.nanoCPUs,
		EnableNetworking: networkEnabled,
	})
}

// Destroy removes a sandbox. Best-effort, never fails the caller.
func (p *Placement) Destroy(ctx context.Context, h driver.Handle) {
	p.d.Destroy(ctx, h)
}
