// Package docker implements driver.Driver against a local Docker engine.
package docker

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/client"
	"github.com/rs/zerolog/log"

	"github.com/clowdy-dev/clowdy/driver"
)

// DriverName is the name this backend registers under.
const DriverName = "docker"

// ManagedLabel tags every sandbox container this driver creates, so a
// crashed process can find and reap its own orphans on the next start.
const ManagedLabel = "xyz.clowdy.managed"

// Driver implements driver.Driver and driver.ImageInspector over the
// Docker engine API.
type Driver struct {
	cli *client.Client
}

// New constructs a Docker-backed driver. Socket discovery order: an
// explicit "docker_host" entry in cfg, then the DOCKER_HOST env
// override, then a Colima-style alternate socket under the user's home
// directory, then the engine's platform default (via client.FromEnv).
func New(cfg map[string]any) (driver.Driver, error) {
	cli, err := newClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", driver.ErrEngineUnavailable, err)
	}

	go cleanupOrphans(cli)

	return &Driver{cli: cli}, nil
}

func newClient(cfg map[string]any) (*client.Client, error) {
	if host, ok := cfg["docker_host"].(string); ok && host != "" {
		return client.NewClientWithOpts(client.WithHost(host), client.WithAPIVersionNegotiation())
	}

	if os.Getenv("DOCKER_HOST") != "" {
		return client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	}

	if home, err := os.UserHomeDir(); err == nil {
		colimaSock := filepath.Join(home, ".colima", "default", "docker.sock")
		if _, statErr := os.Stat(colimaSock); statErr == nil {
			return client.NewClientWithOpts(
				client.WithHost("unix://"+colimaSock),
				client.WithAPIVersionNegotiation(),
			)
		}
	}

	return client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
}

func init() {
	driver.RegisterDriver(DriverName, New)
}

func cleanupOrphans(cli *client.Client) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	list, err := cli.ContainerList(ctx, types.ContainerListOptions{
		All:     true,
		Filters: filters.NewArgs(filters.Arg("label", ManagedLabel+"=true")),
	})
	if err != nil {
		log.Warn().Err(err).Msg("sandbox orphan scan failed")
		return
	}

	count := 0
	for _, c := range list {
		if err := cli.ContainerRemove(ctx, c.ID, types.ContainerRemoveOptions{Force: true}); err != nil {
			log.Warn().Str("id", c.ID).Err(err).Msg("failed to remove orphaned sandbox")
			continue
		}
		count++
	}
	if count > 0 {
		log.Info().Int("count", count).Msg("removed orphaned sandboxes from a previous run")
	}
}

func (d *Driver) EngineReachable(ctx context.Context) bool {
	_, err := d.cli.Ping(ctx)
	return err == nil
}

func (d *Driver) Close() error {
	return d.cli.Close()
}

// Create provisions and starts a keep-alive sandbox. The container runs
// "sleep infinity" so it stays alive between Worker.Execute calls; the
// pool reuses it across invocations of the same (image, network) key.
func (d *Driver) Create(ctx context.Context, cfg driver.SandboxConfig) (driver.Handle, error) {
	if cfg.Image == "" {
		return "", fmt.Errorf("%w: image is required", driver.ErrInvalidConfig)
	}

	if err := d.ensureImage(ctx, cfg.Image); err != nil {
		return "", err
	}

	hostConfig := &container.HostConfig{
		Resources: container.Resources{
			NanoCPUs: cfg.NanoCPUs,
			Memory:   cfg.MemoryMB * 1024 * 1024,
		},
	}
	if !cfg.EnableNetworking {
		hostConfig.NetworkMode = "none"
	}

	labels := cfg.Labels
	if labels == nil {
		labels = make(map[string]string)
	}
	labels[ManagedLabel] = "true"

	resp, err := d.cli.ContainerCreate(ctx,
		&container.Config{
			Image:  cfg.Image,
			Cmd:    []string{"sleep", "infinity"},
			Labels: labels,
		},
		hostConfig,
		nil,
		nil,
		"",
	)
	if err != nil {
		return "", fmt.Errorf("driver: create sandbox: %w", err)
	}

	if err := d.cli.ContainerStart(ctx, resp.ID, types.ContainerStartOptions{}); err != nil {
		_ = d.cli.ContainerRemove(ctx, resp.ID, types.ContainerRemoveOptions{Force: true})
		return "", fmt.Errorf("driver: start sandbox: %w", err)
	}

	return driver.Handle(resp.ID), nil
}

// ensureImage checks for the image locally and attempts a pull if it's
// missing, surfacing driver.ErrImageMissing when neither succeeds.
func (d *Driver) ensureImage(ctx context.Context, image string) error {
	_, _, err := d.cli.ImageInspectWithRaw(ctx, image)
	if err == nil {
		return nil
	}
	if !client.IsErrNotFound(err) {
		return fmt.Errorf("%w: %s", driver.ErrEngineUnavailable, err)
	}

	reader, pullErr := d.cli.ImagePull(ctx, image, types.ImagePullOptions{})
	if pullErr != nil {
		return fmt.Errorf("%w: %s", driver.ErrImageMissing, pullErr)
	}
	defer reader.Close()
	if _, copyErr := io.Copy(io.Discard, reader); copyErr != nil {
		return fmt.Errorf("%w: %s", driver.ErrImageMissing, copyErr)
	}
	return nil
}

// Destroy force-removes the sandbox. Best-effort: errors are logged, not
// returned, per the Driver contract.
func (d *Driver) Destroy(ctx context.Context, h driver.Handle) {
	err := d.cli.ContainerRemove(ctx, string(h), types.ContainerRemoveOptions{
		Force:         true,
		RemoveVolumes: true,
	})
	if err != nil && !client.IsErrNotFound(err) {
		log.Warn().Str("sandbox", string(h)).Err(err).Msg("failed to destroy sandbox")
	}
}

var _ driver.Driver = (*Driver)(nil)
var _ driver.ImageInspector = (*Driver)(nil)
