package docker

import (
	"archive/tar"
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/docker/docker/api/types"

	"github.com/clowdy-dev/clowdy/driver"
)

// Inject writes content as path/filename inside the sandbox using a
// single in-memory tar-stream upload — no host filesystem staging.
// The archive entry carries the full target path and is extracted at
// the sandbox root, so path is created if it does not exist yet.
func (d *Driver) Inject(ctx context.Context, h driver.Handle, path, filename string, content []byte) error {
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)

	header := &tar.Header{
		Name:    strings.TrimPrefix(filepath.Join(path, filename), "/"),
		Size:    int64(len(content)),
		Mode:    0o644,
		ModTime: time.Now(),
	}
	if err := tw.WriteHeader(header); err != nil {
		return fmt.Errorf("driver: tar header: %w", err)
	}
	if _, err := tw.Write(content); err != nil {
		return fmt.Errorf("driver: tar write: %w", err)
	}
	if err := tw.Close(); err != nil {
		return fmt.Errorf("driver: tar close: %w", err)
	}

	if err := d.cli.CopyToContainer(ctx, string(h), "/", &buf, types.CopyToContainerOptions{}); err != nil {
		return fmt.Errorf("driver: inject %s/%s: %w", path, filename, err)
	}
	return nil
}
