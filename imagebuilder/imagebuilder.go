// Package imagebuilder materializes per-project sandbox images from a
// project's dependency manifest, content-addressed by a canonical hash
// of the manifest so unchanged manifests skip the build entirely.
package imagebuilder

import (
	"archive/tar"
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"github.com/clowdy-dev/clowdy/driver"
)

// BaseImage is the runtime image every project-custom image extends.
const BaseImage = "clowdy-python-runtime"

// Builder builds and prunes per-project custom images.
type Builder struct {
	engine driver.ImageInspector
}

// New constructs a Builder backed by engine.
func New(engine driver.ImageInspector) *Builder {
	return &Builder{engine: engine}
}

// Hash computes a stable SHA-256 over a manifest's canonical form: lines
// trimmed, blank lines dropped, "#"-prefixed comment lines dropped,
// remaining lines sorted, joined with "\n". Sorting and trimming ensure
// reordering or re-formatting the manifest does not invalidate the cache.
func Hash(manifest string) string {
	var lines []string
	for _, line := range strings.Split(manifest, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		lines = append(lines, trimmed)
	}
	sort.Strings(lines)
	sum := sha256.Sum256([]byte(strings.Join(lines, "\n")))
	return hex.EncodeToString(sum[:])
}

// ImageName returns the tag a project's custom image is built under.
func ImageName(projectID, hash string) string {
	short := hash
	if len(short) > 8 {
		short = short[:8]
	}
	return fmt.Sprintf("clowdy-project-%s:%s", projectID, short)
}

// Result is the outcome of Build.
type Result struct {
	OK        bool
	ImageName string
	Hash      string
	Error     string
}

// Build computes the manifest hash, returns immediately if that image
// already exists (cache hit), and otherwise assembles a minimal build
// context (the manifest plus a build spec layering its install on top of
// BaseImage), submits the build, tags it, and prunes stale tags for this
// project on success.
func (b *Builder) Build(ctx context.Context, projectID, manifest string) Result {
	hash := Hash(manifest)
	image := ImageName(projectID, hash)

	exists, err := b.engine.ImageExists(ctx, image)
	if err != nil {
		return Result{Error: fmt.Sprintf("checking for existing image: %s", err)}
	}
	if exists {
		return Result{OK: true, ImageName: image, Hash: hash}
	}

	buildContext, err := buildContextArchive(manifest)
	if err != nil {
		return Result{Error: fmt.Sprintf("assembling build context: %s", err)}
	}

	buildLog, err := b.engine.BuildImage(ctx, image, buildContext)
	if err != nil {
		msg := err.Error()
		if len(buildLog) > 0 {
			msg = strings.Join(buildLog, "\n")
		}
		return Result{Error: msg}
	}

	b.Prune(ctx, projectID, hash)
	return Result{OK: true, ImageName: image, Hash: hash}
}

// Prune removes every locally tagged image for projectID except the one
// matching keepHash. Best-effort; failures are swallowed by the driver.
func (b *Builder) Prune(ctx context.Context, projectID, keepHash string) {
	prefix := fmt.Sprintf("clowdy-project-%s:", projectID)
	keepTag := ImageName(projectID, keepHash)

	tags, err := b.engine.ListImageTags(ctx, prefix)
	if err != nil {
		return
	}
	for _, tag := range tags {
		if tag != keepTag {
			b.engine.RemoveImage(ctx, tag)
		}
	}
}

// manifestFilename is the name the dependency manifest is written under
// inside both the sandbox and the build context.
const manifestFilename = "requirements.txt"

// buildSpec layers the manifest install on top of BaseImage. It is a
// standard Dockerfile-format build spec; the copied manifest is deleted
// after install, so it is absent from the final image's filesystem,
// though the COPY layer beneath still holds it.
func buildSpec() string {
	return fmt.Sprintf(
		"FROM %s\n"+
			"COPY %s /tmp/%s\n"+
			"RUN pip install --no-cache-dir -r /tmp/%s && rm /tmp/%s\n",
		BaseImage, manifestFilename, manifestFilename, manifestFilename, manifestFilename,
	)
}

func buildContextArchive(manifest string) (*bytes.Buffer, error) {
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)

	files := map[string][]byte{
		"Dockerfile":      []byte(buildSpec()),
		manifestFilename: []byte(manifest),
	}
	// Deterministic order for reproducible archives.
	for _, name := range []string{"Dockerfile", manifestFilename} {
		data := files[name]
		header := &tar.Header{Name: name, Size: int64(len(data)), Mode: 0o644}
		if err := tw.WriteHeader(header); err != nil {
			return nil, err
		}
		if _, err := tw.Write(data); err != nil {
			return nil, err
		}
	}
	if err := tw.Close(); err != nil {
		return nil, err
	}
	return &buf, nil
}
