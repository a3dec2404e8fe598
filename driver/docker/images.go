package docker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/client"
	"github.com/rs/zerolog/log"
)

// ImageExists reports whether image is tagged locally.
func (d *Driver) ImageExists(ctx context.Context, image string) (bool, error) {
	_, _, err := d.cli.ImageInspectWithRaw(ctx, image)
	if err == nil {
		return true, nil
	}
	if client.IsErrNotFound(err) {
		return false, nil
	}
	return false, err
}

// buildStreamMessage is one line of the engine's newline-delimited JSON
// build response (moby's jsonmessage.JSONMessage, trimmed to the fields
// the build log needs).
type buildStreamMessage struct {
	Stream      string `json:"stream"`
	Error       string `json:"error"`
	ErrorDetail *struct {
		Message string `json:"message"`
	} `json:"errorDetail"`
}

// BuildImage submits buildContext (an in-memory tar stream) to the engine
// and tags the result as tag. The engine reports a failing build step
// (e.g. a bad RUN command) as a 200 response with a terminal JSON
// message carrying "error"/"errorDetail" rather than as a request-level
// error, so the stream must be decoded and inspected for that message —
// a nil err from ImageBuild only means the request was accepted. On
// failure it returns up to the trailing ten lines of the build log.
func (d *Driver) BuildImage(ctx context.Context, tag string, buildContext io.Reader) ([]string, error) {
	resp, err := d.cli.ImageBuild(ctx, buildContext, types.ImageBuildOptions{
		Tags:        []string{tag},
		Remove:      true,
		ForceRemove: true,
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var lines []string
	var buildErr error

	dec := json.NewDecoder(resp.Body)
	for {
		var msg buildStreamMessage
		if err := dec.Decode(&msg); err != nil {
			if err == io.EOF {
				break
			}
			return lines, fmt.Errorf("driver: decode build stream: %w", err)
		}

		if line := strings.TrimRight(msg.Stream, "\n"); line != "" {
			lines = append(lines, line)
			if len(lines) > 10 {
				lines = lines[len(lines)-10:]
			}
		}

		if msg.Error != "" {
			detail := msg.Error
			if msg.ErrorDetail != nil && msg.ErrorDetail.Message != "" {
				detail = msg.ErrorDetail.Message
			}
			buildErr = errors.New(detail)
			lines = append(lines, detail)
			if len(lines) > 10 {
				lines = lines[len(lines)-10:]
			}
		}
	}

	return lines, buildErr
}

// ListImageTags returns every locally tagged image whose tag starts with prefix.
func (d *Driver) ListImageTags(ctx context.Context, prefix string) ([]string, error) {
	images, err := d.cli.ImageList(ctx, types.ImageListOptions{})
	if err != nil {
		return nil, fmt.Errorf("driver: list images: %w", err)
	}

	var tags []string
	for _, img := range images {
		for _, tag := range img.RepoTags {
			if strings.HasPrefix(tag, prefix) {
				tags = append(tags, tag)
			}
		}
	}
	return tags, nil
}

// RemoveImage removes a single tag. Best-effort.
func (d *Driver) RemoveImage(ctx context.Context, tag string) {
	if _, err := d.cli.ImageRemove(ctx, tag, types.ImageRemoveOptions{Force: true}); err != nil {
		log.Warn().Str("tag", tag).Err(err).Msg("failed to remove stale project image")
	}
}
