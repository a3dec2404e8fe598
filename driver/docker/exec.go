package docker

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"time"

	"github.com/docker/docker/api/types"

	"github.com/clowdy-dev/clowdy/driver"
)

// Exec runs argv inside the sandbox with the merged environment. The
// command is wrapped in the coreutils "timeout" utility so that
// exceeding timeout both kills the in-sandbox process and yields exit
// code 124 — which this package reports as driver.TimeoutExitCode — the
// same convention GNU timeout(1) itself uses, so no extra translation is
// needed at the call site.
func (d *Driver) Exec(ctx context.Context, h driver.Handle, argv []string, env map[string]string, timeout time.Duration) (int, []byte, []byte, error) {
	wrapped := argv
	if timeout > 0 {
		wrapped = append([]string{"timeout", "-s", "KILL", fmt.Sprintf("%ds", int(timeout.Seconds()+0.999))}, argv...)
	}

	envList := make([]string, 0, len(env))
	for k, v := range env {
		envList = append(envList, k+"="+v)
	}

	execCfg := types.ExecConfig{
		Cmd:          wrapped,
		Env:          envList,
		AttachStdout: true,
		AttachStderr: true,
		Tty:          false,
	}

	created, err := d.cli.ContainerExecCreate(ctx, string(h), execCfg)
	if err != nil {
		return 0, nil, nil, fmt.Errorf("driver: exec create: %w", err)
	}

	attached, err := d.cli.ContainerExecAttach(ctx, created.ID, types.ExecStartCheck{})
	if err != nil {
		return 0, nil, nil, fmt.Errorf("driver: exec attach: %w", err)
	}
	defer attached.Close()

	// Give the API call itself a little headroom beyond the in-sandbox
	// timeout wrapper so a hung engine doesn't block us forever.
	readCtx := ctx
	var cancel context.CancelFunc
	if timeout > 0 {
		readCtx, cancel = context.WithTimeout(ctx, timeout+10*time.Second)
		defer cancel()
	}

	stdout, stderr, demuxErr := demux(readCtx, attached.Reader)
	if demuxErr != nil && demuxErr != io.EOF {
		return 0, stdout, stderr, fmt.Errorf("driver: exec stream: %w", demuxErr)
	}

	inspect, err := d.cli.ContainerExecInspect(ctx, created.ID)
	if err != nil {
		return 0, stdout, stderr, fmt.Errorf("driver: exec inspect: %w", err)
	}

	return inspect.ExitCode, stdout, stderr, nil
}

// demux splits Docker's multiplexed exec stream (an 8-byte header per
// frame: stream type, 3 reserved bytes, 4-byte big-endian payload size)
// into separate stdout/stderr buffers.
func demux(ctx context.Context, r io.Reader) (stdout, stderr []byte, err error) {
	type frame struct {
		isStdout bool
		data     []byte
		err      error
	}
	frames := make(chan frame, 8)

	go func() {
		defer close(frames)
		header := make([]byte, 8)
		for {
			if _, err := io.ReadFull(r, header); err != nil {
				if err != io.EOF {
					frames <- frame{err: err}
				}
				return
			}
			size := binary.BigEndian.Uint32(header[4:8])
			payload := make([]byte, size)
			if _, err := io.ReadFull(r, payload); err != nil {
				frames <- frame{err: err}
				return
			}
			frames <- frame{isStdout: header[0] != 2, data: payload}
		}
	}()

	var outBuf, errBuf bytes.Buffer
	for {
		select {
		case <-ctx.Done():
			return outBuf.Bytes(), errBuf.Bytes(), ctx.Err()
		case f, ok := <-frames:
			if !ok {
				return outBuf.Bytes(), errBuf.Bytes(), nil
			}
			if f.err != nil {
				return outBuf.Bytes(), errBuf.Bytes(), f.err
			}
			if f.isStdout {
				outBuf.Write(f.data)
			} else {
				errBuf.Write(f.data)
			}
		}
	}
}
