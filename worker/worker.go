// Package worker executes user code inside an already-running sandbox.
// Worker never creates, destroys, or pools sandboxes — see placement and
// pool for that.
package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/clowdy-dev/clowdy/driver"
	"github.com/clowdy-dev/clowdy/proto"
)

// CodePath is the fixed path inside the sandbox user code is injected at.
const CodePath = "/app"

// CodeFilename is the fixed filename user code is injected as.
const CodeFilename = "function.py"

// BootstrapArgv is the fixed command the image's bootstrap ships under.
var BootstrapArgv = []string{"python", "/app/runner.py"}

// ExecTimeout is the wall-clock limit on a single function invocation.
const ExecTimeout = 30 * time.Second

// Result is the outcome of executing one function inside a sandbox.
type Result struct {
	Success bool
	Output  any
	// TimedOut is set when the sandbox process was killed for exceeding
	// ExecTimeout; the caller destroys the sandbox rather than pooling it.
	TimedOut bool
}

// Execute injects code into the sandbox, runs the bootstrap with the
// event and env merged into INPUT_JSON/FUNCTION_NAME, and parses the
// result. It tolerates an injection failure by surfacing Success=false
// without mutating sandbox state — the caller decides whether to pool
// or destroy based on the returned error, not Result.Success.
func Execute(ctx context.Context, d driver.Driver, h driver.Handle, code string, event any, env map[string]string, functionName string) (Result, error) {
	if err := d.Inject(ctx, h, CodePath, CodeFilename, []byte(code)); err != nil {
		return Result{Success: false, Output: fmt.Sprintf("failed to inject function code: %s", err)}, nil
	}

	eventJSON, err := json.Marshal(event)
	if err != nil {
		return Result{}, fmt.Errorf("worker: marshal event: %w", err)
	}

	execEnv := make(map[string]string, len(env)+2)
	for k, v := range env {
		execEnv[k] = v
	}
	// These two always win over any user-provided collision.
	execEnv["INPUT_JSON"] = string(eventJSON)
	execEnv["FUNCTION_NAME"] = functionName

	exitCode, stdout, stderr, err := d.Exec(ctx, h, BootstrapArgv, execEnv, ExecTimeout)
	if err != nil {
		return Result{}, fmt.Errorf("worker: exec: %w", err)
	}

	if exitCode == driver.TimeoutExitCode {
		return Result{
			Success:  false,
			Output:   fmt.Sprintf("Function timed out after %d seconds", int(ExecTimeout.Seconds())),
			TimedOut: true,
		}, nil
	}

	if exitCode != 0 {
		return Result{Success: false, Output: extractError(stdout, stderr)}, nil
	}

	return Result{Success: true, Output: parseOutput(stdout)}, nil
}

// parseOutput parses stdout as JSON; if parsing fails the raw trimmed
// string is returned as-is.
func parseOutput(stdout []byte) any {
	trimmed := bytes.TrimSpace(stdout)
	var parsed any
	if err := json.Unmarshal(trimmed, &parsed); err != nil {
		return string(trimmed)
	}
	return parsed
}

// extractError derives a user-facing error message from a non-zero exit:
// parse stdout as {"error": "..."}; on parse failure use the raw stdout;
// else fall back to stderr; else a generic message.
func extractError(stdout, stderr []byte) string {
	trimmed := bytes.TrimSpace(stdout)
	if len(trimmed) > 0 {
		var be proto.BootstrapError
		if err := json.Unmarshal(trimmed, &be); err == nil && be.Error != "" {
			return be.Error
		}
		return string(trimmed)
	}
	if stderrTrimmed := bytes.TrimSpace(stderr); len(stderrTrimmed) > 0 {
		return string(stderrTrimmed)
	}
	return "function exited with an error"
}
