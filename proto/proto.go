// Package proto defines the wire shape the in-sandbox bootstrap writes
// back: the error envelope it may print to stdout on failure. The input
// event is not modelled here; the Worker passes it as JSON in the
// INPUT_JSON environment variable. There is no persistent RPC session
// here — the bootstrap runs once per invocation and exits.
package proto

// BootstrapError is the shape runner.py writes to stdout when it fails
// (bad input, a load failure, a missing or raising handler, or a
// non-serializable result), so the Worker can surface a message instead
// of a raw traceback.
type BootstrapError struct {
	Error string `json:"error"`
}
