// Package harness runs scripted dispatcher scenarios for conformance and
// golden-trace testing.
//
// A scenario is a YAML file describing a sequence of steps — queue,
// submit, update, cancel — executed against a fresh dispatcher from a
// single driver goroutine. Submits in the harness always block, so the
// interleaving between the driver and the core loop is fixed and the
// recorded trace is deterministic byte for byte. Golden files under
// testdata/golden are the source of truth for expected traces.
package harness
