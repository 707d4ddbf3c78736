package boundary

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/ethereum-optimism/infra/op-harness/events"
	"github.com/ethereum-optimism/infra/op-harness/exitcodes"
)

// IsChild reports whether the process was started by a Subprocess boundary
func IsChild() bool {
	_, ok := os.LookupEnv(RequestEnvVar)
	return ok
}

// ReadRequest decodes the request passed by the parent
func ReadRequest() (Request, error) {
	var req Request
	raw, ok := os.LookupEnv(RequestEnvVar)
	if !ok {
		return req, fmt.Errorf("%s is not set", RequestEnvVar)
	}
	if err := json.Unmarshal([]byte(raw), &req); err != nil {
		return req, fmt.Errorf("failed to decode %s: %w", RequestEnvVar, err)
	}
	return req, nil
}

// ServeChild runs the request found in the environment and writes its events
// to w as prefixed JSON lines. It returns the exit code the child should exit
// with.
func ServeChild(ctx context.Context, engine Engine, w io.Writer, prefix string) int {
	if prefix == "" {
		prefix = events.DefaultLinePrefix
	}
	req, err := ReadRequest()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitcodes.RuntimeErr
	}
	if req.Manifest != "" {
		if err := engine.ApplyManifest(req.Manifest); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return exitcodes.RuntimeErr
		}
	}
	enc := events.NewEncoder(w, prefix)
	result, err := engine.Execute(ctx, req, enc)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitcodes.RuntimeErr
	}
	if err := enc.Err(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitcodes.RuntimeErr
	}
	switch {
	case result.IsFatal():
		return exitcodes.RuntimeErr
	case result.Rollup.IsFailure():
		return exitcodes.TestFailure
	}
	return exitcodes.Success
}
