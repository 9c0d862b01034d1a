package llmadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strings"

	safeexec "github.com/deltaengine/delta/internal/exec"
)

// AdapterEnvVar names the external adapter command. The transport is a
// collaborator outside this repo; the engine only fixes the contract:
// Request JSON on stdin, Response JSON on stdout, non-zero exit (stderr
// explains why) on failure.
const AdapterEnvVar = "DELTA_LLM_ADAPTER"

// CommandAdapter invokes an external adapter process once per completion.
type CommandAdapter struct {
	Argv []string
	Env  map[string]string
}

// FromEnv builds the adapter named by DELTA_LLM_ADAPTER. The value is
// split on whitespace; quoting is deliberately not supported, wrapper
// scripts exist for anything fancier.
func FromEnv() (*CommandAdapter, error) {
	raw := strings.TrimSpace(os.Getenv(AdapterEnvVar))
	if raw == "" {
		return nil, fmt.Errorf("%s is not set; point it at an LLM adapter command", AdapterEnvVar)
	}
	argv := strings.Fields(raw)
	if !safeexec.IsSafeExecutableValue(argv[0]) {
		return nil, fmt.Errorf("%s names unsafe executable %q", AdapterEnvVar, argv[0])
	}
	return &CommandAdapter{Argv: argv}, nil
}

// Complete pipes the request into the adapter process and parses its
// stdout as a Response.
func (a *CommandAdapter) Complete(ctx context.Context, req Request) (*Response, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal adapter request: %w", err)
	}

	cmd := exec.CommandContext(ctx, a.Argv[0], a.Argv[1:]...)
	cmd.Stdin = bytes.NewReader(payload)
	cmd.Env = os.Environ()
	for k, v := range a.Env {
		cmd.Env = append(cmd.Env, k+"="+v)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return nil, fmt.Errorf("adapter %s: %s", a.Argv[0], msg)
	}

	var resp Response
	if err := json.Unmarshal(stdout.Bytes(), &resp); err != nil {
		return nil, fmt.Errorf("adapter %s produced unparsable response: %w", a.Argv[0], err)
	}
	return &resp, nil
}
