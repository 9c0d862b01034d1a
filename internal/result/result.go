// Package result assembles and formats the RunResult emitted on stdout at
// the end of every run or continue invocation. stdout carries only the
// structured result (or the raw payload); all diagnostics go to stderr,
// so callers can pipe the output without scraping.
package result

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/deltaengine/delta/internal/journal"
)

const SchemaVersion = "2.0"

// Format selects the stdout rendering requested via --format.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatRaw  Format = "raw"
)

// Usage reports aggregate LLM accounting across every invocation of a run.
type Usage struct {
	TotalCostUSD float64        `json:"total_cost_usd"`
	InputTokens  int            `json:"input_tokens"`
	OutputTokens int            `json:"output_tokens"`
	ModelUsage   map[string]int `json:"model_usage,omitempty"`
}

// Metrics reports run-level accounting independent of outcome.
type Metrics struct {
	Iterations int       `json:"iterations"`
	DurationMs int64     `json:"duration_ms"`
	StartTime  time.Time `json:"start_time"`
	EndTime    time.Time `json:"end_time"`
	Usage      Usage     `json:"usage"`
}

// RunMetadata identifies the agent and workspace a result belongs to.
type RunMetadata struct {
	AgentName     string `json:"agent_name"`
	WorkspacePath string `json:"workspace_path"`
}

// Interaction is present when status=WAITING_FOR_INPUT: the pending
// ask_human prompt the caller must answer via `continue -m`.
type Interaction struct {
	RequestID string `json:"request_id"`
	Prompt    string `json:"prompt"`
	InputType string `json:"input_type"`
	Sensitive bool   `json:"sensitive,omitempty"`
}

// RunError is present when status=FAILED.
type RunError struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// RunResult is the single structured object the engine emits on stdout at
// the end of a run/continue invocation. Exactly one of Result, Err, or
// Interaction is populated, selected by Status.
type RunResult struct {
	SchemaVersion string         `json:"schema_version"`
	RunID         string         `json:"run_id"`
	Status        journal.Status `json:"status"`
	Result        string         `json:"result,omitempty"`
	Err           *RunError      `json:"error,omitempty"`
	Interaction   *Interaction   `json:"interaction,omitempty"`
	Metrics       Metrics        `json:"metrics"`
	Metadata      RunMetadata    `json:"metadata"`
}

// ExitCode maps a RunResult's status (and, for WAITING_FOR_INPUT, nothing
// else) to the process exit code spec §4.J / §6.1 requires. Configuration
// errors that never reach a RunResult use ExitCodeConfigError directly.
func (r RunResult) ExitCode() int {
	switch r.Status {
	case journal.StatusCompleted:
		return ExitCodeCompleted
	case journal.StatusFailed:
		return ExitCodeFailed
	case journal.StatusWaitingForInput:
		return ExitCodeWaitingForInput
	case journal.StatusInterrupted:
		return ExitCodeInterrupted
	default:
		return ExitCodeFailed
	}
}

// Process exit codes, spec §4.J.
const (
	ExitCodeCompleted       = 0
	ExitCodeFailed          = 1
	ExitCodeWaitingForInput = 101
	ExitCodeConfigError     = 126
	ExitCodeInterrupted     = 130
)

// Write renders r to stdout in the requested format, matching the
// engine's "structured result on stdout, logs on stderr" contract (spec
// §4.J). It writes nothing to stderr itself.
func Write(stdout, stderr io.Writer, r RunResult, format Format) error {
	switch format {
	case FormatJSON, "":
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(r)

	case FormatRaw:
		if r.Status == journal.StatusCompleted {
			fmt.Fprint(stdout, r.Result)
		}
		return nil

	case FormatText:
		return writeText(stdout, stderr, r)

	default:
		return fmt.Errorf("unknown result format %q", format)
	}
}

func writeText(stdout, stderr io.Writer, r RunResult) error {
	var b strings.Builder
	fmt.Fprintf(&b, "run %s: %s\n", r.RunID, r.Status)

	switch r.Status {
	case journal.StatusCompleted:
		fmt.Fprintln(&b, r.Result)
	case journal.StatusFailed:
		if r.Err != nil {
			fmt.Fprintf(&b, "error (%s): %s\n", r.Err.Kind, r.Err.Message)
		}
	case journal.StatusWaitingForInput:
		if r.Interaction != nil {
			fmt.Fprintf(&b, "waiting for input: %s\n", r.Interaction.Prompt)
			fmt.Fprintf(&b, "resume with: delta continue --run-id %s -m \"<answer>\"\n", r.RunID)
		}
	case journal.StatusInterrupted:
		fmt.Fprintln(&b, "interrupted")
	}

	fmt.Fprintf(&b, "iterations=%d duration_ms=%d cost_usd=%.4f\n",
		r.Metrics.Iterations, r.Metrics.DurationMs, r.Metrics.Usage.TotalCostUSD)

	_, err := io.WriteString(stdout, b.String())
	return err
}
