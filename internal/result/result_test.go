package result

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/deltaengine/delta/internal/journal"
)

func TestWrite_JSONRoundTrips(t *testing.T) {
	r := RunResult{
		SchemaVersion: SchemaVersion,
		RunID:         "run-1",
		Status:        journal.StatusCompleted,
		Result:        "done",
		Metrics:       Metrics{Iterations: 3},
		Metadata:      RunMetadata{AgentName: "demo", WorkspacePath: "/tmp/ws"},
	}

	var stdout, stderr bytes.Buffer
	if err := Write(&stdout, &stderr, r, FormatJSON); err != nil {
		t.Fatalf("write: %v", err)
	}

	var got RunResult
	if err := json.Unmarshal(stdout.Bytes(), &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.RunID != "run-1" || got.Status != journal.StatusCompleted {
		t.Errorf("got %+v", got)
	}
}

func TestWrite_RawOnlyEmitsResultOnCompletion(t *testing.T) {
	r := RunResult{RunID: "run-1", Status: journal.StatusCompleted, Result: "42"}
	var stdout, stderr bytes.Buffer
	if err := Write(&stdout, &stderr, r, FormatRaw); err != nil {
		t.Fatalf("write: %v", err)
	}
	if stdout.String() != "42" {
		t.Errorf("stdout = %q, want %q", stdout.String(), "42")
	}
}

func TestWrite_RawEmitsNothingOnFailure(t *testing.T) {
	r := RunResult{RunID: "run-1", Status: journal.StatusFailed, Err: &RunError{Kind: "llm", Message: "boom"}}
	var stdout, stderr bytes.Buffer
	if err := Write(&stdout, &stderr, r, FormatRaw); err != nil {
		t.Fatalf("write: %v", err)
	}
	if stdout.Len() != 0 {
		t.Errorf("expected empty stdout on failure, got %q", stdout.String())
	}
}

func TestWrite_TextIncludesStatusAndMetrics(t *testing.T) {
	r := RunResult{
		RunID:  "run-1",
		Status: journal.StatusWaitingForInput,
		Interaction: &Interaction{
			RequestID: "req-1", Prompt: "What is your name?", InputType: "text",
		},
	}
	var stdout, stderr bytes.Buffer
	if err := Write(&stdout, &stderr, r, FormatText); err != nil {
		t.Fatalf("write: %v", err)
	}
	if !strings.Contains(stdout.String(), "What is your name?") {
		t.Errorf("text output missing prompt: %q", stdout.String())
	}
	if !strings.Contains(stdout.String(), "delta continue --run-id run-1") {
		t.Errorf("text output missing resume hint: %q", stdout.String())
	}
}

func TestExitCode_MapsEveryStatus(t *testing.T) {
	cases := []struct {
		status journal.Status
		want   int
	}{
		{journal.StatusCompleted, ExitCodeCompleted},
		{journal.StatusFailed, ExitCodeFailed},
		{journal.StatusWaitingForInput, ExitCodeWaitingForInput},
		{journal.StatusInterrupted, ExitCodeInterrupted},
	}
	for _, c := range cases {
		r := RunResult{Status: c.status}
		if got := r.ExitCode(); got != c.want {
			t.Errorf("status %s: ExitCode() = %d, want %d", c.status, got, c.want)
		}
	}
}
