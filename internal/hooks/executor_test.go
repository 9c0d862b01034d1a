package hooks

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/deltaengine/delta/internal/config"
)

func TestDispatch_NoHookConfigured(t *testing.T) {
	dir := t.TempDir()
	ex, err := NewExecutor(config.HooksConfig{}, "run1", dir, filepath.Join(dir, "io", "hooks"))
	if err != nil {
		t.Fatal(err)
	}
	result, err := ex.Dispatch(context.Background(), PreToolExecution, 1, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != nil {
		t.Errorf("expected nil result when no hook configured, got %+v", result)
	}
}

func TestDispatch_RunsHookAndCapturesOutput(t *testing.T) {
	workspace := t.TempDir()
	ioHooks := filepath.Join(workspace, "io", "hooks")

	hooksCfg := config.HooksConfig{
		"post_tool_execution": config.HookDef{Command: []string{"sh", "-c", "cat > /dev/null; echo done"}},
	}
	ex, err := NewExecutor(hooksCfg, "run1", workspace, ioHooks)
	if err != nil {
		t.Fatal(err)
	}

	result, err := ex.Dispatch(context.Background(), PostToolExecution, 2, ToolPayload{ToolName: "echo_test"}, nil)
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if result == nil {
		t.Fatal("expected non-nil result")
	}
	if result.Status != StatusSuccess {
		t.Errorf("expected SUCCESS, got %s", result.Status)
	}

	metaDir := filepath.Join(ioHooks, result.IOPathRef, "execution_meta")
	stdout, err := os.ReadFile(filepath.Join(metaDir, "stdout.log"))
	if err != nil {
		t.Fatal(err)
	}
	if string(stdout) != "done\n" {
		t.Errorf("unexpected stdout.log: %q", stdout)
	}

	contextJSON, err := os.ReadFile(filepath.Join(ioHooks, result.IOPathRef, "input", "context.json"))
	if err != nil {
		t.Fatal(err)
	}
	var envelope Envelope
	if err := json.Unmarshal(contextJSON, &envelope); err != nil {
		t.Fatal(err)
	}
	if envelope.RunID != "run1" || envelope.Iteration != 2 {
		t.Errorf("unexpected envelope: %+v", envelope)
	}
}

func TestDispatch_PreLLMReqReplacesPayload(t *testing.T) {
	workspace := t.TempDir()
	ioHooks := filepath.Join(workspace, "io", "hooks")

	script := `read -r line
mkdir -p "$DELTA_HOOK_IO_PATH/output"
echo '{"replaced":true}' > "$DELTA_HOOK_IO_PATH/output/final_payload.json"
`
	hooksCfg := config.HooksConfig{
		"pre_llm_request": config.HookDef{Command: []string{"sh", "-c", script}},
	}
	ex, err := NewExecutor(hooksCfg, "run1", workspace, ioHooks)
	if err != nil {
		t.Fatal(err)
	}

	result, err := ex.Dispatch(context.Background(), PreLLMRequest, 1, nil, []byte(`{"original":true}`))
	if err != nil {
		t.Fatal(err)
	}
	if result.FinalPayload == nil {
		t.Fatal("expected final_payload.json to be read back")
	}
	var out map[string]bool
	if err := json.Unmarshal(result.FinalPayload, &out); err != nil {
		t.Fatal(err)
	}
	if !out["replaced"] {
		t.Errorf("unexpected final payload: %s", result.FinalPayload)
	}
}

func TestDispatch_NonZeroExitIsNonFatal(t *testing.T) {
	workspace := t.TempDir()
	ioHooks := filepath.Join(workspace, "io", "hooks")
	hooksCfg := config.HooksConfig{
		"on_error": config.HookDef{Command: []string{"sh", "-c", "exit 7"}},
	}
	ex, err := NewExecutor(hooksCfg, "run1", workspace, ioHooks)
	if err != nil {
		t.Fatal(err)
	}
	result, err := ex.Dispatch(context.Background(), OnError, 1, ErrorPayload{ErrorMessage: "boom"}, nil)
	if err != nil {
		t.Fatalf("hook failure must not be a Dispatch error: %v", err)
	}
	if result.Status != StatusFailed {
		t.Errorf("expected FAILED status, got %s", result.Status)
	}
}
