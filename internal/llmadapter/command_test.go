package llmadapter

import (
	"context"
	"strings"
	"testing"
)

func TestCommandAdapterRoundTrip(t *testing.T) {
	adapter := &CommandAdapter{
		Argv: []string{"sh", "-c", `cat > /dev/null; printf '{"content":"hi","finish_reason":"stop","usage":{"input_tokens":3,"output_tokens":5}}'`},
	}

	resp, err := adapter.Complete(context.Background(), Request{Model: "test-model"})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Content != "hi" || resp.FinishReason != "stop" {
		t.Errorf("resp = %+v", resp)
	}
	if resp.Usage.InputTokens != 3 || resp.Usage.OutputTokens != 5 {
		t.Errorf("usage = %+v", resp.Usage)
	}
}

func TestCommandAdapterFailureSurfacesStderr(t *testing.T) {
	adapter := &CommandAdapter{
		Argv: []string{"sh", "-c", `echo "quota exhausted" >&2; exit 1`},
	}

	_, err := adapter.Complete(context.Background(), Request{})
	if err == nil || !strings.Contains(err.Error(), "quota exhausted") {
		t.Fatalf("err = %v, want stderr text surfaced", err)
	}
}

func TestCommandAdapterRejectsBadJSON(t *testing.T) {
	adapter := &CommandAdapter{
		Argv: []string{"sh", "-c", `cat > /dev/null; echo not-json`},
	}

	if _, err := adapter.Complete(context.Background(), Request{}); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestFromEnv(t *testing.T) {
	t.Setenv(AdapterEnvVar, "")
	if _, err := FromEnv(); err == nil {
		t.Error("unset adapter should error")
	}

	t.Setenv(AdapterEnvVar, "adapter; rm -rf /")
	if _, err := FromEnv(); err == nil {
		t.Error("unsafe executable should be rejected")
	}

	t.Setenv(AdapterEnvVar, "my-adapter --flag")
	a, err := FromEnv()
	if err != nil {
		t.Fatal(err)
	}
	if len(a.Argv) != 2 || a.Argv[0] != "my-adapter" {
		t.Errorf("argv = %v", a.Argv)
	}
}
