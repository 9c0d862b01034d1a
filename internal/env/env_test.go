package env

import (
	"os"
	"path/filepath"
	"testing"
)

func writeEnvFile(t *testing.T, dir, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadLayering(t *testing.T) {
	root := t.TempDir()
	if err := os.Mkdir(filepath.Join(root, ".git"), 0o755); err != nil {
		t.Fatal(err)
	}
	agent := filepath.Join(root, "agents", "demo")
	workspace := filepath.Join(agent, "workspaces", "W001")
	for _, d := range []string{agent, workspace} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			t.Fatal(err)
		}
	}

	writeEnvFile(t, root, "DELTA_TEST_A=root\nDELTA_TEST_B=root\nDELTA_TEST_C=root\n")
	writeEnvFile(t, agent, "DELTA_TEST_B=agent\nDELTA_TEST_C=agent\n")
	writeEnvFile(t, workspace, "DELTA_TEST_C=workspace\n")

	for _, k := range []string{"DELTA_TEST_A", "DELTA_TEST_B", "DELTA_TEST_C", "DELTA_TEST_D"} {
		t.Setenv(k, "process")
	}

	if err := Load(workspace, agent); err != nil {
		t.Fatal(err)
	}

	tests := map[string]string{
		"DELTA_TEST_A": "root",      // root .env beats process env
		"DELTA_TEST_B": "agent",     // agent .env beats root
		"DELTA_TEST_C": "workspace", // workspace .env beats everything
		"DELTA_TEST_D": "process",   // untouched
	}
	for k, want := range tests {
		if got := os.Getenv(k); got != want {
			t.Errorf("%s = %q, want %q", k, got, want)
		}
	}
}

func TestLoadNoFiles(t *testing.T) {
	if err := Load(t.TempDir(), t.TempDir()); err != nil {
		t.Fatalf("missing .env files should not error: %v", err)
	}
}

func TestAPIKeyPriority(t *testing.T) {
	t.Setenv("DELTA_API_KEY", "canonical")
	t.Setenv("OPENAI_API_KEY", "legacy")
	if got := APIKey(); got != "canonical" {
		t.Errorf("APIKey() = %q, want canonical name to win", got)
	}

	t.Setenv("DELTA_API_KEY", "")
	if got := APIKey(); got != "legacy" {
		t.Errorf("APIKey() = %q, want legacy fallback", got)
	}
}
