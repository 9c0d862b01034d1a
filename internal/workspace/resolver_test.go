package workspace

import (
	"os"
	"path/filepath"
	"testing"
)

func TestResolve_Explicit(t *testing.T) {
	root := t.TempDir()
	path, err := Resolve(root, "custom-ws", false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if filepath.Base(path) != "custom-ws" {
		t.Errorf("expected custom-ws, got %s", path)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("expected directory to exist: %v", err)
	}
}

func TestResolve_CreatesFirstWorkspace(t *testing.T) {
	root := t.TempDir()
	path, err := Resolve(root, "", false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if filepath.Base(path) != "W001" {
		t.Errorf("expected W001, got %s", filepath.Base(path))
	}
}

func TestResolve_IncrementsPastHighest(t *testing.T) {
	root := t.TempDir()
	wsRoot := filepath.Join(root, "workspaces")
	if err := os.MkdirAll(filepath.Join(wsRoot, "W001"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Join(wsRoot, "W014"), 0o755); err != nil {
		t.Fatal(err)
	}
	path, err := Resolve(root, "", false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if filepath.Base(path) != "W015" {
		t.Errorf("expected W015, got %s", filepath.Base(path))
	}
}

func TestResolve_ReuseLatest(t *testing.T) {
	root := t.TempDir()
	wsRoot := filepath.Join(root, "workspaces")
	if err := os.MkdirAll(filepath.Join(wsRoot, "W003"), 0o755); err != nil {
		t.Fatal(err)
	}
	path, err := Resolve(root, "", true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if filepath.Base(path) != "W003" {
		t.Errorf("expected W003, got %s", filepath.Base(path))
	}
}

func TestResolve_RemovesLegacyPointer(t *testing.T) {
	root := t.TempDir()
	wsRoot := filepath.Join(root, "workspaces")
	if err := os.MkdirAll(wsRoot, 0o755); err != nil {
		t.Fatal(err)
	}
	pointer := filepath.Join(wsRoot, "LAST_USED")
	if err := os.WriteFile(pointer, []byte("W001"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Resolve(root, "", false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := os.Stat(pointer); !os.IsNotExist(err) {
		t.Errorf("expected LAST_USED to be removed, got err=%v", err)
	}
}

func TestResolve_PadsWideNumbers(t *testing.T) {
	root := t.TempDir()
	wsRoot := filepath.Join(root, "workspaces")
	if err := os.MkdirAll(filepath.Join(wsRoot, "W0999"), 0o755); err != nil {
		t.Fatal(err)
	}
	path, err := Resolve(root, "", false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if filepath.Base(path) != "W1000" {
		t.Errorf("expected W1000, got %s", filepath.Base(path))
	}
}
