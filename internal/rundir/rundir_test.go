package rundir

import (
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"testing"
	"time"
)

func TestNewRunIDFormat(t *testing.T) {
	now := time.Date(2026, 8, 2, 10, 15, 0, 0, time.UTC)
	id, err := NewRunID(now)
	if err != nil {
		t.Fatal(err)
	}
	pattern := regexp.MustCompile(`^20260802_101500_[0-9a-f]{6}$`)
	if !pattern.MatchString(id) {
		t.Errorf("run ID %q does not match YYYYMMDD_HHMMSS_<6 hex>", id)
	}

	other, err := NewRunID(now)
	if err != nil {
		t.Fatal(err)
	}
	if other == id {
		t.Error("two synthesized IDs at the same second should differ in suffix")
	}
}

func TestAcquireIsExclusive(t *testing.T) {
	workspace := t.TempDir()

	runDir, err := Acquire(workspace, "r1")
	if err != nil {
		t.Fatal(err)
	}
	for _, sub := range []string{
		IOInvocationsDir(runDir),
		IOToolExecutionsDir(runDir),
		IOHooksDir(runDir),
	} {
		if fi, err := os.Stat(sub); err != nil || !fi.IsDir() {
			t.Errorf("missing io subdir %s", sub)
		}
	}

	if _, err := Acquire(workspace, "r1"); !errors.Is(err, ErrRunIDConflict) {
		t.Fatalf("second acquire: err = %v, want run-id-conflict", err)
	}
}

func TestAcquireWritesVersionOnce(t *testing.T) {
	workspace := t.TempDir()
	if _, err := Acquire(workspace, "r1"); err != nil {
		t.Fatal(err)
	}

	versionPath := filepath.Join(ControlPlaneDir(workspace), "VERSION")
	data, err := os.ReadFile(versionPath)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != ControlPlaneVersion+"\n" {
		t.Errorf("VERSION = %q", data)
	}

	// A second run must not rewrite it.
	if err := os.WriteFile(versionPath, []byte("sentinel"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Acquire(workspace, "r2"); err != nil {
		t.Fatal(err)
	}
	data, _ = os.ReadFile(versionPath)
	if string(data) != "sentinel" {
		t.Error("existing VERSION file was rewritten")
	}
}

func TestOpenMissingRun(t *testing.T) {
	if _, err := Open(t.TempDir(), "nope"); err == nil {
		t.Fatal("expected error for missing run")
	}
}
