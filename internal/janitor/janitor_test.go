package janitor

import (
	"errors"
	"os"
	"os/exec"
	"strings"
	"testing"
	"time"

	"github.com/deltaengine/delta/internal/journal"
	"github.com/deltaengine/delta/internal/rundir"
)

// deadPID returns a PID that existed and is now gone.
func deadPID(t *testing.T) int {
	t.Helper()
	cmd := exec.Command("true")
	if err := cmd.Run(); err != nil {
		t.Fatal(err)
	}
	return cmd.Process.Pid
}

func makeRun(t *testing.T, workspace, runID string, mutate func(*journal.Metadata)) string {
	t.Helper()
	runDir, err := rundir.Acquire(workspace, runID)
	if err != nil {
		t.Fatal(err)
	}
	hostname, err := os.Hostname()
	if err != nil {
		t.Fatal(err)
	}
	meta := journal.Metadata{
		RunID:       runID,
		Status:      journal.StatusRunning,
		Hostname:    hostname,
		ProcessName: "delta",
	}
	if mutate != nil {
		mutate(&meta)
	}
	if err := journal.CreateInitial(runDir, meta); err != nil {
		t.Fatal(err)
	}
	return runDir
}

func TestReclaimDeadProcess(t *testing.T) {
	workspace := t.TempDir()
	dead := deadPID(t)
	runDir := makeRun(t, workspace, "r1", func(m *journal.Metadata) { m.Pid = dead })

	meta, err := Reclaim(runDir, false)
	if err != nil {
		t.Fatalf("Reclaim: %v", err)
	}
	if meta.Status != journal.StatusInterrupted {
		t.Errorf("status = %s, want INTERRUPTED", meta.Status)
	}

	onDisk, err := journal.ReadMetadata(runDir)
	if err != nil {
		t.Fatal(err)
	}
	if onDisk.Status != journal.StatusInterrupted {
		t.Error("reclaim must persist the transition")
	}
}

func TestReclaimCrossHostWithoutForce(t *testing.T) {
	workspace := t.TempDir()
	runDir := makeRun(t, workspace, "r1", func(m *journal.Metadata) {
		m.Hostname = "some-other-host"
		m.Pid = deadPID(t)
	})

	_, err := Reclaim(runDir, false)
	if !errors.Is(err, rundir.ErrCrossHostRunning) {
		t.Fatalf("err = %v, want cross-host-running", err)
	}

	// --force overrides the host check; the dead PID then reclaims.
	meta, err := Reclaim(runDir, true)
	if err != nil {
		t.Fatalf("Reclaim --force: %v", err)
	}
	if meta.Status != journal.StatusInterrupted {
		t.Errorf("status = %s, want INTERRUPTED", meta.Status)
	}
}

func TestReclaimLiveProcess(t *testing.T) {
	workspace := t.TempDir()

	comm, err := os.ReadFile("/proc/self/comm")
	name := "delta"
	if err == nil {
		name = strings.TrimSpace(string(comm))
	}

	runDir := makeRun(t, workspace, "r1", func(m *journal.Metadata) {
		m.Pid = os.Getpid()
		m.ProcessName = name
	})

	_, err = Reclaim(runDir, false)
	if !errors.Is(err, rundir.ErrRunStillActive) {
		t.Fatalf("err = %v, want run-still-active", err)
	}

	onDisk, _ := journal.ReadMetadata(runDir)
	if onDisk.Status != journal.StatusRunning {
		t.Error("a live run's metadata must not be mutated")
	}
}

func TestReclaimIgnoresNonRunning(t *testing.T) {
	workspace := t.TempDir()
	runDir := makeRun(t, workspace, "r1", func(m *journal.Metadata) {
		m.Status = journal.StatusCompleted
	})

	meta, err := Reclaim(runDir, false)
	if err != nil {
		t.Fatal(err)
	}
	if meta.Status != journal.StatusCompleted {
		t.Errorf("status = %s, want untouched COMPLETED", meta.Status)
	}
}

func TestListFiltersAndOrder(t *testing.T) {
	workspace := t.TempDir()

	makeRun(t, workspace, "older", func(m *journal.Metadata) {
		m.Status = journal.StatusCompleted
	})
	time.Sleep(10 * time.Millisecond)
	makeRun(t, workspace, "newer", func(m *journal.Metadata) {
		m.Status = journal.StatusWaitingForInput
	})
	time.Sleep(10 * time.Millisecond)
	makeRun(t, workspace, "active", nil) // RUNNING

	all, err := List(workspace, Filter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 {
		t.Fatalf("got %d runs, want 3", len(all))
	}
	if all[0].RunID != "active" || all[2].RunID != "older" {
		t.Errorf("runs not ordered most-recent first: %s, %s, %s", all[0].RunID, all[1].RunID, all[2].RunID)
	}

	resumable, err := List(workspace, Filter{Resumable: true})
	if err != nil {
		t.Fatal(err)
	}
	for _, r := range resumable {
		if r.RunID == "active" {
			t.Error("RUNNING run should not be listed as resumable")
		}
	}
	if len(resumable) != 2 {
		t.Errorf("got %d resumable runs, want 2", len(resumable))
	}

	waiting, err := List(workspace, Filter{Status: "WAITING_FOR_INPUT"})
	if err != nil {
		t.Fatal(err)
	}
	if len(waiting) != 1 || waiting[0].RunID != "newer" {
		t.Errorf("status filter: %+v", waiting)
	}

	first, err := List(workspace, Filter{First: true})
	if err != nil {
		t.Fatal(err)
	}
	if len(first) != 1 || first[0].RunID != "active" {
		t.Errorf("first filter: %+v", first)
	}
}
