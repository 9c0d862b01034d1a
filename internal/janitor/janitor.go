// Package janitor reclaims orphaned RUNNING runs on resume and lists runs
// for the list-runs CLI surface. A run directory records its owning
// process's identity at startup; the janitor audits that OS-level state
// (PID liveness, comm-name match, hostname) to enforce that at most one
// live process holds a RUNNING run at a time.
package janitor

import (
	"fmt"

	"github.com/deltaengine/delta/internal/journal"
	"github.com/deltaengine/delta/internal/rundir"
)

// Reclaim inspects a run whose metadata.json currently says RUNNING and,
// if the recorded process is no longer alive (or the PID was reused by an
// unrelated process), transitions it to INTERRUPTED so `continue` can
// proceed. If the original process is still legitimately running, it
// returns rundir.ErrRunStillActive (or rundir.ErrCrossHostRunning) and
// does not mutate metadata.
func Reclaim(runDir string, force bool) (*journal.Metadata, error) {
	meta, err := journal.ReadMetadata(runDir)
	if err != nil {
		return nil, err
	}
	if meta.Status != journal.StatusRunning {
		return meta, nil
	}

	newStatus, err := rundir.CheckResumable(meta, force)
	if err != nil {
		return nil, err
	}

	return journal.UpdateMetadata(runDir, func(m *journal.Metadata) {
		m.Status = newStatus
	})
}

// RunSummary is one entry returned by List.
type RunSummary struct {
	RunID    string
	Metadata journal.Metadata
}

// Filter narrows List's results.
type Filter struct {
	Resumable bool   // status in {INTERRUPTED, WAITING_FOR_INPUT, FAILED, COMPLETED}
	Status    string // exact status match, empty = no filter
	First     bool   // return only the most recent entry
}

func isResumable(s journal.Status) bool {
	switch s {
	case journal.StatusInterrupted, journal.StatusWaitingForInput, journal.StatusFailed, journal.StatusCompleted:
		return true
	default:
		return false
	}
}

// List scans workspace's .delta/ for run directories, reads each
// metadata.json, and returns summaries ordered most-recent-UpdatedAt
// first, after applying filter.
func List(workspace string, filter Filter) ([]RunSummary, error) {
	entries, err := listRunDirs(workspace)
	if err != nil {
		return nil, err
	}

	var out []RunSummary
	for _, runID := range entries {
		meta, err := journal.ReadMetadata(rundir.RunDir(workspace, runID))
		if err != nil {
			return nil, fmt.Errorf("read metadata for run %s: %w", runID, err)
		}
		if filter.Resumable && !isResumable(meta.Status) {
			continue
		}
		if filter.Status != "" && string(meta.Status) != filter.Status {
			continue
		}
		out = append(out, RunSummary{RunID: runID, Metadata: *meta})
	}

	sortByUpdatedAtDesc(out)

	if filter.First && len(out) > 1 {
		out = out[:1]
	}
	return out, nil
}

func sortByUpdatedAtDesc(runs []RunSummary) {
	for i := 1; i < len(runs); i++ {
		for j := i; j > 0 && runs[j].Metadata.UpdatedAt.After(runs[j-1].Metadata.UpdatedAt); j-- {
			runs[j], runs[j-1] = runs[j-1], runs[j]
		}
	}
}
