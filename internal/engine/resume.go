package engine

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/deltaengine/delta/internal/janitor"
	"github.com/deltaengine/delta/internal/journal"
	"github.com/deltaengine/delta/internal/rundir"
)

// ErrMessageRequired is returned by PrepareResume when the run's entry
// status requires a -m message and none was supplied.
var ErrMessageRequired = errors.New("message-required")

// PrepareResume applies the status-dependent entry rules of `continue`
// (spec §4.H) before the loop re-enters:
//
//   - RUNNING: the janitor probes the recorded process; an orphan is
//     reclaimed to INTERRUPTED, a live one aborts the resume.
//   - WAITING_FOR_INPUT: the pending ask_human is answered from msg or an
//     already-written response.txt; both interaction files are deleted.
//   - INTERRUPTED: msg is optional and becomes an extra user turn.
//   - COMPLETED / FAILED: msg is required and becomes a new user turn.
//
// On success the run's metadata is back at RUNNING with the resuming
// process's identity recorded, and the engine is ready for Run.
func (e *Engine) PrepareResume(msg string, force bool, ident rundir.Identity) error {
	meta, err := journal.ReadMetadata(e.runDir)
	if err != nil {
		return err
	}

	if meta.Status == journal.StatusRunning {
		meta, err = janitor.Reclaim(e.runDir, force)
		if err != nil {
			return err
		}
	}

	switch meta.Status {
	case journal.StatusWaitingForInput:
		if err := e.resolvePendingInput(msg); err != nil {
			return err
		}

	case journal.StatusInterrupted:
		if msg != "" {
			e.extraUser = append(e.extraUser, msg)
		}

	case journal.StatusCompleted, journal.StatusFailed:
		if strings.TrimSpace(msg) == "" {
			return fmt.Errorf("%w: run %s is %s; continue requires -m", ErrMessageRequired, e.runID, meta.Status)
		}
		e.extraUser = append(e.extraUser, msg)

	default:
		return fmt.Errorf("run %s has unexpected status %s", e.runID, meta.Status)
	}

	_, err = journal.UpdateMetadata(e.runDir, func(m *journal.Metadata) {
		m.Status = journal.StatusRunning
		m.EndTime = nil
		m.Error = ""
		m.Pid = ident.Pid
		m.Hostname = ident.Hostname
		m.ProcessName = ident.ProcessName
		m.StartTimeUnix = ident.StartUnix
	})
	return err
}

// resolvePendingInput answers the pending ask_human: the answer comes from
// an already-written response.txt, or from msg (which is then persisted to
// response.txt first, keeping the on-disk protocol uniform). Both files
// are deleted once the answer is journaled.
func (e *Engine) resolvePendingInput(msg string) error {
	req, err := readInteractionRequest(e.runDir)
	if err != nil {
		return fmt.Errorf("run is WAITING_FOR_INPUT but interaction/request.json is unreadable: %w", err)
	}

	respPath := rundir.InteractionResponsePath(e.runDir)
	data, readErr := os.ReadFile(respPath)
	switch {
	case readErr == nil:
		// answer already on disk
	case os.IsNotExist(readErr):
		if strings.TrimSpace(msg) == "" {
			return fmt.Errorf("%w: run %s is waiting for input; supply -m or write %s", ErrMessageRequired, e.runID, respPath)
		}
		if err := os.WriteFile(respPath, []byte(msg), 0o644); err != nil {
			return fmt.Errorf("write response.txt: %w", err)
		}
		data = []byte(msg)
	default:
		return fmt.Errorf("read response.txt: %w", readErr)
	}

	answer := strings.TrimRight(string(data), "\r\n")
	e.recordHumanResponse(req.RequestID, answer)

	for _, p := range []string{respPath, rundir.InteractionRequestPath(e.runDir)} {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove %s: %w", p, err)
		}
	}
	return nil
}
