package rundir

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"

	"github.com/deltaengine/delta/internal/journal"
)

// Sentinel errors for the resume-time concurrency guard (spec §4.I).
var (
	ErrCrossHostRunning = errors.New("cross-host-running")
	ErrRunStillActive   = errors.New("run-still-active")
)

// Identity describes the current process for recording into metadata.json
// at run creation. The pid/hostname/process-name triple is what the
// janitor later probes to distinguish a live run from an orphan whose PID
// has died or been reused.
type Identity struct {
	Pid         int
	Hostname    string
	ProcessName string
	StartUnix   int64
}

// CurrentIdentity captures the running process's identity.
func CurrentIdentity(startUnix int64) (Identity, error) {
	hostname, err := os.Hostname()
	if err != nil {
		return Identity{}, fmt.Errorf("read hostname: %w", err)
	}
	return Identity{
		Pid:         os.Getpid(),
		Hostname:    hostname,
		ProcessName: processName(),
		StartUnix:   startUnix,
	}, nil
}

func processName() string {
	exe, err := os.Executable()
	if err != nil {
		return "delta"
	}
	base := exe
	if idx := strings.LastIndexByte(exe, '/'); idx >= 0 {
		base = exe[idx+1:]
	}
	return base
}

// CheckResumable implements the guard's four-step algorithm from spec
// §4.I for a run whose recorded status is RUNNING. It returns the status
// the metadata should transition to (an empty status together with
// ErrRunStillActive if the guard decides the original process is still
// legitimately active) and never mutates metadata itself.
func CheckResumable(meta *journal.Metadata, force bool) (journal.Status, error) {
	local, err := os.Hostname()
	if err != nil {
		return "", fmt.Errorf("read local hostname: %w", err)
	}
	if meta.Hostname != local && !force {
		return "", fmt.Errorf("%w: run recorded on %q, local host is %q", ErrCrossHostRunning, meta.Hostname, local)
	}

	if !pidAlive(meta.Pid) {
		return journal.StatusInterrupted, nil
	}

	if meta.Hostname == local {
		name, err := processNameForPid(meta.Pid)
		if err == nil && name != "" && !strings.HasPrefix(name, meta.ProcessName) {
			// PID reuse: a different process now holds this PID.
			return journal.StatusInterrupted, nil
		}
	}

	return "", fmt.Errorf("%w: run %s still active (pid %d on %s)", ErrRunStillActive, meta.RunID, meta.Pid, meta.Hostname)
}

// pidAlive probes a PID with the POSIX no-op signal.
func pidAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	err := syscall.Kill(pid, 0)
	if err == nil {
		return true
	}
	if errors.Is(err, syscall.ESRCH) {
		return false
	}
	// EPERM means the process exists but we can't signal it: still alive.
	return errors.Is(err, syscall.EPERM)
}

// processNameForPid reads the comm name of a process via /proc, when
// available. Returns "" (not an error) on platforms without /proc.
func processNameForPid(pid int) (string, error) {
	data, err := os.ReadFile("/proc/" + strconv.Itoa(pid) + "/comm")
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}
