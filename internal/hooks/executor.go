package hooks

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/deltaengine/delta/internal/config"
)

// DefaultTimeout is used when a HookDef does not specify timeout_ms.
const DefaultTimeout = 30 * time.Second

// Executor dispatches configured hooks through the file-based IPC
// protocol of spec §4.F: materialize input/, spawn, capture
// execution_meta/, read output/.
type Executor struct {
	Hooks      config.HooksConfig
	RunID      string
	Workspace  string
	IOHooksDir string

	mu  sync.Mutex
	seq int
}

// NewExecutor returns an Executor, recovering its next IO-directory
// sequence number from any NNN_* directories already present (so
// resumed runs keep numbering monotonic across process restarts).
func NewExecutor(hooksCfg config.HooksConfig, runID, workspace, ioHooksDir string) (*Executor, error) {
	next, err := nextSeqFromExisting(ioHooksDir)
	if err != nil {
		return nil, err
	}
	return &Executor{
		Hooks:      hooksCfg,
		RunID:      runID,
		Workspace:  workspace,
		IOHooksDir: ioHooksDir,
		seq:        next,
	}, nil
}

func nextSeqFromExisting(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 1, nil
		}
		return 0, fmt.Errorf("scan hook io dir %s: %w", dir, err)
	}
	max := 0
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		parts := strings.SplitN(e.Name(), "_", 2)
		if len(parts) != 2 {
			continue
		}
		n, err := strconv.Atoi(parts[0])
		if err != nil {
			continue
		}
		if n > max {
			max = n
		}
	}
	return max + 1, nil
}

// Dispatch runs the configured hook for point (a no-op, returning a nil
// Result, if no hook is configured for it). proposedPayload is only used
// for PreLLMRequest, where it becomes input/proposed_payload.json.
func (e *Executor) Dispatch(ctx context.Context, point Point, iteration int, payload any, proposedPayload []byte) (*Result, error) {
	hookName := string(point)
	def, ok := e.Hooks[hookName]
	if !ok {
		return nil, nil
	}

	ioDir, ref, err := e.allocateIODir(hookName)
	if err != nil {
		return nil, err
	}
	inputDir := filepath.Join(ioDir, "input")
	outputDir := filepath.Join(ioDir, "output")
	metaDir := filepath.Join(ioDir, "execution_meta")
	for _, d := range []string{inputDir, outputDir, metaDir} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return nil, fmt.Errorf("create hook io dir %s: %w", d, err)
		}
	}

	if point == PreLLMRequest && proposedPayload != nil {
		if err := os.WriteFile(filepath.Join(inputDir, "proposed_payload.json"), proposedPayload, 0o644); err != nil {
			return nil, fmt.Errorf("write proposed_payload.json: %w", err)
		}
	}

	envelope := Envelope{RunID: e.RunID, Iteration: iteration, Point: point, Payload: payload}
	envelopeJSON, err := json.MarshalIndent(envelope, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal hook context envelope: %w", err)
	}
	if err := os.WriteFile(filepath.Join(inputDir, "context.json"), envelopeJSON, 0o644); err != nil {
		return nil, fmt.Errorf("write context.json: %w", err)
	}

	timeout := DefaultTimeout
	if def.TimeoutMs > 0 {
		timeout = time.Duration(def.TimeoutMs) * time.Millisecond
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, def.Command[0], def.Command[1:]...)
	cmd.Dir = e.Workspace
	cmd.Env = append(os.Environ(),
		"DELTA_RUN_ID="+e.RunID,
		"DELTA_HOOK_IO_PATH="+ioDir,
		"ITERATION_COUNT="+strconv.Itoa(iteration),
	)
	cmd.Env = append(cmd.Env, hookSpecificEnv(payload)...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	runErr := cmd.Run()
	duration := time.Since(start)

	status := StatusSuccess
	exit := 0
	if runErr != nil {
		status = StatusFailed
		exit = exitCodeOf(runErr)
	}

	if err := writeExecutionMeta(metaDir, def.Command, stdout.String(), stderr.String(), exit, duration); err != nil {
		return nil, err
	}

	result := &Result{
		HookName:   hookName,
		Point:      point,
		IOPathRef:  ref,
		Status:     status,
		DurationMs: duration.Milliseconds(),
	}
	var exitErr *exec.ExitError
	if runErr != nil && !errors.As(runErr, &exitErr) {
		result.Err = runErr
	}

	if point == PreLLMRequest {
		finalPath := filepath.Join(outputDir, "final_payload.json")
		if data, err := os.ReadFile(finalPath); err == nil {
			result.FinalPayload = data
		}
	}

	// control.json carries advisory fields reserved for future use; it is
	// surfaced to the caller for logging only.
	if data, err := os.ReadFile(filepath.Join(outputDir, "control.json")); err == nil {
		result.Control = data
	}

	return result, nil
}

// hookSpecificEnv derives TOOL_NAME / TOOL_RESULT / ERROR_MESSAGE from
// whatever payload was supplied, per spec §4.F step 3.
func hookSpecificEnv(payload any) []string {
	var env []string
	switch p := payload.(type) {
	case ToolPayload:
		env = append(env, "TOOL_NAME="+p.ToolName)
		if p.Result != "" {
			env = append(env, "TOOL_RESULT="+p.Result)
		}
	case *ToolPayload:
		if p != nil {
			env = append(env, "TOOL_NAME="+p.ToolName)
			if p.Result != "" {
				env = append(env, "TOOL_RESULT="+p.Result)
			}
		}
	case ErrorPayload:
		env = append(env, "ERROR_MESSAGE="+p.ErrorMessage)
	case *ErrorPayload:
		if p != nil {
			env = append(env, "ERROR_MESSAGE="+p.ErrorMessage)
		}
	}
	return env
}

func (e *Executor) allocateIODir(hookName string) (dir string, ref string, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := e.seq
	e.seq++
	name := fmt.Sprintf("%03d_%s", n, hookName)
	return filepath.Join(e.IOHooksDir, name), name, nil
}

func writeExecutionMeta(metaDir string, command []string, stdout, stderr string, exitCode int, duration time.Duration) error {
	writes := map[string]string{
		"command.txt":     strings.Join(command, " ") + "\n",
		"stdout.log":      stdout,
		"stderr.log":      stderr,
		"exit_code.txt":   strconv.Itoa(exitCode) + "\n",
		"duration_ms.txt": strconv.FormatInt(duration.Milliseconds(), 10) + "\n",
	}
	names := make([]string, 0, len(writes))
	for name := range writes {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := os.WriteFile(filepath.Join(metaDir, name), []byte(writes[name]), 0o644); err != nil {
			return fmt.Errorf("write %s: %w", name, err)
		}
	}
	return nil
}

func exitCodeOf(err error) int {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}
