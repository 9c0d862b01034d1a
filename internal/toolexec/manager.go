// Package toolexec spawns the child process for one expanded tool call:
// it materializes the argv from the tool's template, runs the command
// with captured (and capped) stdout/stderr, writes the per-execution
// audit files, and returns the observation the engine journals. A
// non-zero exit is an observation for the LLM, not an error.
package toolexec

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	safeexec "github.com/deltaengine/delta/internal/exec"
	"github.com/deltaengine/delta/internal/toolspec"
)

// Sentinel errors for tool execution failure modes (spec §3.2, §4.G).
var (
	ErrMissingParameter = errors.New("missing-parameter")
)

// TruncationCap is the observation-size cap recommended by spec §9
// ("implementation-chosen, recommended >= 5 KiB"). Chosen as exactly
// 5 KiB.
const TruncationCap = 5 * 1024

// Options configures one Execute call.
type Options struct {
	WorkDir string
	Env     map[string]string
	// IODir is io/tool_executions/<execution_ref>/, created by the caller.
	IODir string
}

// Observation is the result of running one expanded tool call, ready to
// be recorded as an ACTION_RESULT event.
type Observation struct {
	Content  string
	ExitCode int
	Status   string // SUCCESS | FAILED, mirrors journal.ActionStatus
	Duration time.Duration
}

// Execute materializes the argv from spec and args, spawns the child
// process, captures stdout/stderr/exit code, writes the audit files under
// opts.IODir, and returns the observation for the engine to journal.
// A non-zero exit is reported as Status=FAILED, not as a Go error. An error
// is returned when the argv cannot be built (e.g. a missing required
// parameter), when argv[0] is unsafe, when the process cannot be spawned
// (executable not found, etc.), or when the audit files cannot be written.
func Execute(ctx context.Context, spec *toolspec.ToolSpec, args map[string]string, opts Options) (*Observation, error) {
	argv, stdinValue, err := BuildArgv(spec, args)
	if err != nil {
		return nil, err
	}
	if len(argv) == 0 {
		return nil, fmt.Errorf("tool %q expanded to an empty argv", spec.Name)
	}
	if !safeexec.IsSafeExecutableValue(argv[0]) {
		return nil, fmt.Errorf("tool %q resolves to unsafe executable %q", spec.Name, argv[0])
	}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	if opts.WorkDir != "" {
		cmd.Dir = opts.WorkDir
	}
	if len(opts.Env) > 0 {
		env := os.Environ()
		for k, v := range opts.Env {
			env = append(env, k+"="+v)
		}
		cmd.Env = env
	}

	stdout := newLimitedBuffer(64 * 1024)
	stderr := newLimitedBuffer(64 * 1024)
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	if stdinValue != "" {
		cmd.Stdin = strings.NewReader(stdinValue)
	}

	start := time.Now()
	runErr := cmd.Run()
	duration := time.Since(start)

	var spawnErr *exec.Error
	if errors.As(runErr, &spawnErr) {
		return nil, fmt.Errorf("spawn tool %q: %w", spec.Name, spawnErr)
	}

	exit := exitCode(runErr)
	status := "SUCCESS"
	if exit != 0 {
		status = "FAILED"
	}

	if opts.IODir != "" {
		if err := writeAuditFiles(opts.IODir, argv, stdout.String(), stderr.String(), exit, duration); err != nil {
			return nil, err
		}
	}

	content := formatObservation(exit, stdout.String(), stderr.String())

	return &Observation{
		Content:  content,
		ExitCode: exit,
		Status:   status,
		Duration: duration,
	}, nil
}

// BuildArgv substitutes parameter values into spec's argv_template,
// skipping placeholders for the stdin parameter (its value is piped, not
// argv'd) and expanding option-mode parameters into "<option_name> value".
// The engine also calls it to record the resolved command on the
// ACTION_REQUEST event before execution.
func BuildArgv(spec *toolspec.ToolSpec, args map[string]string) (argv []string, stdinValue string, err error) {
	byName := make(map[string]toolspec.Parameter, len(spec.Parameters))
	for _, p := range spec.Parameters {
		byName[p.Name] = p
	}

	resolve := func(name string) (string, error) {
		p, ok := byName[name]
		if !ok {
			return "", fmt.Errorf("tool %q: unknown parameter %q", spec.Name, name)
		}
		v, given := args[name]
		if !given || v == "" {
			if p.Default != "" {
				return p.Default, nil
			}
			if p.Required {
				return "", fmt.Errorf("%w: tool %q parameter %q", ErrMissingParameter, spec.Name, name)
			}
			return "", nil
		}
		return v, nil
	}

	if spec.StdinParam != "" {
		v, err := resolve(spec.StdinParam)
		if err != nil {
			return nil, "", err
		}
		stdinValue = v
	}

	for _, el := range spec.ArgvTemplate {
		if !el.Placeholder {
			argv = append(argv, el.Literal)
			continue
		}
		if el.ParamName == spec.StdinParam {
			continue
		}
		p, ok := byName[el.ParamName]
		if !ok {
			return nil, "", fmt.Errorf("tool %q: unknown parameter %q", spec.Name, el.ParamName)
		}
		v, err := resolve(el.ParamName)
		if err != nil {
			return nil, "", err
		}
		if p.InjectAs == toolspec.InjectOption {
			argv = append(argv, p.OptionName, v)
			continue
		}
		argv = append(argv, v)
	}
	return argv, stdinValue, nil
}

func formatObservation(exit int, stdout, stderr string) string {
	var b strings.Builder
	b.WriteString(stdout)
	truncated := false
	if b.Len() > TruncationCap {
		truncated = true
	}
	content := b.String()
	if truncated {
		content = content[:TruncationCap] + "\n[Output truncated]"
	}
	if stderr != "" {
		content += "\n--- stderr ---\n" + stderr
	}
	content += fmt.Sprintf("\n=== EXIT CODE: %d ===", exit)
	return content
}

func writeAuditFiles(ioDir string, argv []string, stdout, stderr string, exit int, duration time.Duration) error {
	if err := os.MkdirAll(ioDir, 0o755); err != nil {
		return fmt.Errorf("create tool execution io dir %s: %w", ioDir, err)
	}
	writes := map[string]string{
		"command.txt":     strings.Join(argv, " ") + "\n",
		"stdout.log":      stdout,
		"stderr.log":      stderr,
		"exit_code.txt":   strconv.Itoa(exit) + "\n",
		"duration_ms.txt": strconv.FormatInt(duration.Milliseconds(), 10) + "\n",
	}
	for name, content := range writes {
		if err := os.WriteFile(filepath.Join(ioDir, name), []byte(content), 0o644); err != nil {
			return fmt.Errorf("write %s: %w", name, err)
		}
	}
	return nil
}

func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}

type limitedBuffer struct {
	mu  sync.Mutex
	buf []byte
	max int
}

func newLimitedBuffer(max int) *limitedBuffer {
	return &limitedBuffer{max: max}
}

func (b *limitedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.max > 0 && len(b.buf) >= b.max {
		return len(p), nil
	}
	remaining := b.max - len(b.buf)
	if b.max > 0 && len(p) > remaining {
		b.buf = append(b.buf, p[:remaining]...)
		return len(p), nil
	}
	b.buf = append(b.buf, p...)
	return len(p), nil
}

func (b *limitedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return string(b.buf)
}

var _ io.Writer = (*limitedBuffer)(nil)
