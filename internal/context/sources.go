package context

import (
	stdcontext "context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/deltaengine/delta/internal/config"
)

// Env is the fixed set of interpolation/environment values every file and
// computed_file source may reference or receive.
type Env struct {
	AgentHome   string
	Workspace   string
	RunID       string
	JournalPath string
}

func interpolate(path string, env Env) string {
	r := strings.NewReplacer("${AGENT_HOME}", env.AgentHome, "${CWD}", env.Workspace)
	return r.Replace(path)
}

// blockHeader formats the "# Context Block: <id|type>" header every file
// and computed_file source is wrapped with (spec §4.E).
func blockHeader(id, kind string) string {
	label := id
	if label == "" {
		label = kind
	}
	return fmt.Sprintf("# Context Block: %s\n", label)
}

func buildFileSource(src config.FileSource, env Env) (*Message, bool, error) {
	path := interpolate(src.Path, env)
	if !filepath.IsAbs(path) {
		path = filepath.Join(env.Workspace, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			if src.OnMissing == config.OnMissingSkip {
				return nil, false, nil
			}
			return nil, false, fmt.Errorf("%w: %s", ErrSourceFileMissing, path)
		}
		return nil, false, fmt.Errorf("read context file %s: %w", path, err)
	}

	content := blockHeader(src.ID, config.SourceKindFile) + string(data)
	return &Message{Role: RoleSystem, Content: content}, true, nil
}

func buildComputedFileSource(ctx stdcontext.Context, src config.ComputedFileSource, env Env) (*Message, bool, error) {
	outputPath := interpolate(src.OutputPath, env)
	if !filepath.IsAbs(outputPath) {
		outputPath = filepath.Join(env.Workspace, outputPath)
	}
	// Engine ensures the parent directory exists before spawning the
	// generator (spec §9's "safer option"), rather than leaving directory
	// creation up to the generator command.
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return nil, false, fmt.Errorf("create parent dir for %s: %w", outputPath, err)
	}

	timeout := 30 * time.Second
	if src.Generator.TimeoutMs > 0 {
		timeout = time.Duration(src.Generator.TimeoutMs) * time.Millisecond
	}
	runCtx, cancel := stdcontext.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, src.Generator.Command[0], src.Generator.Command[1:]...)
	cmd.Dir = env.Workspace
	cmd.Env = append(os.Environ(),
		"DELTA_RUN_ID="+env.RunID,
		"DELTA_AGENT_HOME="+env.AgentHome,
		"DELTA_CWD="+env.Workspace,
		"JOURNAL_PATH="+env.JournalPath,
	)

	runErr := cmd.Run()
	if runErr != nil {
		if src.OnMissing == config.OnMissingSkip {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("%w: generator for %s failed: %v", ErrSourceFileMissing, outputPath, runErr)
	}

	data, err := os.ReadFile(outputPath)
	if err != nil {
		if os.IsNotExist(err) && src.OnMissing == config.OnMissingSkip {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("%w: %s", ErrSourceFileMissing, outputPath)
	}

	content := blockHeader(src.ID, config.SourceKindComputedFile) + string(data)
	return &Message{Role: RoleSystem, Content: content}, true, nil
}
