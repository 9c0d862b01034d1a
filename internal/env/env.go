// Package env applies the layered .env loading of spec §6.4: workspace
// .env beats agent .env beats project-root .env beats the inherited
// process environment. The project root is found by walking upward from
// the agent root to the nearest directory containing .git.
package env

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

// Load layers .env files into the process environment. Files are applied
// lowest-priority first with override semantics, so a later (higher
// priority) file wins over both earlier files and inherited env vars.
// Missing files are skipped silently; unreadable ones are errors.
func Load(workspace, agentRoot string) error {
	var layers []string
	if root := projectRoot(agentRoot); root != "" {
		layers = append(layers, filepath.Join(root, ".env"))
	}
	layers = append(layers, filepath.Join(agentRoot, ".env"))
	if workspace != "" {
		layers = append(layers, filepath.Join(workspace, ".env"))
	}

	for _, path := range layers {
		if _, err := os.Stat(path); err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return fmt.Errorf("stat %s: %w", path, err)
		}
		if err := godotenv.Overload(path); err != nil {
			return fmt.Errorf("load %s: %w", path, err)
		}
	}
	return nil
}

// projectRoot walks upward from start to the nearest directory containing
// .git, returning "" when none is found before the filesystem root.
func projectRoot(start string) string {
	dir, err := filepath.Abs(start)
	if err != nil {
		return ""
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, ".git")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// APIKey resolves the adapter-facing API key: DELTA_API_KEY first, then
// the legacy provider names.
func APIKey() string {
	for _, name := range []string{"DELTA_API_KEY", "OPENAI_API_KEY", "ANTHROPIC_API_KEY"} {
		if v := os.Getenv(name); v != "" {
			return v
		}
	}
	return ""
}

// BaseURL resolves the adapter-facing endpoint override, canonical name
// first.
func BaseURL() string {
	for _, name := range []string{"DELTA_BASE_URL", "OPENAI_BASE_URL", "OPENAI_API_BASE"} {
		if v := os.Getenv(name); v != "" {
			return v
		}
	}
	return ""
}
