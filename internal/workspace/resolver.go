// Package workspace resolves and creates the Wnnn workspace directories an
// agent project runs inside.
package workspace

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
)

// ErrNotWritable is returned when a workspace directory cannot be created.
var ErrNotWritable = errors.New("workspace-not-writable")

// namePattern matches workspace directory names: W followed by 3 or more digits.
var namePattern = regexp.MustCompile(`^W(\d{3,})$`)

// minDigits is the minimum zero-padding width for a synthesized workspace name.
const minDigits = 3

// lastUsedFile is the legacy pointer file maintained inside workspaces/.
// The current resolver never writes it; removeLegacyPointer cleans it up if
// found.
const lastUsedFile = "LAST_USED"

// Resolve returns the workspace directory to use for a run.
//
// If explicit is non-empty, it is used verbatim (created if missing).
// Otherwise the workspaces/ directory under agentRoot is scanned for
// existing Wnnn directories; the highest-numbered one is reused when
// reuseLatest is true, or a new one is created one past the highest
// existing number (padded to at least three digits).
func Resolve(agentRoot, explicit string, reuseLatest bool) (string, error) {
	if explicit != "" {
		path := explicit
		if !filepath.IsAbs(path) {
			path = filepath.Join(agentRoot, path)
		}
		if err := ensureDir(path); err != nil {
			return "", err
		}
		return path, nil
	}

	root := filepath.Join(agentRoot, "workspaces")
	if err := ensureDir(root); err != nil {
		return "", err
	}

	highest, highestName, err := highestWorkspace(root)
	if err != nil {
		return "", err
	}

	if reuseLatest && highestName != "" {
		path := filepath.Join(root, highestName)
		return path, removeLegacyPointer(root)
	}

	next := highest + 1
	name := fmt.Sprintf("W%0*d", minDigits, next)
	path := filepath.Join(root, name)
	if err := ensureDir(path); err != nil {
		return "", err
	}
	return path, removeLegacyPointer(root)
}

// highestWorkspace scans root for Wnnn directories and returns the highest
// numeric suffix found (0 if none exist) along with that directory's name.
func highestWorkspace(root string) (int, string, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, "", nil
		}
		return 0, "", fmt.Errorf("%w: %v", ErrNotWritable, err)
	}

	type candidate struct {
		n    int
		name string
	}
	var candidates []candidate
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		m := namePattern.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		candidates = append(candidates, candidate{n: n, name: e.Name()})
	}
	if len(candidates) == 0 {
		return 0, "", nil
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].n < candidates[j].n })
	best := candidates[len(candidates)-1]
	return best.n, best.name, nil
}

// removeLegacyPointer deletes the legacy LAST_USED file if present. The
// current revision never writes one and does not reintroduce a shared
// mutable pointer.
func removeLegacyPointer(root string) error {
	path := filepath.Join(root, lastUsedFile)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove legacy pointer: %w", err)
	}
	return nil
}

func ensureDir(path string) error {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return fmt.Errorf("%w: %v", ErrNotWritable, err)
	}
	return nil
}
