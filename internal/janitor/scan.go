package janitor

import (
	"os"

	"github.com/deltaengine/delta/internal/rundir"
)

// listRunDirs returns the run IDs present under workspace/.delta/,
// skipping non-directory entries like VERSION.
func listRunDirs(workspace string) ([]string, error) {
	root := rundir.ControlPlaneDir(workspace)
	entries, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var ids []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		ids = append(ids, e.Name())
	}
	return ids, nil
}
