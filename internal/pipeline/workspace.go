package pipeline

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// Artifact names inside a task workspace
const (
	geoJSONName = "features.geojson"
	layerName   = "layer.sqlite"
)

// workspace is the scratch directory of exactly one task.
type workspace struct {
	dir string
}

// newWorkspace creates <root>/<taskID>. os.Mkdir fails if the directory
// already exists, so two executions can never share artifacts.
func newWorkspace(root string, taskID uuid.UUID) (*workspace, error) {
	dir := filepath.Join(root, taskID.String())
	if err := os.Mkdir(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create workspace: %w", err)
	}
	return &workspace{dir: dir}, nil
}

func (w *workspace) geoJSONPath() string { return filepath.Join(w.dir, geoJSONName) }

func (w *workspace) layerPath() string { return filepath.Join(w.dir, layerName) }

// remove deletes the workspace and everything in it.
func (w *workspace) remove() error {
	return os.RemoveAll(w.dir)
}
