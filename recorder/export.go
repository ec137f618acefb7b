package recorder

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FileExporter writes the artifact under Dir with its fixed name, replacing
// any previous recording.
type FileExporter struct {
	Dir string
}

// Export writes a and returns the file path.
func (e FileExporter) Export(_ context.Context, a Artifact) (string, error) {
	dir := e.Dir
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+a.Name+".*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(a.Data); err != nil {
		tmp.Close()
		return "", fmt.Errorf("write recording: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close recording: %w", err)
	}

	path := filepath.Join(dir, a.Name)
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("rename recording: %w", err)
	}
	return path, nil
}

// MultiExporter exports to every exporter in order. Locations of successful
// exports are joined with ", ".
type MultiExporter []Exporter

func (m MultiExporter) Export(ctx context.Context, a Artifact) (string, error) {
	var (
		locs []string
		errs []error
	)
	for _, e := range m {
		loc, err := e.Export(ctx, a)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		locs = append(locs, loc)
	}
	return strings.Join(locs, ", "), errors.Join(errs...)
}
