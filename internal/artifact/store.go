// Package artifact persists stage outputs under the run's output root.
// Every artifact is written whole via a temp file and rename, so a failing
// stage leaves no partial file and never touches a prior stage's output.
package artifact

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
)

// Store writes named tabular and text artifacts under one output root.
type Store struct {
	root string
}

// NewStore creates the output root if needed.
func NewStore(root string) (*Store, error) {
	if root == "" {
		return nil, fmt.Errorf("artifact store: output root required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("artifact store: %w", err)
	}
	return &Store{root: root}, nil
}

// Root returns the output root path.
func (s *Store) Root() string { return s.root }

// Path returns the absolute path of a named artifact.
func (s *Store) Path(name string) string { return filepath.Join(s.root, name) }

// Exists reports whether a named artifact has been written.
func (s *Store) Exists(name string) bool {
	_, err := os.Stat(s.Path(name))
	return err == nil
}

// WriteTable writes a CSV artifact with a named-column header.
func (s *Store) WriteTable(name string, header []string, rows [][]string) error {
	tmp, err := os.CreateTemp(s.root, "."+name+".tmp*")
	if err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	defer os.Remove(tmp.Name())

	w := csv.NewWriter(tmp)
	if err := w.Write(header); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", name, err)
	}
	for _, row := range rows {
		if len(row) != len(header) {
			tmp.Close()
			return fmt.Errorf("write %s: row has %d fields, header has %d", name, len(row), len(header))
		}
		if err := w.Write(row); err != nil {
			tmp.Close()
			return fmt.Errorf("write %s: %w", name, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := os.Rename(tmp.Name(), s.Path(name)); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}

// WriteText writes a text artifact (summaries, reports).
func (s *Store) WriteText(name, content string) error {
	tmp, err := os.CreateTemp(s.root, "."+name+".tmp*")
	if err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.WriteString(content); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := os.Rename(tmp.Name(), s.Path(name)); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}
