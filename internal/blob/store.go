// Package blob persists binary artifacts (view structures, backgrounds,
// icons) outside the graph, keyed by generated filenames.
package blob

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// Store is a filesystem-backed blob store. Files are written under a single
// root directory; callers keep the generated name in the graph.
type Store struct {
	root string
}

// NewStore creates the store, making the root directory if needed.
func NewStore(root string) (*Store, error) {
	if root == "" {
		root = "./blobdata"
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("creating blob root: %w", err)
	}
	return &Store{root: root}, nil
}

// Put writes content under a fresh generated filename and returns the name.
// suffix tags the artifact kind (e.g. "view", "background").
func (s *Store) Put(suffix string, content []byte) (string, error) {
	name := uuid.NewString()
	if suffix != "" {
		name = name + "-" + suffix
	}
	if err := os.WriteFile(filepath.Join(s.root, name), content, 0o644); err != nil {
		return "", fmt.Errorf("writing blob %s: %w", name, err)
	}
	return name, nil
}

// Get reads a blob back by its generated name.
func (s *Store) Get(name string) ([]byte, error) {
	clean, err := sanitize(name)
	if err != nil {
		return nil, err
	}
	return os.ReadFile(filepath.Join(s.root, clean))
}

// Delete removes a blob. Missing files are not an error.
func (s *Store) Delete(name string) error {
	clean, err := sanitize(name)
	if err != nil {
		return err
	}
	err = os.Remove(filepath.Join(s.root, clean))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

func sanitize(name string) (string, error) {
	if strings.TrimSpace(name) == "" {
		return "", fmt.Errorf("empty blob name")
	}
	if strings.Contains(name, "..") || strings.ContainsRune(name, os.PathSeparator) || strings.Contains(name, "/") {
		return "", fmt.Errorf("invalid blob name %q", name)
	}
	return name, nil
}
