package fsutil

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/couchcryptid/weather-data-pipeline/internal/domain"
)

// Stage is a hidden scratch directory inside a target directory. Artifacts
// written to it become visible only on Commit; Discard drops them all.
type Stage struct {
	dir    string
	target string
}

// NewStage creates target if needed and a fresh ".run-*" directory inside it.
func NewStage(target string) (*Stage, error) {
	if err := os.MkdirAll(target, 0o755); err != nil {
		return nil, &domain.IOError{Op: "write", Path: target, Err: err}
	}
	dir, err := os.MkdirTemp(target, ".run-*")
	if err != nil {
		return nil, &domain.IOError{Op: "write", Path: target, Err: fmt.Errorf("create staging dir: %w", err)}
	}
	return &Stage{dir: dir, target: target}, nil
}

// Dir returns the staging directory.
func (s *Stage) Dir() string { return s.dir }

// Commit moves every staged file into the target directory, replacing files
// of the same name, and removes the staging directory.
func (s *Stage) Commit() error {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return &domain.IOError{Op: "write", Path: s.dir, Err: err}
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		dst := filepath.Join(s.target, e.Name())
		if err := os.Rename(filepath.Join(s.dir, e.Name()), dst); err != nil {
			return &domain.IOError{Op: "write", Path: dst, Err: fmt.Errorf("rename: %w", err)}
		}
	}
	return s.Discard()
}

// Discard removes the staging directory and everything in it.
func (s *Stage) Discard() error {
	if err := os.RemoveAll(s.dir); err != nil {
		return &domain.IOError{Op: "write", Path: s.dir, Err: err}
	}
	return nil
}
