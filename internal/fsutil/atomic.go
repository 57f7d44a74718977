// Package fsutil holds the file-writing helpers shared by the artifact exporters.
package fsutil

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/couchcryptid/weather-data-pipeline/internal/domain"
)

// WriteAtomic creates path by streaming write into a temporary file in the
// same directory and renaming it into place, so a failed export never leaves a
// truncated artifact behind. Parent directories are created as needed.
// Failures are reported as *domain.IOError.
func WriteAtomic(path string, write func(w io.Writer) error) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return &domain.IOError{Op: "write", Path: path, Err: err}
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return &domain.IOError{Op: "write", Path: path, Err: err}
	}
	defer func() {
		if err != nil {
			tmp.Close()           //nolint:errcheck // already failing
			os.Remove(tmp.Name()) //nolint:errcheck // best-effort cleanup
		}
	}()

	buf := bufio.NewWriter(tmp)
	if err = write(buf); err != nil {
		return &domain.IOError{Op: "write", Path: path, Err: err}
	}
	if err = buf.Flush(); err != nil {
		return &domain.IOError{Op: "write", Path: path, Err: err}
	}
	if err = tmp.Chmod(0o644); err != nil {
		return &domain.IOError{Op: "write", Path: path, Err: err}
	}
	if err = tmp.Close(); err != nil {
		return &domain.IOError{Op: "write", Path: path, Err: err}
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return &domain.IOError{Op: "write", Path: path, Err: fmt.Errorf("rename: %w", err)}
	}
	return nil
}
