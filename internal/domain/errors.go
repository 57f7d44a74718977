package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotLoaded is returned by a stage invoked before the loader produced a table.
var ErrNotLoaded = errors.New("data not loaded: load the source table first")

// SchemaError reports required columns absent from the source header.
type SchemaError struct {
	Missing []string
}

func (e *SchemaError) Error() string {
	return "missing required columns: " + strings.Join(e.Missing, ", ")
}

// IOError reports a source that could not be read or a destination that could
// not be written.
type IOError struct {
	Op   string // "read" or "write"
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// CheckSchema returns a SchemaError listing every required column missing
// from header, or nil when all are present.
func CheckSchema(header []string) error {
	present := make(map[string]bool, len(header))
	for _, h := range header {
		present[h] = true
	}
	var missing []string
	for _, col := range RequiredColumns {
		if !present[col] {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return &SchemaError{Missing: missing}
	}
	return nil
}
