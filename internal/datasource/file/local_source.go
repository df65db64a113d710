// Package file implements the local filesystem data source used for the
// extracted BindingDB TSV, plus small helpers for line-based list files.
package file

import (
	"context"
	"fmt"
	"io"
	"os"
)

// Local opens one file from the local disk. The chunk reader may open it
// twice (encoding scan, then the real pass), so Open always returns a fresh
// handle positioned at the start.
type Local struct{ path string }

// NewLocal returns a Local bound to path.
func NewLocal(path string) *Local { return &Local{path: path} }

// Path returns the bound filesystem path.
func (l *Local) Path() string { return l.path }

// Open returns the file as an io.ReadCloser after hinting the kernel that it
// will be read front to back. A canceled ctx short-circuits before any I/O.
// Filesystem errors wrap the path and keep errors.Is(err, os.ErrNotExist).
func (l *Local) Open(ctx context.Context) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(l.path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", l.path, err)
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat %s: %w", l.path, err)
	}
	if fi.IsDir() {
		f.Close()
		return nil, fmt.Errorf("open %s: is a directory", l.path)
	}
	adviseSequential(f)
	return f, nil
}
