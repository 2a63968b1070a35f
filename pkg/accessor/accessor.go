// Package accessor is a directory-scoped raw byte store. It knows nothing
// about buckets, keys or metadata: paths are opaque names inside one
// directory, built by the caller.
package accessor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/agenthands/amane/pkg/core"
	"github.com/spf13/afero"
)

// Accessor defines byte-level persistence over a single flat directory.
type Accessor interface {
	// Read returns the whole file. Fails with core.ErrNotFound if absent.
	Read(ctx context.Context, path string) ([]byte, error)
	// Write creates or truncates path and writes data in full.
	Write(ctx context.Context, path string, data []byte) error
	// Remove deletes path. Fails with core.ErrNotFound if absent.
	Remove(ctx context.Context, path string) error
	// List returns an unordered snapshot of the file names in the directory.
	List(ctx context.Context) ([]string, error)
	// Size returns the size in bytes of the file at path.
	Size(ctx context.Context, path string) (int64, error)

	String() string
}

type fsAccessor struct {
	fs afero.Fs
}

// New returns an Accessor rooted at the top of fs.
func New(fs afero.Fs) Accessor {
	return &fsAccessor{fs: fs}
}

// NewDir returns an Accessor scoped to dir on the OS filesystem, creating
// the directory if needed.
func NewDir(dir string) (Accessor, error) {
	if dir == "" {
		return nil, fmt.Errorf("%w: data directory not specified", core.ErrInvalidInput)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	return New(afero.NewBasePathFs(afero.NewOsFs(), dir)), nil
}

func (a *fsAccessor) Read(ctx context.Context, path string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := afero.ReadFile(a.fs, clean(path))
	if err != nil {
		return nil, classify("read", path, err)
	}
	return data, nil
}

func (a *fsAccessor) Write(ctx context.Context, path string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f, err := a.fs.OpenFile(clean(path), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("%w: create %q: %v", core.ErrInternal, path, err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("%w: write %q: %v", core.ErrInternal, path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("%w: close %q: %v", core.ErrInternal, path, err)
	}
	return nil
}

func (a *fsAccessor) Remove(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := a.fs.Remove(clean(path)); err != nil {
		return classify("remove", path, err)
	}
	return nil
}

func (a *fsAccessor) List(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	infos, err := afero.ReadDir(a.fs, ".")
	if err != nil {
		if isNotExist(err) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("%w: list: %v", core.ErrInternal, err)
	}
	names := make([]string, 0, len(infos))
	for _, fi := range infos {
		if fi.IsDir() {
			continue
		}
		names = append(names, fi.Name())
	}
	return names, nil
}

func (a *fsAccessor) Size(ctx context.Context, path string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	fi, err := a.fs.Stat(clean(path))
	if err != nil {
		return 0, classify("stat", path, err)
	}
	return fi.Size(), nil
}

func (a *fsAccessor) String() string {
	const name = "fs"
	if bp, ok := a.fs.(*afero.BasePathFs); ok {
		if real, err := bp.RealPath(""); err == nil {
			return name + "@" + real
		}
	}
	return name + "@" + a.fs.Name()
}

// clean keeps every path a direct child of the scoped directory.
func clean(path string) string {
	return filepath.Base(filepath.Clean(path))
}

func classify(op, path string, err error) error {
	if isNotExist(err) {
		return fmt.Errorf("%w: %s %q", core.ErrNotFound, op, path)
	}
	return fmt.Errorf("%w: %s %q: %v", core.ErrInternal, op, path, err)
}

func isNotExist(err error) bool {
	return errors.Is(err, os.ErrNotExist) || os.IsNotExist(err)
}
