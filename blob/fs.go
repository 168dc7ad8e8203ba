package blob

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/hazyhaar/baseline/horosafe"
)

// FS stores blobs as regular files. With a non-empty root every key is
// resolved under it and keys escaping the root are rejected; with an empty
// root keys are used as filesystem paths directly.
type FS struct {
	root string
}

// NewFS returns a filesystem backend rooted at root ("" for none).
func NewFS(root string) *FS {
	return &FS{root: root}
}

func (f *FS) resolve(key string) (string, error) {
	if f.root == "" {
		return filepath.Clean(filepath.FromSlash(key)), nil
	}
	return horosafe.SafePath(f.root, filepath.FromSlash(key))
}

// EnsureDir creates dir and its parents.
func (f *FS) EnsureDir(ctx context.Context, dir string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p, err := f.resolve(dir)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(p, 0o755); err != nil {
		return fmt.Errorf("blob: mkdir %s: %w", p, err)
	}
	return nil
}

// ReadFile reads the file at key.
func (f *FS) ReadFile(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p, err := f.resolve(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, notFound(key)
	}
	if err != nil {
		return nil, fmt.Errorf("blob: read %s: %w", p, err)
	}
	return data, nil
}

// AppendLine opens key in append mode, writes line+'\n' and fsyncs.
func (f *FS) AppendLine(ctx context.Context, key string, line []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := checkLine(line); err != nil {
		return err
	}
	p, err := f.resolve(key)
	if err != nil {
		return err
	}
	fh, err := os.OpenFile(p, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("blob: open %s: %w", p, err)
	}
	buf := make([]byte, 0, len(line)+1)
	buf = append(append(buf, line...), '\n')
	if _, err := fh.Write(buf); err != nil {
		fh.Close()
		return fmt.Errorf("blob: append %s: %w", p, err)
	}
	if err := fh.Sync(); err != nil {
		fh.Close()
		return fmt.Errorf("blob: sync %s: %w", p, err)
	}
	return fh.Close()
}

// WriteFile writes data atomically (write .tmp then rename) so readers never
// observe a partial file.
func (f *FS) WriteFile(ctx context.Context, key string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p, err := f.resolve(key)
	if err != nil {
		return err
	}
	tmp := p + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("blob: write tmp: %w", err)
	}
	if err := os.Rename(tmp, p); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("blob: rename: %w", err)
	}
	return nil
}
