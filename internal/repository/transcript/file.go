package transcript

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// FileRepo stores one plain-text transcript per handle as <dir>/<handle>.txt.
type FileRepo struct {
	dir string
}

// NewFileRepo creates the directory if needed.
func NewFileRepo(dir string) (*FileRepo, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create transcript dir %s: %w", dir, err)
	}
	return &FileRepo{dir: dir}, nil
}

func (r *FileRepo) path(handle string) string {
	return filepath.Join(r.dir, handle+".txt")
}

// Load returns the transcript, or "" when the handle has none.
func (r *FileRepo) Load(_ context.Context, handle string) (string, error) {
	if err := ValidateHandle(handle); err != nil {
		return "", err
	}
	data, err := os.ReadFile(r.path(handle))
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read transcript %s: %w", handle, err)
	}
	return string(data), nil
}

// Save replaces the transcript. The write goes to a temp file that is fsynced and
// renamed over the target, so readers see either the old or the new text.
func (r *FileRepo) Save(_ context.Context, handle, text string) error {
	if err := ValidateHandle(handle); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(r.dir, "."+handle+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp transcript: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) //nolint:errcheck // no-op after a successful rename

	if _, err := tmp.WriteString(text); err != nil {
		tmp.Close()
		return fmt.Errorf("write transcript %s: %w", handle, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync transcript %s: %w", handle, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close transcript %s: %w", handle, err)
	}
	if err := os.Rename(tmpName, r.path(handle)); err != nil {
		return fmt.Errorf("rename transcript %s: %w", handle, err)
	}
	return nil
}

// Ping checks that the directory is still there.
func (r *FileRepo) Ping(_ context.Context) error {
	info, err := os.Stat(r.dir)
	if err != nil {
		return fmt.Errorf("stat transcript dir: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("transcript dir %s is not a directory", r.dir)
	}
	return nil
}
