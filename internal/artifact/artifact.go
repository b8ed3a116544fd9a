// Package artifact persists the original uploads that analyses refer to.
package artifact

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"resumelab/api/internal/util"
)

// IDPrefix starts every artifact identifier.
const IDPrefix = "art"

var (
	// ErrNotFound indicates no artifact exists for the identifier.
	ErrNotFound = errors.New("artifact not found")
	// ErrInvalidID indicates the identifier was not issued by this package.
	ErrInvalidID = errors.New("artifact id invalid")
)

// NewID issues an identifier that keeps the upload's extension, so exports
// can tell a .docx from a .pdf without reading the file.
func NewID(filename string) string {
	return util.NewID(IDPrefix) + util.Extension(filename)
}

// Extension returns the extension recorded in id, including the dot.
func Extension(id string) string {
	return util.Extension(id)
}

// CheckID rejects identifiers this package could not have issued.
func CheckID(id string) error {
	if !util.ValidID(IDPrefix, id) {
		return fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	return nil
}

// FileStore keeps artifacts in a local directory.
type FileStore struct {
	dir string
}

// NewFileStore creates dir if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) Save(ctx context.Context, filename string, r io.Reader) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	id := NewID(filename)
	tmp, err := os.CreateTemp(s.dir, ".upload-*")
	if err != nil {
		return "", fmt.Errorf("create artifact: %w", err)
	}
	if _, err := io.Copy(tmp, r); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("write artifact: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("close artifact: %w", err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(s.dir, id)); err != nil {
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("commit artifact: %w", err)
	}
	return id, nil
}

func (s *FileStore) Open(ctx context.Context, id string) (io.ReadCloser, error) {
	if err := CheckID(id); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(filepath.Join(s.dir, id))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("open artifact: %w", err)
	}
	return f, nil
}
