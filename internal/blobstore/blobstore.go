package blobstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"auction-marketplace/utils"
)

// URLPrefix is the public path under which stored blobs are served
const URLPrefix = "/uploads/"

// Store persists uploaded images and hands back a public reference
type Store interface {
	Save(ctx context.Context, data []byte, ext string) (string, error)
	Delete(ctx context.Context, ref string) error
}

// DiskStore keeps blobs as flat files inside a single directory
type DiskStore struct {
	dir string
}

// NewDiskStore creates the uploads directory if needed
func NewDiskStore(dir string) (*DiskStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("blobstore: creating %s: %w", dir, err)
	}
	return &DiskStore{dir: dir}, nil
}

// Dir returns the directory blobs are written to
func (s *DiskStore) Dir() string {
	return s.dir
}

// Save writes data under a fresh unique name and returns its /uploads/ reference
func (s *DiskStore) Save(ctx context.Context, data []byte, ext string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	name := utils.GenerateFileName("image", ext)
	tmp, err := os.CreateTemp(s.dir, ".upload-*")
	if err != nil {
		return "", fmt.Errorf("blobstore: creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", fmt.Errorf("blobstore: writing %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("blobstore: closing %s: %w", name, err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(s.dir, name)); err != nil {
		return "", fmt.Errorf("blobstore: storing %s: %w", name, err)
	}
	return URLPrefix + name, nil
}

// Delete removes the blob behind ref. A missing blob is not an error.
func (s *DiskStore) Delete(ctx context.Context, ref string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	name, err := nameFromRef(ref)
	if err != nil {
		return err
	}
	if err := os.Remove(filepath.Join(s.dir, name)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("blobstore: deleting %s: %w", name, err)
	}
	return nil
}

// nameFromRef accepts "/uploads/<name>" or a bare name and refuses anything
// that would escape the uploads directory
func nameFromRef(ref string) (string, error) {
	name := strings.TrimPrefix(ref, URLPrefix)
	if name == "" || name != filepath.Base(name) || name == "." || name == ".." {
		return "", fmt.Errorf("blobstore: invalid reference %q", ref)
	}
	return name, nil
}
