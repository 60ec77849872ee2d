// Package storage implements the arm.Storage collaborator: moving caller
// files into managed storage and removing them again. Backends: filesystem,
// in-memory (tests) and S3.
package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// Filesystem stores managed files flat under a root directory, named by a
// fresh UUID with the source extension preserved.
type Filesystem struct {
	root string
}

// NewFilesystem creates a filesystem storage rooted at the given path.
func NewFilesystem(root string) (*Filesystem, error) {
	if root == "" {
		return nil, fmt.Errorf("filesystem storage requires a root directory")
	}
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	return &Filesystem{root: root}, nil
}

// Move takes a temporary or uploaded file into managed storage and returns
// the stored name. Rename is attempted first; cross-device moves fall back
// to copy and remove.
func (f *Filesystem) Move(src string) (string, error) {
	name := storedName(src)
	dest := filepath.Join(f.root, name)
	if err := os.Rename(src, dest); err == nil {
		return name, nil
	}
	if err := copyFile(src, dest); err != nil {
		return "", fmt.Errorf("moving %s into storage: %w", src, err)
	}
	if err := os.Remove(src); err != nil {
		return "", fmt.Errorf("removing source %s: %w", src, err)
	}
	return name, nil
}

// Delete removes a stored file. A name that no longer exists is not an
// error.
func (f *Filesystem) Delete(name string) error {
	err := os.Remove(filepath.Join(f.root, name))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("deleting stored file %s: %w", name, err)
	}
	return nil
}

// Path resolves a stored name to its full path.
func (f *Filesystem) Path(name string) string {
	return filepath.Join(f.root, name)
}

func storedName(src string) string {
	return uuid.New().String() + filepath.Ext(src)
}

func copyFile(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
