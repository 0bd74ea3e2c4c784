package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// LocalStore keeps objects in a local directory tree, one file per key.
type LocalStore struct {
	root string
}

// NewLocalStore creates a local object store rooted at root.
func NewLocalStore(root string) (*LocalStore, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return nil, fmt.Errorf("local store root is required")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Join(abs, "tmp"), 0o755); err != nil {
		return nil, err
	}
	return &LocalStore{root: abs}, nil
}

// PutObject writes an object under key. An existing object is left alone:
// keys are content-derived, so the bytes are the same.
func (s *LocalStore) PutObject(ctx context.Context, key string, r io.Reader, size int64) error {
	if s == nil {
		return fmt.Errorf("object store is not configured")
	}
	if r == nil {
		return fmt.Errorf("reader is required")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	dst, err := s.pathFromKey(key)
	if err != nil {
		return err
	}
	if _, err := os.Stat(dst); err == nil {
		return nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Join(s.root, "tmp"), "put-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	cleanup := func() {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
	}

	if _, err := io.Copy(tmp, r); err != nil {
		cleanup()
		return err
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return err
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		cleanup()
		return err
	}
	if err := os.Rename(tmpPath, dst); err != nil {
		// A concurrent writer may have won the race; its content is identical.
		if _, statErr := os.Stat(dst); statErr == nil {
			_ = os.Remove(tmpPath)
			return nil
		}
		cleanup()
		return err
	}
	return nil
}

// GetObject returns a reader for an object's content.
func (s *LocalStore) GetObject(ctx context.Context, key string) (io.ReadCloser, error) {
	if s == nil {
		return nil, fmt.Errorf("object store is not configured")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, err := s.pathFromKey(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrObjectNotFound, key)
	}
	return f, err
}

// StatObject reports whether an object exists for key.
func (s *LocalStore) StatObject(ctx context.Context, key string) (bool, error) {
	if s == nil {
		return false, fmt.Errorf("object store is not configured")
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}
	path, err := s.pathFromKey(key)
	if err != nil {
		return false, err
	}
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (s *LocalStore) pathFromKey(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", fmt.Errorf("object key is required")
	}
	if strings.HasPrefix(key, "/") {
		return "", fmt.Errorf("object key must be relative")
	}
	clean := filepath.Clean(filepath.FromSlash(key))
	if clean == "." || strings.HasPrefix(clean, "..") || strings.Contains(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid object key")
	}
	return filepath.Join(s.root, clean), nil
}
