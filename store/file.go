package store

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

type fileStore struct {
	root string
}

// NewFileStore creates a Store backed by the filesystem. Each key maps to a
// relative file path under root. Writes go through a temp file and rename,
// so a document on disk is always either the previous or the new version.
func NewFileStore(root string) Store {
	return &fileStore{root: filepath.Clean(root)}
}

func (s *fileStore) path(key string) (string, error) {
	if key == "" || strings.HasPrefix(key, "/") {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	for _, segment := range strings.Split(key, "/") {
		if segment == "" || segment == "." || segment == ".." || strings.HasPrefix(segment, ".") {
			return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
		}
	}
	return filepath.Join(s.root, filepath.FromSlash(key)), nil
}

func (s *fileStore) List(_ context.Context) ([]string, error) {
	var keys []string

	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) && path == s.root {
				return fs.SkipAll
			}
			return err
		}

		if strings.HasPrefix(d.Name(), ".") && path != s.root {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if d.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(s.root, path)
		if err != nil {
			return err
		}
		keys = append(keys, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoadFailed, err)
	}

	return keys, nil
}

func (s *fileStore) Load(_ context.Context, keys ...string) ([]Entry, error) {
	entries := make([]Entry, 0, len(keys))

	for _, key := range keys {
		path, err := s.path(key)
		if err != nil {
			return nil, err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return nil, fmt.Errorf("%w: %s", ErrKeyNotFound, key)
			}
			return nil, fmt.Errorf("%w: %s: %v", ErrLoadFailed, key, err)
		}
		entries = append(entries, Entry{Key: key, Value: data})
	}

	return entries, nil
}

func (s *fileStore) Save(_ context.Context, entries ...Entry) error {
	for _, e := range entries {
		path, err := s.path(e.Key)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrSaveFailed, err)
		}

		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrSaveFailed, e.Key, err)
		}

		tmp, err := os.CreateTemp(dir, ".tmp-*")
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrSaveFailed, e.Key, err)
		}
		tmpName := tmp.Name()

		if _, err := tmp.Write(e.Value); err != nil {
			tmp.Close()
			os.Remove(tmpName)
			return fmt.Errorf("%w: %s: %v", ErrSaveFailed, e.Key, err)
		}
		if err := tmp.Close(); err != nil {
			os.Remove(tmpName)
			return fmt.Errorf("%w: %s: %v", ErrSaveFailed, e.Key, err)
		}

		if err := os.Rename(tmpName, path); err != nil {
			os.Remove(tmpName)
			return fmt.Errorf("%w: %s: %v", ErrSaveFailed, e.Key, err)
		}
	}

	return nil
}

func (s *fileStore) Delete(_ context.Context, keys ...string) error {
	for _, key := range keys {
		path, err := s.path(key)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrDeleteFailed, err)
		}
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("%w: %s: %v", ErrDeleteFailed, key, err)
		}

		// Prune directories left empty by the removal.
		dir := filepath.Dir(path)
		for dir != s.root && dir != "." && dir != string(filepath.Separator) {
			if err := os.Remove(dir); err != nil {
				break
			}
			dir = filepath.Dir(dir)
		}
	}

	return nil
}
