package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"sync"
)

// FileStore keeps one file per key under Dir. Writes go to a temp file
// that is renamed over the target, so a crash never leaves a torn value.
type FileStore struct {
	Dir string

	mu sync.Mutex
}

func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("%w: create dir: %w", ErrStorage, err)
	}
	return &FileStore{Dir: dir}, nil
}

func (s *FileStore) Ping(ctx context.Context) error {
	st, err := os.Stat(s.Dir)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrStorage, err)
	}
	if !st.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", ErrStorage, s.Dir)
	}
	return nil
}

func (s *FileStore) Get(ctx context.Context, key string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, fmt.Errorf("%w: %w", ErrStorage, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := os.ReadFile(s.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("%w: read %q: %w", ErrStorage, key, err)
	}
	return string(b), true, nil
}

func (s *FileStore) Set(ctx context.Context, key, value string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrStorage, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	target := s.path(key)
	tmp, err := os.CreateTemp(s.Dir, filepath.Base(target)+".tmp-*")
	if err != nil {
		return fmt.Errorf("%w: write %q: %w", ErrStorage, key, err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.WriteString(value); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("%w: write %q: %w", ErrStorage, key, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("%w: sync %q: %w", ErrStorage, key, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: close %q: %w", ErrStorage, key, err)
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		return fmt.Errorf("%w: rename %q: %w", ErrStorage, key, err)
	}
	return nil
}

func (s *FileStore) path(key string) string {
	return filepath.Join(s.Dir, url.PathEscape(key)+".json")
}

var _ Storage = (*FileStore)(nil)
