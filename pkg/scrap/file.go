package scrap

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/matzehuels/parlance/pkg/perrors"
)

// FileStore persists one JSON archive file per source-file key in a
// per-user directory. This is the default backend for the editor.
type FileStore struct {
	mu  sync.RWMutex
	dir string
}

// NewFileStore creates a file-based store rooted at dir.
// If dir is empty, defaults to ~/.config/parlance/scrap/
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("get home dir: %w", err)
		}
		dir = filepath.Join(home, ".config", "parlance", "scrap")
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("create scrap dir: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) archivePath(key string) string {
	return filepath.Join(s.dir, key+".json")
}

// Load reads the archive for key. A missing file yields nil entries.
func (s *FileStore) Load(ctx context.Context, key string) ([]Entry, error) {
	if err := perrors.ValidateFileKey(key); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(s.archivePath(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, perrors.Wrap(perrors.ErrCodeStorage, err, "read scrap archive %s", key)
	}

	var a archive
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, perrors.Wrap(perrors.ErrCodeDecode, err, "parse scrap archive %s", key)
	}
	if a.Version > FormatVersion {
		return nil, perrors.New(perrors.ErrCodeDecode, "scrap archive %s has unsupported version %d", key, a.Version)
	}
	return a.Entries, nil
}

// Save writes the archive for key, removing the file when entries is empty.
func (s *FileStore) Save(ctx context.Context, key string, entries []Entry) error {
	if err := perrors.ValidateFileKey(key); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.archivePath(key)
	if len(entries) == 0 {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return perrors.Wrap(perrors.ErrCodeStorage, err, "remove scrap archive %s", key)
		}
		return nil
	}

	data, err := json.MarshalIndent(archive{Version: FormatVersion, Entries: entries}, "", "  ")
	if err != nil {
		return perrors.Wrap(perrors.ErrCodeStorage, err, "marshal scrap archive %s", key)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return perrors.Wrap(perrors.ErrCodeStorage, err, "write scrap archive %s", key)
	}
	return nil
}

// Delete removes the archive file for key.
func (s *FileStore) Delete(ctx context.Context, key string) error {
	if err := perrors.ValidateFileKey(key); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.archivePath(key)); err != nil && !os.IsNotExist(err) {
		return perrors.Wrap(perrors.ErrCodeStorage, err, "remove scrap archive %s", key)
	}
	return nil
}

// Keys lists the file keys with an archive on disk.
func (s *FileStore) Keys(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	dirEntries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, perrors.Wrap(perrors.ErrCodeStorage, err, "read scrap dir")
	}
	var keys []string
	for _, e := range dirEntries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		keys = append(keys, strings.TrimSuffix(e.Name(), ".json"))
	}
	return keys, nil
}

// Close does nothing for the file backend.
func (s *FileStore) Close() error { return nil }

// Dir returns the directory holding the archive files.
func (s *FileStore) Dir() string { return s.dir }

var _ Store = (*FileStore)(nil)
