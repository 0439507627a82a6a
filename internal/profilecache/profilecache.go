// Package profilecache persists the signed-in user's profile between runs so
// consumers can paint a name and avatar before the first network round trip
// completes.
package profilecache

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ErrNotCached indicates no profile has been stored.
var ErrNotCached = errors.New("profile not cached")

// ErrMalformed indicates a cache entry exists but cannot be parsed. Callers
// must treat it as absent; it is never fatal.
var ErrMalformed = errors.New("profile cache malformed")

// Store is a durable single-entry cache. Set fully overwrites any previous
// value; concurrent writers resolve last-writer-wins.
type Store interface {
	Get() (json.RawMessage, error)
	Set(value json.RawMessage) error
	Delete() error
}

// FileStore keeps the cached profile in a single JSON file. Writes go
// through a temp file and rename so readers never observe a partial entry.
type FileStore struct {
	path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) Get() (json.RawMessage, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotCached
		}
		return nil, fmt.Errorf("read profile cache: %w", err)
	}
	if !json.Valid(data) {
		return nil, ErrMalformed
	}
	return data, nil
}

func (s *FileStore) Set(value json.RawMessage) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create profile cache dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".profile-*")
	if err != nil {
		return fmt.Errorf("write profile cache: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(value); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write profile cache: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("write profile cache: %w", err)
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("write profile cache: %w", err)
	}
	return nil
}

func (s *FileStore) Delete() error {
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete profile cache: %w", err)
	}
	return nil
}
