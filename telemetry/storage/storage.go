package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path"
	"sync"
)

// Storage is a small persistent key/value store.
type Storage interface {
	Get(key string) (string, bool)
	Store(key, value string) error
}

// FileStorage persists values as a JSON object in the data directory.
type FileStorage struct {
	path   string
	mu     sync.Mutex
	values map[string]string
}

// MemoryStorage keeps values in memory only.
type MemoryStorage struct {
	mu     sync.Mutex
	values map[string]string
}

// storagePath returns the canonical path for the serialized storage.
func storagePath(dataDir string) string {
	return path.Join(dataDir, "storage.json")
}

// OpenFileStorage reads the storage file from dataDir if it exists.
func OpenFileStorage(dataDir string) (*FileStorage, error) {
	s := &FileStorage{
		path:   storagePath(dataDir),
		values: make(map[string]string),
	}
	populated, err := isFilePopulated(s.path)
	if err != nil {
		return nil, fmt.Errorf("OpenFileStorage(): could not stat storage: %w", err)
	}
	if !populated {
		return s, nil
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("OpenFileStorage(): error reading storage: %w", err)
	}
	if err := json.Unmarshal(data, &s.values); err != nil {
		return nil, fmt.Errorf("OpenFileStorage(): error reading storage: %w", err)
	}
	return s, nil
}

// Get returns the stored value for key.
func (s *FileStorage) Get(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.values[key]
	return v, ok
}

// Store sets key and writes the storage file.
func (s *FileStorage) Store(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	return s.encodeToFile()
}

// encodeToFile writes the values through a temp file so a crash never
// leaves a truncated storage file.
func (s *FileStorage) encodeToFile() error {
	tempFilename := fmt.Sprintf("%s.temp", s.path)
	file, err := os.Create(tempFilename)
	if err != nil {
		return fmt.Errorf("encodeToFile(): failed to create temp storage file: %w", err)
	}
	defer file.Close()
	err = json.NewEncoder(file).Encode(s.values)
	if err != nil {
		return fmt.Errorf("encodeToFile(): failed to write temp storage: %w", err)
	}

	err = os.Rename(tempFilename, s.path)
	if err != nil {
		return fmt.Errorf("encodeToFile(): failed to replace storage file: %w", err)
	}
	return nil
}

// NewMemoryStorage returns an empty in-memory store.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{values: make(map[string]string)}
}

// Get returns the stored value for key.
func (s *MemoryStorage) Get(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.values[key]
	return v, ok
}

// Store sets key.
func (s *MemoryStorage) Store(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	return nil
}

// isFilePopulated returns a bool denoting whether the file at path exists w/ non-zero size
func isFilePopulated(path string) (bool, error) {
	stat, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) || (stat != nil && stat.Size() == 0) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, err
}
