package checkpoint

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"
)

type record struct {
	LastMigrated string `json:"last_migrated"`
}

// FileStore keeps the checkpoint in a single JSON file. Absence of the
// file means no run is in progress.
type FileStore struct {
	sync.Mutex
	FilePath string
}

func NewFileStore(filePath string) *FileStore {
	return &FileStore{FilePath: filePath}
}

func (f *FileStore) Get() (string, error) {
	f.Lock()
	defer f.Unlock()
	bs, err := os.ReadFile(f.FilePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("read checkpoint file %s: %w", f.FilePath, err)
	}
	var rec record
	if err := json.Unmarshal(bs, &rec); err != nil {
		return "", fmt.Errorf("unmarshal checkpoint file %s: %w", f.FilePath, err)
	}
	return rec.LastMigrated, nil
}

func (f *FileStore) Set(name string) error {
	f.Lock()
	defer f.Unlock()
	bs, err := json.MarshalIndent(record{LastMigrated: name}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal checkpoint: %w", err)
	}
	if err := os.WriteFile(f.FilePath, bs, 0644); err != nil {
		return fmt.Errorf("write checkpoint file %s: %w", f.FilePath, err)
	}
	return nil
}

func (f *FileStore) Clear() error {
	f.Lock()
	defer f.Unlock()
	err := os.Remove(f.FilePath)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove checkpoint file %s: %w", f.FilePath, err)
	}
	return nil
}

// MemoryStore is an in-memory Store for tests.
type MemoryStore struct {
	sync.Mutex
	name string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) Get() (string, error) {
	m.Lock()
	defer m.Unlock()
	return m.name, nil
}

func (m *MemoryStore) Set(name string) error {
	m.Lock()
	defer m.Unlock()
	m.name = name
	return nil
}

func (m *MemoryStore) Clear() error {
	m.Lock()
	defer m.Unlock()
	m.name = ""
	return nil
}
