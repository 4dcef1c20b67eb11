// Package persist provides best-effort key/value persistence for client
// state. Failures are defined to be swallowed: a failed read falls back to
// the caller's default, a failed write is dropped. The core never has to
// special-case storage errors.
package persist

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
)

// Store loads and saves JSON-serializable snapshots under string keys.
type Store interface {
	// Load unmarshals the value stored under key into out and reports
	// whether a valid value was found. On false, out is left untouched so
	// the caller's default survives.
	Load(key string, out any) bool
	// Save persists value under key. Errors are swallowed.
	Save(key string, value any)
}

// FileStore keeps one <key>.json file per key under a state directory.
type FileStore struct {
	dir    string
	logger *zap.Logger
}

// NewFileStore creates the state directory if needed. A directory that
// cannot be created still yields a usable store; every operation on it just
// misses.
func NewFileStore(dir string, logger *zap.Logger) *FileStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		logger.Debug("state dir unavailable", zap.String("dir", dir), zap.Error(err))
	}
	return &FileStore{dir: dir, logger: logger}
}

func (f *FileStore) path(key string) string {
	return filepath.Join(f.dir, key+".json")
}

// Load reads and unmarshals <key>.json. Missing or corrupt files report
// false.
func (f *FileStore) Load(key string, out any) bool {
	data, err := os.ReadFile(f.path(key))
	if err != nil {
		if !os.IsNotExist(err) {
			f.logger.Debug("state read failed", zap.String("key", key), zap.Error(err))
		}
		return false
	}
	if err := json.Unmarshal(data, out); err != nil {
		f.logger.Debug("state corrupt, using defaults", zap.String("key", key), zap.Error(err))
		return false
	}
	return true
}

// Save marshals value and writes it to <key>.json. Write errors are logged
// at debug level and otherwise ignored.
func (f *FileStore) Save(key string, value any) {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		f.logger.Debug("state marshal failed", zap.String("key", key), zap.Error(err))
		return
	}
	if err := os.WriteFile(f.path(key), data, 0644); err != nil {
		f.logger.Debug("state write failed", zap.String("key", key), zap.Error(err))
	}
}

// MemStore is an in-memory Store for tests.
type MemStore struct {
	mu   sync.Mutex
	data map[string][]byte
}

// NewMemStore returns an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{data: make(map[string][]byte)}
}

func (m *MemStore) Load(key string, out any) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	raw, ok := m.data[key]
	if !ok {
		return false
	}
	return json.Unmarshal(raw, out) == nil
}

func (m *MemStore) Save(key string, value any) {
	raw, err := json.Marshal(value)
	if err != nil {
		return
	}
	m.mu.Lock()
	m.data[key] = raw
	m.mu.Unlock()
}
