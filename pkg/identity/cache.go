package identity

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Well-known storage keys.
const (
	// markerKey holds the "recently authenticated" marker and minimal
	// profile. Its presence drives the optimistic identity guess.
	markerKey = "recent_identity"

	// anonymousKey holds the generated device identity id.
	anonymousKey = "anonymous_id"
)

// MarkerStorage is the small key-value storage the identity cache
// persists through. Read returns (nil, nil) for absent keys.
type MarkerStorage interface {
	Read(key string) ([]byte, error)
	Write(key string, data []byte) error
	Remove(key string) error
}

// FileStorage is a MarkerStorage keeping one JSON file per key under a
// state directory.
type FileStorage struct {
	mu  sync.Mutex
	dir string
}

// NewFileStorage creates a file-backed marker storage rooted at dir,
// creating the directory if needed.
func NewFileStorage(dir string) (*FileStorage, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create state dir: %w", err)
	}
	return &FileStorage{dir: dir}, nil
}

func (f *FileStorage) path(key string) string {
	return filepath.Join(f.dir, key+".json")
}

// Read returns the stored bytes for key, or (nil, nil) if absent.
func (f *FileStorage) Read(key string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := os.ReadFile(f.path(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	return data, nil
}

// Write stores bytes under key.
func (f *FileStorage) Write(key string, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return os.WriteFile(f.path(key), data, 0o600)
}

// Remove deletes the key. Absent keys are not an error.
func (f *FileStorage) Remove(key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	err := os.Remove(f.path(key))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// MemoryStorage is an in-memory MarkerStorage for tests.
type MemoryStorage struct {
	mu   sync.Mutex
	data map[string][]byte
}

// NewMemoryStorage creates an empty in-memory marker storage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{data: make(map[string][]byte)}
}

// Read returns the stored bytes for key, or (nil, nil) if absent.
func (m *MemoryStorage) Read(key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.data[key]
	if !ok {
		return nil, nil
	}
	return append([]byte(nil), data...), nil
}

// Write stores bytes under key.
func (m *MemoryStorage) Write(key string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = append([]byte(nil), data...)
	return nil
}

// Remove deletes the key.
func (m *MemoryStorage) Remove(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

// marker is the persisted "recently authenticated" record.
type marker struct {
	ID          string    `json:"id"`
	Email       string    `json:"email,omitempty"`
	DisplayName string    `json:"display_name,omitempty"`
	CachedAt    time.Time `json:"cached_at"`
}

// Cache persists the optimistic-identity marker across restarts.
type Cache struct {
	storage MarkerStorage
}

// NewCache creates a cache over the given storage.
func NewCache(storage MarkerStorage) *Cache {
	return &Cache{storage: storage}
}

// OptimisticID returns the cached identity id, or "" if none is cached or
// the marker is unreadable. Never fails: a broken marker just means no
// optimistic guess.
func (c *Cache) OptimisticID() string {
	data, err := c.storage.Read(markerKey)
	if err != nil || data == nil {
		return ""
	}

	var m marker
	if err := json.Unmarshal(data, &m); err != nil {
		return ""
	}
	return m.ID
}

// Remember caches the confirmed identity's marker and minimal profile.
func (c *Cache) Remember(ident *Identity) error {
	data, err := json.Marshal(marker{
		ID:          ident.ID,
		Email:       ident.Email,
		DisplayName: ident.DisplayName,
		CachedAt:    time.Now(),
	})
	if err != nil {
		return err
	}
	return c.storage.Write(markerKey, data)
}

// Forget clears the cached marker. Called when the provider confirms the
// absence of an identity.
func (c *Cache) Forget() error {
	return c.storage.Remove(markerKey)
}

// AnonymousID returns the device's stable anonymous identity id, creating
// and persisting one on first use. The id survives until ClearAnonymousID.
func AnonymousID(storage MarkerStorage) (string, error) {
	data, err := storage.Read(anonymousKey)
	if err != nil {
		return "", fmt.Errorf("read anonymous id: %w", err)
	}
	if len(data) > 0 {
		return string(data), nil
	}

	id := "guest-" + uuid.NewString()
	if err := storage.Write(anonymousKey, []byte(id)); err != nil {
		return "", fmt.Errorf("persist anonymous id: %w", err)
	}
	return id, nil
}

// ClearAnonymousID removes the device identity id. A fresh id is generated
// on the next AnonymousID call.
func ClearAnonymousID(storage MarkerStorage) error {
	return storage.Remove(anonymousKey)
}
