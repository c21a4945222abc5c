package localcache

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// ErrNotFound indicates the key has no cached value.
var ErrNotFound = errors.New("localcache: not found")

// Cache stores last-known-good snapshots keyed per entity kind (and per identity for
// carts). Values are opaque strings, typically serialized JSON; corrupt payloads are a
// caller concern and must be treated as absent, never fatal.
type Cache interface {
	Get(key string) (string, error)
	Set(key, value string) error
	Remove(key string) error
}

// Memory is an in-memory cache used in tests and as a default when no directory is
// configured. Safe for concurrent use.
type Memory struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMemory constructs an empty in-memory cache.
func NewMemory() *Memory {
	return &Memory{values: make(map[string]string)}
}

// Get implements Cache.
func (m *Memory) Get(key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	value, ok := m.values[key]
	if !ok {
		return "", ErrNotFound
	}
	return value, nil
}

// Set implements Cache.
func (m *Memory) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

// Remove implements Cache.
func (m *Memory) Remove(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}

// Dir persists each key as a file under a base directory, surviving process restarts
// the way browser local storage survives page loads. Writes go through a temp file and
// rename so a crash never leaves a torn value.
type Dir struct {
	base string
	mu   sync.Mutex
}

// NewDir constructs a directory-backed cache, creating the directory when missing.
func NewDir(base string) (*Dir, error) {
	base = strings.TrimSpace(base)
	if base == "" {
		return nil, errors.New("localcache: base directory is required")
	}
	if err := os.MkdirAll(base, 0o755); err != nil {
		return nil, err
	}
	return &Dir{base: base}, nil
}

// Get implements Cache.
func (d *Dir) Get(key string) (string, error) {
	data, err := os.ReadFile(d.path(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", ErrNotFound
		}
		return "", err
	}
	return string(data), nil
}

// Set implements Cache.
func (d *Dir) Set(key, value string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	target := d.path(key)
	tmp := target + ".tmp"
	if err := os.WriteFile(tmp, []byte(value), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, target)
}

// Remove implements Cache.
func (d *Dir) Remove(key string) error {
	err := os.Remove(d.path(key))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func (d *Dir) path(key string) string {
	sum := sha256.Sum256([]byte(key))
	return filepath.Join(d.base, hex.EncodeToString(sum[:16])+".cache")
}
