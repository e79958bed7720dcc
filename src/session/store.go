package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// Persisted keys
const (
	KeyToken    = "token"
	KeyUserType = "userType"
	KeyViewMode = "viewMode"
)

// PersistedKeys are removed together on logout or invalidation
var PersistedKeys = []string{KeyToken, KeyUserType, KeyViewMode}

// ErrUnknownStoreBackend is returned by NewStore for an unsupported backend
var ErrUnknownStoreBackend = errors.New("unknown session store backend")

// Store persists the session's string-valued entries
type Store interface {
	// Get returns the value and whether it exists
	Get(ctx context.Context, key string) (string, bool, error)
	// Set stores a value
	Set(ctx context.Context, key, value string) error
	// Delete removes the keys; missing keys are not an error
	Delete(ctx context.Context, keys ...string) error
	// Close releases the backend
	Close() error
}

// StoreConfig selects and configures a Store backend
type StoreConfig struct {
	Backend    string        `yaml:"backend"` // memory, file, redis, sqlite
	File       string        `yaml:"file"`
	RedisURL   string        `yaml:"redis_url"`
	SQLitePath string        `yaml:"sqlite_path"`
	Prefix     string        `yaml:"prefix"`
	TTL        time.Duration `yaml:"ttl"` // redis only, 0 keeps keys until removed
}

// DefaultStoreConfig returns the in-memory configuration
func DefaultStoreConfig() StoreConfig {
	return StoreConfig{
		Backend: "memory",
		Prefix:  "ocv:session:",
	}
}

// NewStore opens the backend selected by cfg
func NewStore(cfg StoreConfig) (Store, error) {
	switch cfg.Backend {
	case "", "memory":
		return NewMemoryStore(), nil
	case "file":
		if cfg.File == "" {
			return nil, fmt.Errorf("file session store requires a path")
		}
		return NewFileStore(cfg.File), nil
	case "redis", "valkey":
		return NewRedisStore(cfg.RedisURL, cfg.Prefix, cfg.TTL)
	case "sqlite":
		if cfg.SQLitePath == "" {
			return nil, fmt.Errorf("sqlite session store requires a path")
		}
		return NewSQLiteStore(cfg.SQLitePath)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownStoreBackend, cfg.Backend)
	}
}

// MemoryStore keeps entries for the life of the process
type MemoryStore struct {
	mu    sync.RWMutex
	items map[string]string
}

// NewMemoryStore creates an empty memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: make(map[string]string)}
}

// Get returns the value for key
func (s *MemoryStore) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.items[key]
	return v, ok, nil
}

// Set stores value under key
func (s *MemoryStore) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[key] = value
	return nil
}

// Delete removes keys
func (s *MemoryStore) Delete(_ context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range keys {
		delete(s.items, k)
	}
	return nil
}

// Close is a no-op
func (s *MemoryStore) Close() error { return nil }
