package experiments

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// IdentityStore provides the durable anonymous identity experiments bucket
// on. The identity survives restarts of the embedding application so a
// returning participant keeps their variant.
type IdentityStore interface {
	// Identity returns the stored identity, creating and persisting a new
	// one on first use.
	Identity(ctx context.Context) (string, error)
}

// NewAnonymousID generates a fresh anonymous identity. The timestamp prefix
// keeps identities sortable by creation time.
func NewAnonymousID() string {
	return fmt.Sprintf("%020d-%s", time.Now().UnixNano(), uuid.NewString())
}

// FileStore persists the identity in a file. It is the default store for
// embedded use.
type FileStore struct {
	mu   sync.Mutex
	path string
}

// NewFileStore creates a store backed by the file at path
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Identity implements IdentityStore
func (s *FileStore) Identity(_ context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err == nil {
		if id := strings.TrimSpace(string(data)); id != "" {
			return id, nil
		}
	} else if !os.IsNotExist(err) {
		return "", fmt.Errorf("failed to read identity file %s: %w", s.path, err)
	}

	id := NewAnonymousID()
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return "", fmt.Errorf("failed to create identity directory: %w", err)
	}
	if err := os.WriteFile(s.path, []byte(id+"\n"), 0o600); err != nil {
		return "", fmt.Errorf("failed to write identity file %s: %w", s.path, err)
	}
	return id, nil
}

// RedisStore persists the identity in Redis, for hosts that share identity
// across processes. The first writer wins; every reader then agrees.
type RedisStore struct {
	client *redis.Client
	key    string
}

// NewRedisStore creates a store using the given client and key
func NewRedisStore(client *redis.Client, key string) *RedisStore {
	return &RedisStore{client: client, key: key}
}

// Identity implements IdentityStore
func (s *RedisStore) Identity(ctx context.Context) (string, error) {
	candidate := NewAnonymousID()
	// SETNX then GET: if another process raced us, its identity sticks
	if err := s.client.SetNX(ctx, s.key, candidate, 0).Err(); err != nil {
		return "", fmt.Errorf("failed to reserve identity key %s: %w", s.key, err)
	}
	id, err := s.client.Get(ctx, s.key).Result()
	if err != nil {
		return "", fmt.Errorf("failed to read identity key %s: %w", s.key, err)
	}
	return id, nil
}

// MemoryStore holds the identity in memory. Intended for tests.
type MemoryStore struct {
	mu sync.Mutex
	id string
}

// NewMemoryStore creates a store with the given identity; an empty id is
// generated lazily on first use.
func NewMemoryStore(id string) *MemoryStore {
	return &MemoryStore{id: id}
}

// Identity implements IdentityStore
func (s *MemoryStore) Identity(_ context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.id == "" {
		s.id = NewAnonymousID()
	}
	return s.id, nil
}
