package ledger

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/angelmondragon/playfunia-backend/pkg/redis"
)

// Store is the persistence side channel of a Ledger. Load returns nil data
// when nothing was stored yet.
type Store interface {
	Load(ctx context.Context) ([]byte, error)
	Save(ctx context.Context, data []byte) error
}

// DefaultFilePath is ~/.playfunia/checkout_items.json.
func DefaultFilePath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, ".playfunia", "checkout_items.json"), nil
}

// FileStore keeps the cart in a JSON file. Saves write a temp file in the
// same directory and rename it over the target.
type FileStore struct {
	path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (f *FileStore) Load(context.Context) ([]byte, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	return data, err
}

func (f *FileStore) Save(_ context.Context, data []byte) error {
	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("mkdir %q: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, ".checkout_items-*.json")
	if err != nil {
		return fmt.Errorf("create temp cart file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp cart file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp cart file: %w", err)
	}
	return os.Rename(tmp.Name(), f.path)
}

// RedisStore keeps the cart under pfn:cart:<owner>, shared by every process
// serving that owner (a kiosk terminal or a customer).
type RedisStore struct {
	client *redis.Client
	key    string
}

func NewRedisStore(client *redis.Client, owner string) (*RedisStore, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	if owner == "" {
		return nil, errors.New("cart owner is required")
	}
	return &RedisStore{client: client, key: client.CartKey(owner)}, nil
}

func (r *RedisStore) Key() string { return r.key }

func (r *RedisStore) Load(ctx context.Context) ([]byte, error) {
	value, err := r.client.Get(ctx, r.key)
	if errors.Is(err, redis.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return []byte(value), nil
}

func (r *RedisStore) Save(ctx context.Context, data []byte) error {
	return r.client.Set(ctx, r.key, string(data), 0)
}

// MemoryStore holds the document in memory.
type MemoryStore struct {
	mu   sync.Mutex
	data []byte
	err  error
}

func NewMemoryStore(initial []byte) *MemoryStore {
	return &MemoryStore{data: append([]byte(nil), initial...)}
}

// FailWith makes subsequent saves return err.
func (m *MemoryStore) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

func (m *MemoryStore) Load(context.Context) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data == nil {
		return nil, nil
	}
	return append([]byte(nil), m.data...), nil
}

func (m *MemoryStore) Save(_ context.Context, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.data = append([]byte(nil), data...)
	return nil
}

func (m *MemoryStore) Bytes() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]byte(nil), m.data...)
}
