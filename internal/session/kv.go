package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/angelmondragon/packfinderz-storefront/pkg/redis"
	"go.uber.org/multierr"
)

const (
	fileMode os.FileMode = 0o600
	dirMode  os.FileMode = 0o700
)

// KV is the string key-value surface the session store persists into.
type KV interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, keys ...string) error
}

// MemoryKV keeps entries for the life of the process only.
type MemoryKV struct {
	mu   sync.RWMutex
	data map[string]string
}

func NewMemoryKV() *MemoryKV {
	return &MemoryKV{data: make(map[string]string)}
}

func (m *MemoryKV) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	value, ok := m.data[key]
	return value, ok, nil
}

func (m *MemoryKV) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *MemoryKV) Delete(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, key := range keys {
		delete(m.data, key)
	}
	return nil
}

// Sealer encrypts the file contents of an encrypted file store.
type Sealer interface {
	Seal(plaintext []byte) (string, error)
	Open(encoded string) ([]byte, error)
}

// FileKV stores all entries as one JSON document, replaced atomically on write.
type FileKV struct {
	mu     sync.Mutex
	path   string
	sealer Sealer
}

// NewFileKV persists entries as plain JSON at path.
func NewFileKV(path string) *FileKV {
	return &FileKV{path: path}
}

// NewEncryptedFileKV persists entries sealed with sealer.
func NewEncryptedFileKV(path string, sealer Sealer) (*FileKV, error) {
	if sealer == nil {
		return nil, errors.New("sealer is required for an encrypted session file")
	}
	return &FileKV{path: path, sealer: sealer}, nil
}

// Path returns the backing file location.
func (f *FileKV) Path() string {
	return f.path
}

func (f *FileKV) Get(_ context.Context, key string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	values, err := f.load()
	if err != nil {
		return "", false, err
	}
	value, ok := values[key]
	return value, ok, nil
}

func (f *FileKV) Set(_ context.Context, key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	values, err := f.load()
	if err != nil && !errors.Is(err, errCorruptFile) {
		return err
	}
	if values == nil {
		values = make(map[string]string)
	}
	values[key] = value
	return f.store(values)
}

func (f *FileKV) Delete(_ context.Context, keys ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	values, err := f.load()
	if err != nil && !errors.Is(err, errCorruptFile) {
		return err
	}
	if values == nil {
		values = make(map[string]string)
	}
	for _, key := range keys {
		delete(values, key)
	}
	return f.store(values)
}

var errCorruptFile = errors.New("session file is corrupt")

func (f *FileKV) load() (map[string]string, error) {
	raw, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read session file: %w", err)
	}
	if len(raw) == 0 {
		return map[string]string{}, nil
	}
	if f.sealer != nil {
		raw, err = f.sealer.Open(string(raw))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", errCorruptFile, err)
		}
	}
	values := make(map[string]string)
	if err := json.Unmarshal(raw, &values); err != nil {
		return nil, fmt.Errorf("%w: %v", errCorruptFile, err)
	}
	return values, nil
}

func (f *FileKV) store(values map[string]string) (err error) {
	payload, err := json.Marshal(values)
	if err != nil {
		return fmt.Errorf("encode session file: %w", err)
	}
	if f.sealer != nil {
		sealed, err := f.sealer.Seal(payload)
		if err != nil {
			return fmt.Errorf("seal session file: %w", err)
		}
		payload = []byte(sealed)
	}

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, dirMode); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".session-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp session file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			err = multierr.Append(err, ignoreNotExist(os.Remove(tmpName)))
		}
	}()

	if err := tmp.Chmod(fileMode); err != nil {
		return multierr.Append(fmt.Errorf("chmod temp session file: %w", err), tmp.Close())
	}
	if _, err := tmp.Write(payload); err != nil {
		return multierr.Append(fmt.Errorf("write temp session file: %w", err), tmp.Close())
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp session file: %w", err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		return fmt.Errorf("replace session file: %w", err)
	}
	return nil
}

func ignoreNotExist(err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

type redisStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	SessionKey(name string) string
}

// RedisKV stores session entries under the client's session namespace.
type RedisKV struct {
	store redisStore
}

func NewRedisKV(client *redis.Client) *RedisKV {
	return &RedisKV{store: client}
}

func (r *RedisKV) Get(ctx context.Context, key string) (string, bool, error) {
	value, err := r.store.Get(ctx, r.store.SessionKey(key))
	if err != nil {
		if redis.IsNil(err) {
			return "", false, nil
		}
		return "", false, err
	}
	return value, true, nil
}

func (r *RedisKV) Set(ctx context.Context, key, value string) error {
	return r.store.Set(ctx, r.store.SessionKey(key), value, 0)
}

func (r *RedisKV) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	namespaced := make([]string, 0, len(keys))
	for _, key := range keys {
		namespaced = append(namespaced, r.store.SessionKey(key))
	}
	return r.store.Del(ctx, namespaced...)
}
