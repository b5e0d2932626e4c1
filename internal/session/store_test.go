package session

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/angelmondragon/packfinderz-storefront/pkg/config"
	"github.com/angelmondragon/packfinderz-storefront/pkg/redis"
	"github.com/angelmondragon/packfinderz-storefront/pkg/security"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var cheapArgon = config.PasswordConfig{ArgonMemoryKB: 64, ArgonTime: 1, ArgonParallelism: 1, ArgonSaltLen: 16}

type failingKV struct {
	MemoryKV
	failSet bool
	failGet bool
}

func newFailingKV() *failingKV {
	return &failingKV{MemoryKV: MemoryKV{data: make(map[string]string)}}
}

func (f *failingKV) Get(ctx context.Context, key string) (string, bool, error) {
	if f.failGet {
		return "", false, errors.New("storage unavailable")
	}
	return f.MemoryKV.Get(ctx, key)
}

func (f *failingKV) Set(ctx context.Context, key, value string) error {
	if f.failSet {
		return errors.New("quota exceeded")
	}
	return f.MemoryKV.Set(ctx, key, value)
}

var customer = Session{Token: "tok-1", User: User{ID: "u1", Name: "Ana", Email: "ana@example.com", Role: RoleCustomer}}
var adminUser = Session{Token: "tok-admin", User: User{ID: "a1", Name: "Root", Email: "root@example.com", Role: RoleAdmin}}

func backends(t *testing.T) map[string]KV {
	t.Helper()
	dir := t.TempDir()

	sealer, err := security.NewSealer("pass", cheapArgon)
	require.NoError(t, err)
	encrypted, err := NewEncryptedFileKV(filepath.Join(dir, "enc", "session.bin"), sealer)
	require.NoError(t, err)

	mr := miniredis.RunT(t)
	client := redis.NewFromRaw(goredis.NewClient(&goredis.Options{Addr: mr.Addr()}), "test")
	t.Cleanup(func() { _ = client.Close() })

	return map[string]KV{
		"memory":    NewMemoryKV(),
		"file":      NewFileKV(filepath.Join(dir, "plain", "session.json")),
		"encrypted": encrypted,
		"redis":     NewRedisKV(client),
	}
}

func TestStoreRoundTripAcrossBackends(t *testing.T) {
	for name, kv := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			store := NewStore(kv, nil)

			assert.Nil(t, store.LoadAuth(ctx))
			require.True(t, store.SaveAuth(ctx, customer))

			got := store.LoadAuth(ctx)
			require.NotNil(t, got)
			assert.Equal(t, customer, *got)

			store.ClearAuth(ctx)
			assert.Nil(t, store.LoadAuth(ctx))
		})
	}
}

func TestStoreLoadAuthReturnsNilOnCorruptUser(t *testing.T) {
	ctx := context.Background()
	kv := NewMemoryKV()
	require.NoError(t, kv.Set(ctx, keyAuthToken, "tok"))
	require.NoError(t, kv.Set(ctx, keyAuthUser, "{not json"))

	assert.Nil(t, NewStore(kv, nil).LoadAuth(ctx))
}

func TestStoreLoadAuthReturnsNilOnCorruptFile(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "session.json")
	require.NoError(t, os.WriteFile(path, []byte("garbage"), 0o600))

	store := NewStore(NewFileKV(path), nil)
	assert.Nil(t, store.LoadAuth(ctx))

	require.True(t, store.SaveAuth(ctx, customer), "a corrupt file is replaced on save")
	assert.NotNil(t, store.LoadAuth(ctx))
}

func TestStoreLoadAuthReturnsNilOnReadFailure(t *testing.T) {
	kv := newFailingKV()
	store := NewStore(kv, nil)
	require.True(t, store.SaveAuth(context.Background(), customer))

	kv.failGet = true
	assert.Nil(t, store.LoadAuth(context.Background()))
}

func TestStoreSaveAuthReportsFailure(t *testing.T) {
	kv := newFailingKV()
	kv.failSet = true
	store := NewStore(kv, nil)

	assert.False(t, store.SaveAuth(context.Background(), customer))
	assert.False(t, store.SaveAuth(context.Background(), Session{}), "empty token is never saved")
}

func TestStoreAdminKeyspaceIsGatedOnRole(t *testing.T) {
	ctx := context.Background()
	kv := NewMemoryKV()
	store := NewStore(kv, nil)

	assert.False(t, store.SaveAdminAuth(ctx, customer))
	assert.Nil(t, store.LoadAdminAuth(ctx))

	require.True(t, store.SaveAdminAuth(ctx, adminUser))
	got := store.LoadAdminAuth(ctx)
	require.NotNil(t, got)
	assert.Equal(t, "tok-admin", got.Token)

	_, ok, _ := kv.Get(ctx, keyAuthToken)
	assert.False(t, ok, "admin save must not touch the user keyspace")

	store.ClearAdminAuth(ctx)
	assert.Nil(t, store.LoadAdminAuth(ctx))
}

func TestFileKVWritesPrivateFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "session.json")
	kv := NewFileKV(path)
	require.NoError(t, kv.Set(context.Background(), "k", "v"))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not be left behind")
}

func TestEncryptedFileKVDoesNotStorePlaintext(t *testing.T) {
	sealer, err := security.NewSealer("pass", cheapArgon)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "session.bin")
	kv, err := NewEncryptedFileKV(path, sealer)
	require.NoError(t, err)

	require.NoError(t, kv.Set(context.Background(), keyAuthToken, "very-secret-token"))
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.False(t, strings.Contains(string(raw), "very-secret-token"))

	other, err := security.NewSealer("wrong", cheapArgon)
	require.NoError(t, err)
	wrongKV, err := NewEncryptedFileKV(path, other)
	require.NoError(t, err)
	assert.Nil(t, NewStore(wrongKV, nil).LoadAuth(context.Background()))
}

func TestNewEncryptedFileKVRequiresSealer(t *testing.T) {
	_, err := NewEncryptedFileKV("x", nil)
	assert.Error(t, err)
}
