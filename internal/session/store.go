package session

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/angelmondragon/packfinderz-storefront/pkg/logger"
)

const (
	keyAuthToken  = "auth_token"
	keyAuthUser   = "auth_user"
	keyAdminToken = "admin_token"
	keyAdminUser  = "admin_user"
)

// Store persists the session token and user profile. Failures never surface as
// errors: loads return nil and saves return false so callers can keep an
// in-memory session instead.
type Store interface {
	SaveAuth(ctx context.Context, sess Session) bool
	LoadAuth(ctx context.Context) *Session
	ClearAuth(ctx context.Context)
	SaveAdminAuth(ctx context.Context, sess Session) bool
	LoadAdminAuth(ctx context.Context) *Session
	ClearAdminAuth(ctx context.Context)
}

type keyspace struct {
	token string
	user  string
}

var (
	userKeys  = keyspace{token: keyAuthToken, user: keyAuthUser}
	adminKeys = keyspace{token: keyAdminToken, user: keyAdminUser}
)

// KVStore implements Store over any KV backend.
type KVStore struct {
	kv   KV
	logg *logger.Logger
}

// NewStore builds a session store over kv.
func NewStore(kv KV, logg *logger.Logger) *KVStore {
	return &KVStore{kv: kv, logg: logg}
}

func (s *KVStore) SaveAuth(ctx context.Context, sess Session) bool {
	return s.save(ctx, userKeys, sess)
}

func (s *KVStore) LoadAuth(ctx context.Context) *Session {
	return s.load(ctx, userKeys)
}

func (s *KVStore) ClearAuth(ctx context.Context) {
	s.clear(ctx, userKeys)
}

// SaveAdminAuth refuses sessions whose user is not an admin.
func (s *KVStore) SaveAdminAuth(ctx context.Context, sess Session) bool {
	if !sess.User.IsAdmin() {
		return false
	}
	return s.save(ctx, adminKeys, sess)
}

// LoadAdminAuth returns nil when the stored user has lost the admin role.
func (s *KVStore) LoadAdminAuth(ctx context.Context) *Session {
	sess := s.load(ctx, adminKeys)
	if sess == nil || !sess.User.IsAdmin() {
		return nil
	}
	return sess
}

func (s *KVStore) ClearAdminAuth(ctx context.Context) {
	s.clear(ctx, adminKeys)
}

func (s *KVStore) save(ctx context.Context, keys keyspace, sess Session) bool {
	if s == nil || s.kv == nil || !sess.Valid() {
		return false
	}
	user, err := json.Marshal(sess.User)
	if err != nil {
		s.warn(ctx, keys, "session.store.encode_failed", err)
		return false
	}
	if err := s.kv.Set(ctx, keys.user, string(user)); err != nil {
		s.warn(ctx, keys, "session.store.save_failed", err)
		return false
	}
	if err := s.kv.Set(ctx, keys.token, sess.Token); err != nil {
		s.warn(ctx, keys, "session.store.save_failed", err)
		return false
	}
	return true
}

func (s *KVStore) load(ctx context.Context, keys keyspace) *Session {
	if s == nil || s.kv == nil {
		return nil
	}
	token, ok, err := s.kv.Get(ctx, keys.token)
	if err != nil {
		s.warn(ctx, keys, "session.store.load_failed", err)
		return nil
	}
	if !ok || strings.TrimSpace(token) == "" {
		return nil
	}
	rawUser, ok, err := s.kv.Get(ctx, keys.user)
	if err != nil {
		s.warn(ctx, keys, "session.store.load_failed", err)
		return nil
	}
	if !ok {
		return nil
	}
	var user User
	if err := json.Unmarshal([]byte(rawUser), &user); err != nil {
		s.warn(ctx, keys, "session.store.decode_failed", err)
		return nil
	}
	return &Session{Token: token, User: user}
}

func (s *KVStore) clear(ctx context.Context, keys keyspace) {
	if s == nil || s.kv == nil {
		return
	}
	if err := s.kv.Delete(ctx, keys.token, keys.user); err != nil {
		s.warn(ctx, keys, "session.store.clear_failed", err)
	}
}

func (s *KVStore) warn(ctx context.Context, keys keyspace, msg string, err error) {
	if s.logg == nil {
		return
	}
	ctx = s.logg.WithFields(ctx, map[string]any{
		"keyspace": keys.token,
		"error":    err.Error(),
	})
	s.logg.Warn(ctx, msg)
}
