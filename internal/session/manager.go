package session

import (
	"context"
	"strings"
	"sync"

	pkgerrors "github.com/angelmondragon/packfinderz-storefront/pkg/errors"
	"github.com/angelmondragon/packfinderz-storefront/pkg/logger"
)

// Event names a session transition delivered to listeners.
type Event string

const (
	EventLogin     Event = "auth:login"
	EventRestore   Event = "auth:restore"
	EventLogout    Event = "auth:logout"
	EventForbidden Event = "auth:forbidden"
)

// Change describes one transition. Session is a copy and nil when signed out.
type Change struct {
	Event         Event
	Authenticated bool
	Session       *Session
}

// Listener is notified synchronously, in registration order, before the
// transition method returns. Listeners must not call back into Login, Logout,
// Invalidate or Forbidden from inside the callback.
type Listener interface {
	OnSessionChange(ctx context.Context, change Change)
}

// ListenerFunc adapts a function to Listener.
type ListenerFunc func(ctx context.Context, change Change)

func (f ListenerFunc) OnSessionChange(ctx context.Context, change Change) {
	f(ctx, change)
}

type registration struct {
	id       int
	listener Listener
}

// Manager owns the single active session of the agent process.
type Manager struct {
	store Store
	logg  *logger.Logger

	// signalMu serializes transitions together with their notifications.
	signalMu sync.Mutex

	mu        sync.RWMutex
	current   *Session
	admin     *Session
	persisted bool

	listenersMu sync.Mutex
	listeners   []registration
	nextID      int
}

// NewManager builds a manager over store. A nil store keeps sessions in memory.
func NewManager(store Store, logg *logger.Logger) *Manager {
	return &Manager{store: store, logg: logg}
}

// Subscribe registers l and returns a function that removes it.
func (m *Manager) Subscribe(l Listener) func() {
	m.listenersMu.Lock()
	defer m.listenersMu.Unlock()
	m.nextID++
	id := m.nextID
	m.listeners = append(m.listeners, registration{id: id, listener: l})
	return func() {
		m.listenersMu.Lock()
		defer m.listenersMu.Unlock()
		for i, reg := range m.listeners {
			if reg.id == id {
				m.listeners = append(m.listeners[:i], m.listeners[i+1:]...)
				return
			}
		}
	}
}

// Token returns the current bearer token or "" when signed out.
func (m *Manager) Token() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.current == nil {
		return ""
	}
	return m.current.Token
}

// Current returns a copy of the active session.
func (m *Manager) Current() *Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return copySession(m.current)
}

// Admin returns a copy of the active admin session.
func (m *Manager) Admin() *Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return copySession(m.admin)
}

// Authenticated reports whether a session is active.
func (m *Manager) Authenticated() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current.Valid()
}

// Persisted reports whether the active session reached the store.
func (m *Manager) Persisted() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.persisted
}

// Restore loads a previously persisted session. It reports whether one was found.
func (m *Manager) Restore(ctx context.Context) bool {
	if m.store == nil {
		return false
	}
	m.signalMu.Lock()
	defer m.signalMu.Unlock()

	sess := m.store.LoadAuth(ctx)
	if !sess.Valid() {
		return false
	}
	admin := m.store.LoadAdminAuth(ctx)
	if admin != nil && admin.Token != sess.Token {
		admin = nil
	}

	m.mu.Lock()
	m.current = sess
	m.admin = admin
	m.persisted = true
	m.mu.Unlock()

	m.info(ctx, sess, "session.restored")
	m.notify(ctx, Change{Event: EventRestore, Authenticated: true, Session: copySession(sess)})
	return true
}

// Login activates sess and persists it. Admin users populate both keyspaces.
// When persistence fails the session stays active in memory and persisted is false.
func (m *Manager) Login(ctx context.Context, sess Session) (bool, error) {
	sess.Token = strings.TrimSpace(sess.Token)
	if !sess.Valid() {
		return false, pkgerrors.New(pkgerrors.CodeValidation, "token is required")
	}

	m.signalMu.Lock()
	defer m.signalMu.Unlock()

	var persisted bool
	if m.store != nil {
		persisted = m.store.SaveAuth(ctx, sess)
		if sess.User.IsAdmin() {
			persisted = m.store.SaveAdminAuth(ctx, sess) && persisted
		} else {
			m.store.ClearAdminAuth(ctx)
		}
	}

	active := sess
	var admin *Session
	if sess.User.IsAdmin() {
		adminCopy := sess
		admin = &adminCopy
	}

	m.mu.Lock()
	m.current = &active
	m.admin = admin
	m.persisted = persisted
	m.mu.Unlock()

	if !persisted && m.logg != nil {
		m.logg.Warn(m.logg.WithUserID(ctx, sess.User.ID), "session.persist_failed_memory_only")
	}
	m.info(ctx, &active, "session.login")
	m.notify(ctx, Change{Event: EventLogin, Authenticated: true, Session: copySession(&active)})
	return persisted, nil
}

// Logout is the auth:logout signal. The session is cleared and every listener
// has run before it returns.
func (m *Manager) Logout(ctx context.Context) {
	m.signalMu.Lock()
	defer m.signalMu.Unlock()
	m.logoutLocked(ctx)
}

// Invalidate runs the logout path when token is still the active token. A
// rejected token from an earlier session does not end a newer one.
func (m *Manager) Invalidate(ctx context.Context, token string) bool {
	m.signalMu.Lock()
	defer m.signalMu.Unlock()

	if token == "" || m.Token() != token {
		return false
	}
	if m.logg != nil {
		m.logg.Warn(ctx, "session.invalidated")
	}
	m.logoutLocked(ctx)
	return true
}

// Forbidden is the auth:forbidden signal. Only admin state is cleared.
func (m *Manager) Forbidden(ctx context.Context) {
	m.signalMu.Lock()
	defer m.signalMu.Unlock()

	if m.store != nil {
		m.store.ClearAdminAuth(ctx)
	}
	m.mu.Lock()
	m.admin = nil
	current := copySession(m.current)
	m.mu.Unlock()

	m.info(ctx, current, "session.forbidden")
	m.notify(ctx, Change{Event: EventForbidden, Authenticated: current.Valid(), Session: current})
}

func (m *Manager) logoutLocked(ctx context.Context) {
	m.mu.Lock()
	previous := m.current
	m.current = nil
	m.admin = nil
	m.persisted = false
	m.mu.Unlock()

	if m.store != nil {
		m.store.ClearAuth(ctx)
		m.store.ClearAdminAuth(ctx)
	}

	m.info(ctx, previous, "session.logout")
	m.notify(ctx, Change{Event: EventLogout, Authenticated: false})
}

func (m *Manager) notify(ctx context.Context, change Change) {
	m.listenersMu.Lock()
	snapshot := make([]Listener, 0, len(m.listeners))
	for _, reg := range m.listeners {
		snapshot = append(snapshot, reg.listener)
	}
	m.listenersMu.Unlock()

	for _, l := range snapshot {
		l.OnSessionChange(ctx, change)
	}
}

func (m *Manager) info(ctx context.Context, sess *Session, msg string) {
	if m.logg == nil {
		return
	}
	if sess != nil {
		ctx = m.logg.WithUserID(ctx, sess.User.ID)
	}
	m.logg.Info(ctx, msg)
}

func copySession(sess *Session) *Session {
	if sess == nil {
		return nil
	}
	clone := *sess
	return &clone
}
