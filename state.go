package access

import (
	"context"
	"sync"
)

// AuthSnapshot is the state store's answer to "who is logged in right now".
// Loading is true only while the initial session probe is outstanding.
type AuthSnapshot struct {
	User    *User
	Session *ProviderSession
	Loading bool
}

// StateStore mirrors the auth backend's current session. It is the single
// source of truth for the real (non-impersonated) identity.
type StateStore struct {
	client AuthClient
	tokens TokenCache
	logger Logger

	mu          sync.Mutex
	user        *User
	session     *ProviderSession
	loading     bool
	unsubscribe func()
	started     bool
	signOutHook []func()
}

// StateStoreOption customizes state store construction.
type StateStoreOption func(*StateStore)

// WithStateStoreLogger overrides the logger.
func WithStateStoreLogger(logger Logger) StateStoreOption {
	return func(s *StateStore) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithStateStoreTokenCache overrides the local token cache.
func WithStateStoreTokenCache(cache TokenCache) StateStoreOption {
	return func(s *StateStore) {
		if cache != nil {
			s.tokens = cache
		}
	}
}

// NewStateStore returns an unstarted store bound to the auth client.
func NewStateStore(client AuthClient, opts ...StateStoreOption) *StateStore {
	s := &StateStore{
		client:  client,
		tokens:  NewMemoryTokenCache(),
		logger:  defLogger{},
		loading: true,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	return s
}

// Start registers the auth-state-change listener and independently probes
// the current session. The two paths race by design: both write the same
// idempotent snapshot, and loading flips false exactly once on whichever
// lands first. A probe failure is treated as signed out, never as an
// authenticated fallback.
func (s *StateStore) Start(ctx context.Context) {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return
	}
	s.started = true
	s.mu.Unlock()

	s.unsubscribe = s.client.OnAuthStateChange(s.handleAuthChange)

	session, err := s.client.GetSession(ctx)
	if err != nil {
		s.logger.Warn("initial session probe failed, treating as signed out", "error", err)
		s.applySnapshot(nil)
		return
	}

	s.applySnapshot(session)
}

// Close unsubscribes the auth-state listener. Snapshot reads remain valid.
func (s *StateStore) Close() {
	s.mu.Lock()
	unsub := s.unsubscribe
	s.unsubscribe = nil
	s.mu.Unlock()

	if unsub != nil {
		unsub()
	}
}

// Snapshot returns the current auth state.
func (s *StateStore) Snapshot() AuthSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return AuthSnapshot{
		User:    s.user,
		Session: s.session,
		Loading: s.loading,
	}
}

// CurrentUser returns the real authenticated user, if any.
func (s *StateStore) CurrentUser() (*User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.user, s.user != nil
}

// Tokens exposes the local token cache shared with Actions.
func (s *StateStore) Tokens() TokenCache {
	return s.tokens
}

// OnSignOut registers a hook invoked after the store observes a sign-out.
// Used to clear state that must not leak across accounts (impersonation).
func (s *StateStore) OnSignOut(hook func()) {
	if hook == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.signOutHook = append(s.signOutHook, hook)
}

func (s *StateStore) handleAuthChange(event AuthChangeEvent, session *ProviderSession) {
	if event == AuthEventSignedOut {
		// local credential cleanup happens before the state update
		s.tokens.Clear()
		s.applySnapshot(nil)

		s.mu.Lock()
		hooks := append([]func(){}, s.signOutHook...)
		s.mu.Unlock()

		for _, hook := range hooks {
			hook()
		}
		return
	}

	s.applySnapshot(session)
}

// applySnapshot installs a session snapshot, last-write-wins. It also
// flips loading to false the first time any snapshot lands.
func (s *StateStore) applySnapshot(session *ProviderSession) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.loading = false
	if session == nil {
		s.user = nil
		s.session = nil
		return
	}

	user := session.User
	s.user = &user
	s.session = session
}

// MemoryTokenCache is a process-local TokenCache.
type MemoryTokenCache struct {
	mu     sync.Mutex
	values map[string]string
}

// NewMemoryTokenCache returns an empty cache.
func NewMemoryTokenCache() *MemoryTokenCache {
	return &MemoryTokenCache{values: map[string]string{}}
}

func (m *MemoryTokenCache) Set(name, value string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[name] = value
}

func (m *MemoryTokenCache) Get(name string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[name]
	return v, ok
}

func (m *MemoryTokenCache) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values = map[string]string{}
}

var _ TokenCache = (*MemoryTokenCache)(nil)
