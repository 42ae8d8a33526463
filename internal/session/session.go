// Package session holds the admin bearer/refresh token pair for a browser and
// announces when that pair is discarded.
package session

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/wolfman30/docbook-web/pkg/logging"
)

// Field names the token pair is persisted under.
const (
	AccessTokenKey  = "adminToken"
	RefreshTokenKey = "adminRefreshToken"
)

// Reasons reported in Ended.
const (
	ReasonLogout  = "logout"
	ReasonExpired = "expired"
)

// Tokens is the credential pair issued by the backend at login.
type Tokens struct {
	Access  string
	Refresh string
}

// Store persists token pairs keyed by session id. A missing id loads as an
// empty pair.
type Store interface {
	Load(ctx context.Context, id string) (Tokens, error)
	Save(ctx context.Context, id string, tokens Tokens) error
	Clear(ctx context.Context, id string) error
}

// Ended describes a session whose tokens were discarded.
type Ended struct {
	SessionID string
	Reason    string
}

// Listener is notified every time a session ends.
type Listener func(ctx context.Context, ev Ended)

// Manager opens session handles and is the single notification point for
// "session ended".
type Manager struct {
	store  Store
	guard  Guard
	logger *logging.Logger

	mu        sync.RWMutex
	listeners []Listener
}

// NewManager creates a manager over store. A store that also implements
// Guard backs Session.Claim; otherwise claims live in process memory.
func NewManager(store Store, logger *logging.Logger) *Manager {
	if store == nil {
		panic("session: store required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	guard, ok := store.(Guard)
	if !ok {
		guard = NewMemoryGuard()
	}
	return &Manager{store: store, guard: guard, logger: logger}
}

// OnEnded registers a listener for ended sessions.
func (m *Manager) OnEnded(fn Listener) {
	if fn == nil {
		return
	}
	m.mu.Lock()
	m.listeners = append(m.listeners, fn)
	m.mu.Unlock()
}

// Open loads the session for id. A blank or malformed id gets a fresh one.
// An unknown id is kept so anonymous browsers hold a stable id; it never
// becomes authenticated because SaveTokens moves the tokens to a new id.
func (m *Manager) Open(ctx context.Context, id string) (*Session, error) {
	id = strings.TrimSpace(id)
	if _, err := uuid.Parse(id); err != nil {
		return &Session{id: uuid.NewString(), manager: m, fresh: true}, nil
	}
	tokens, err := m.store.Load(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("session: load %s: %w", id, err)
	}
	return &Session{id: id, manager: m, tokens: tokens}, nil
}

func (m *Manager) notify(ctx context.Context, ev Ended) {
	m.mu.RLock()
	listeners := append([]Listener(nil), m.listeners...)
	m.mu.RUnlock()
	for _, fn := range listeners {
		fn(ctx, ev)
	}
}

// Session is the token pair of one browser.
type Session struct {
	id      string
	manager *Manager
	fresh   bool

	mu       sync.RWMutex
	tokens   Tokens
	onRotate func(id string)
}

// ID returns the opaque session id carried in the cookie.
func (s *Session) ID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.id
}

// Fresh reports whether the id was minted for this request.
func (s *Session) Fresh() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.fresh
}

// OnRotate registers fn to receive the new id when SaveTokens replaces it.
func (s *Session) OnRotate(fn func(id string)) {
	s.mu.Lock()
	s.onRotate = fn
	s.mu.Unlock()
}

// IsAuthenticated is true iff an access token is present. Expiry is not
// checked here; the backend reports it with a 401.
func (s *Session) IsAuthenticated() bool {
	return s.AccessToken() != ""
}

func (s *Session) AccessToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tokens.Access
}

func (s *Session) RefreshToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tokens.Refresh
}

// SaveTokens stores the pair returned by a successful login under a newly
// minted id and drops whatever the old id held.
func (s *Session) SaveTokens(ctx context.Context, access, refresh string) error {
	tokens := Tokens{Access: access, Refresh: refresh}
	newID := uuid.NewString()
	if err := s.manager.store.Save(ctx, newID, tokens); err != nil {
		return fmt.Errorf("session: save tokens: %w", err)
	}

	s.mu.Lock()
	oldID := s.id
	s.id = newID
	s.tokens = tokens
	s.fresh = false
	onRotate := s.onRotate
	s.mu.Unlock()

	if err := s.manager.store.Clear(ctx, oldID); err != nil {
		s.manager.logger.Warn("failed to clear previous session id", "session_id", oldID, "error", err)
	}
	if onRotate != nil {
		onRotate(newID)
	}
	return nil
}

// Claim marks action as running for this browser until release is called or
// ttl passes. ok is false while an earlier claim on the same action is held.
func (s *Session) Claim(ctx context.Context, action string, ttl time.Duration) (release func(), ok bool, err error) {
	key := s.ID() + ":" + action
	ok, err = s.manager.guard.Claim(ctx, key, ttl)
	if err != nil {
		return func() {}, false, fmt.Errorf("session: claim %s: %w", action, err)
	}
	if !ok {
		return func() {}, false, nil
	}
	release = func() {
		if err := s.manager.guard.Release(context.WithoutCancel(ctx), key); err != nil {
			s.manager.logger.Warn("failed to release claim", "action", action, "error", err)
		}
	}
	return release, true, nil
}

// Logout clears both tokens. Callers send the browser to the login page.
func (s *Session) Logout(ctx context.Context) error {
	return s.end(ctx, ReasonLogout)
}

// Expire clears both tokens after the backend rejected the access token.
func (s *Session) Expire(ctx context.Context) error {
	return s.end(ctx, ReasonExpired)
}

func (s *Session) end(ctx context.Context, reason string) error {
	s.mu.Lock()
	s.tokens = Tokens{}
	id := s.id
	s.mu.Unlock()

	err := s.manager.store.Clear(ctx, id)
	if err != nil {
		s.manager.logger.Error("failed to clear session", "session_id", id, "error", err)
		err = fmt.Errorf("session: clear: %w", err)
	}
	s.manager.notify(ctx, Ended{SessionID: id, Reason: reason})
	return err
}
