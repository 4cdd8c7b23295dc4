// Package session holds the authenticated gateway session as an explicit value.
//
// A [Store] is created by the caller and handed to whatever needs it (gateway clients, the
// HTTP server, the CLI). Components interested in login/logout register with [Store.OnChange]
// instead of reading shared package state.
//
// A request-scoped [Session] can also travel in a [context.Context] via [NewContext]; gateway
// clients prefer it over their store so one server process can act for many signed-in admins.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/lestrrat-go/jwx/v3/jwt"

	"github.com/desertthunder/cardquiz/internal/models"
)

// Session is a gateway auth token and the account it belongs to.
type Session struct {
	Token     string      `json:"token"`
	User      models.User `json:"record"`
	ExpiresAt time.Time   `json:"expiresAt"`
}

// New builds a session, reading the expiry from the token's exp claim when it is a JWT.
func New(token string, user models.User) *Session {
	return &Session{Token: token, User: user, ExpiresAt: TokenExpiry(token)}
}

// Valid reports whether the session has a token that has not expired.
// A zero ExpiresAt means the token carries no expiry.
func (s *Session) Valid(now time.Time) bool {
	if s == nil || s.Token == "" {
		return false
	}
	return s.ExpiresAt.IsZero() || now.Before(s.ExpiresAt)
}

// TokenExpiry extracts the exp claim without verifying the signature.
// The signature is checked by whoever issued the token; this only tells us when to re-login.
func TokenExpiry(token string) time.Time {
	if token == "" {
		return time.Time{}
	}
	tok, err := jwt.ParseInsecure([]byte(token))
	if err != nil {
		return time.Time{}
	}
	exp, ok := tok.Expiration()
	if !ok {
		return time.Time{}
	}
	return exp
}

// ChangeFunc is called with the new session, or nil after a logout.
type ChangeFunc func(*Session)

// Store is the current session plus its change subscribers. The zero value is ready to use.
type Store struct {
	mu      sync.RWMutex
	current *Session
	subs    map[int]ChangeFunc
	nextID  int
	now     func() time.Time
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{}
}

// Current returns a copy of the current session or nil.
func (s *Store) Current() *Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return nil
	}
	cp := *s.current
	return &cp
}

// Token returns the current token or "".
func (s *Store) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return ""
	}
	return s.current.Token
}

// IsValid reports whether the stored session exists and has not expired.
func (s *Store) IsValid() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.Valid(s.clock())
}

// Save replaces the session and notifies subscribers.
func (s *Store) Save(sess *Session) {
	s.mu.Lock()
	if sess != nil {
		cp := *sess
		sess = &cp
	}
	s.current = sess
	subs := s.snapshot()
	s.mu.Unlock()

	for _, fn := range subs {
		fn(sess)
	}
}

// Clear drops the session and notifies subscribers with nil.
func (s *Store) Clear() {
	s.Save(nil)
}

// OnChange registers fn and returns a function that unregisters it.
func (s *Store) OnChange(fn ChangeFunc) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.subs == nil {
		s.subs = make(map[int]ChangeFunc)
	}
	id := s.nextID
	s.nextID++
	s.subs[id] = fn

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs, id)
	}
}

func (s *Store) snapshot() []ChangeFunc {
	fns := make([]ChangeFunc, 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	return fns
}

func (s *Store) clock() time.Time {
	if s.now != nil {
		return s.now()
	}
	return time.Now()
}

type ctxKey struct{}

// NewContext returns a context carrying sess.
func NewContext(ctx context.Context, sess *Session) context.Context {
	return context.WithValue(ctx, ctxKey{}, sess)
}

// FromContext returns the session carried by ctx, if any.
func FromContext(ctx context.Context) (*Session, bool) {
	sess, ok := ctx.Value(ctxKey{}).(*Session)
	return sess, ok && sess != nil
}
