package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/go-chi/jwtauth/v5"
	"github.com/lestrrat-go/jwx/v3/jwt"

	"github.com/desertthunder/cardquiz/internal/models"
	"github.com/desertthunder/cardquiz/internal/session"
	"github.com/desertthunder/cardquiz/internal/shared"
)

const tokenSubjectPrefix = "user:"

// LocalAuth issues HS256 session tokens for users stored in sqlite.
type LocalAuth struct {
	users *UserRepository
	store *session.Store
	ja    *jwtauth.JWTAuth
	ttl   time.Duration
}

// NewLocalAuth signs tokens with secret; they expire after ttl.
func NewLocalAuth(users *UserRepository, store *session.Store, secret string, ttl time.Duration) *LocalAuth {
	if store == nil {
		store = session.NewStore()
	}
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &LocalAuth{
		users: users,
		store: store,
		ja:    jwtauth.New("HS256", []byte(secret), nil),
		ttl:   ttl,
	}
}

func (a *LocalAuth) Login(ctx context.Context, email, password string) (*session.Session, error) {
	sess, err := a.Authenticate(ctx, email, password)
	if err != nil {
		return nil, err
	}
	a.store.Save(sess)
	return sess, nil
}

// Authenticate verifies the credentials and issues a token without saving it in the store.
func (a *LocalAuth) Authenticate(ctx context.Context, email, password string) (*session.Session, error) {
	if email == "" || password == "" {
		return nil, fmt.Errorf("%w: email and password are required", shared.ErrValidation)
	}
	user, err := a.users.Verify(ctx, email, password)
	if err != nil {
		return nil, err
	}
	return a.issue(user)
}

// Refresh re-issues the current token if it still verifies.
func (a *LocalAuth) Refresh(ctx context.Context) (*session.Session, error) {
	tok := a.store.Token()
	if sess, ok := session.FromContext(ctx); ok {
		tok = sess.Token
	}
	if tok == "" {
		return nil, shared.ErrNotAuthenticated
	}

	parsed, err := jwtauth.VerifyToken(a.ja, tok)
	if err != nil {
		a.store.Clear()
		return nil, fmt.Errorf("%w: %v", shared.ErrSessionExpired, err)
	}
	sub, _ := parsed.Subject()
	if len(sub) <= len(tokenSubjectPrefix) {
		a.store.Clear()
		return nil, fmt.Errorf("%w: token has no subject", shared.ErrSessionExpired)
	}

	user, err := a.users.Get(ctx, sub[len(tokenSubjectPrefix):])
	if err != nil {
		a.store.Clear()
		return nil, fmt.Errorf("%w: %w", shared.ErrSessionExpired, err)
	}
	sess, err := a.issue(user)
	if err != nil {
		return nil, err
	}
	a.store.Save(sess)
	return sess, nil
}

func (a *LocalAuth) issue(user *models.User) (*session.Session, error) {
	now := time.Now()
	_, signed, err := a.ja.Encode(map[string]interface{}{
		jwt.SubjectKey:    tokenSubjectPrefix + user.ID,
		jwt.IssuedAtKey:   now.Unix(),
		jwt.ExpirationKey: now.Add(a.ttl),
		"email":           user.Email,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to sign token: %w", err)
	}

	user.PasswordHash = ""
	return session.New(signed, *user), nil
}

func (a *LocalAuth) Logout() { a.store.Clear() }

func (a *LocalAuth) IsValid() bool { return a.store.IsValid() }

func (a *LocalAuth) Store() *session.Store { return a.store }
