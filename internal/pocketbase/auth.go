package pocketbase

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/desertthunder/cardquiz/internal/models"
	"github.com/desertthunder/cardquiz/internal/session"
	"github.com/desertthunder/cardquiz/internal/shared"
)

// Auth is password auth against the users collection.
type Auth struct {
	client *Client
}

type authResponse struct {
	Token  string      `json:"token"`
	Record models.User `json:"record"`
}

// Login exchanges credentials for a token and saves the session in the client's store.
func (a *Auth) Login(ctx context.Context, email, password string) (*session.Session, error) {
	sess, err := a.Authenticate(ctx, email, password)
	if err != nil {
		return nil, err
	}
	a.client.store.Save(sess)
	return sess, nil
}

// Authenticate exchanges credentials for a token without touching the client's store.
func (a *Auth) Authenticate(ctx context.Context, email, password string) (*session.Session, error) {
	if strings.TrimSpace(email) == "" || password == "" {
		return nil, fmt.Errorf("%w: email and password are required", shared.ErrValidation)
	}

	body := map[string]string{"identity": email, "password": password}
	var resp authResponse
	endpoint := "/api/collections/" + a.client.authCollection + "/auth-with-password"
	if err := a.client.doRequest(ctx, http.MethodPost, endpoint, body, nil, &resp); err != nil {
		return nil, fmt.Errorf("%w: %w", shared.ErrInvalidCredentials, err)
	}
	return session.New(resp.Token, resp.Record), nil
}

// Refresh renews the current token. An expired or rejected session is cleared.
func (a *Auth) Refresh(ctx context.Context) (*session.Session, error) {
	if a.client.token(ctx) == "" {
		return nil, shared.ErrNotAuthenticated
	}

	var resp authResponse
	endpoint := "/api/collections/" + a.client.authCollection + "/auth-refresh"
	if err := a.client.doRequest(ctx, http.MethodPost, endpoint, nil, nil, &resp); err != nil {
		a.client.store.Clear()
		return nil, fmt.Errorf("%w: %w", shared.ErrSessionExpired, err)
	}

	sess := session.New(resp.Token, resp.Record)
	a.client.store.Save(sess)
	return sess, nil
}

func (a *Auth) Logout() { a.client.store.Clear() }
func (a *Auth) IsValid() bool { return a.client.store.IsValid() }
func (a *Auth) Store() *session.Store { return a.client.store }
