package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/desertthunder/cardquiz/internal/models"
	"github.com/desertthunder/cardquiz/internal/shared"
)

// AuthHandler exchanges backend credentials for the session cookie.
type AuthHandler struct {
	*routeSet
	s *Server
}

// NewAuthHandler registers login and logout.
func NewAuthHandler(s *Server) *AuthHandler {
	h := &AuthHandler{routeSet: newRouteSet(), s: s}
	h.handle("POST /api/auth/login", h.login)
	h.handle("POST /api/auth/logout", h.logout)
	return h
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	User      models.User `json:"user"`
	ExpiresAt time.Time   `json:"expiresAt"`
}

func (h *AuthHandler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.s.writeError(w, r, fmt.Errorf("%w: invalid JSON body: %v", shared.ErrInvalidArgument, err))
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	if req.Email == "" || req.Password == "" {
		h.s.writeError(w, r, fmt.Errorf("%w: email and password are required", shared.ErrMissingArgument))
		return
	}

	// The gateway session lives only in the cookie; the shared store would back anonymous requests.
	sess, err := h.s.gw.Auth().Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		h.s.writeError(w, r, err)
		return
	}

	expires, err := h.s.issueCookie(w, r, sess)
	if err != nil {
		h.s.writeError(w, r, err)
		return
	}
	h.s.logger.Info("admin signed in", "user", sess.User.Email)
	writeJSON(w, http.StatusOK, loginResponse{User: sess.User, ExpiresAt: expires})
}

func (h *AuthHandler) logout(w http.ResponseWriter, r *http.Request) {
	h.s.clearCookie(w, r)
	w.WriteHeader(http.StatusNoContent)
}
