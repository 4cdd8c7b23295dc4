package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/jwtauth/v5"
	"github.com/lestrrat-go/jwx/v3/jwt"

	"github.com/desertthunder/cardquiz/internal/models"
	"github.com/desertthunder/cardquiz/internal/session"
	"github.com/desertthunder/cardquiz/internal/shared"
)

const (
	cookieName     = "jwt"
	sessionSubject = "cardquiz admin session"

	claimUserID  = "uid"
	claimEmail   = "email"
	claimSession = "gw"
)

// RequestLogger logs one line per request with its status and duration.
func RequestLogger(logger *log.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			kv := []any{
				"method", r.Method,
				"path", r.URL.Path,
				"status", status,
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
			}
			if id := middleware.GetReqID(r.Context()); id != "" {
				kv = append(kv, "request_id", id)
			}
			if status >= http.StatusInternalServerError {
				logger.Error("request", kv...)
			} else {
				logger.Info("request", kv...)
			}
		})
	}
}

// requireAuth rejects requests without a verified session cookie and puts the gateway session
// carried by the cookie into the request context. It runs after [jwtauth.Verifier].
func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, claims, err := jwtauth.FromContext(r.Context())
		if err != nil || token == nil {
			s.writeError(w, r, fmt.Errorf("%w: sign in required", shared.ErrNotAuthenticated))
			return
		}
		if subject, _ := token.Subject(); subject != sessionSubject {
			s.writeError(w, r, fmt.Errorf("%w: unexpected token subject", shared.ErrUnauthorized))
			return
		}

		gwToken, _ := claims[claimSession].(string)
		userID, _ := claims[claimUserID].(string)
		email, _ := claims[claimEmail].(string)
		sess := session.New(gwToken, models.User{ID: userID, Email: email})

		next.ServeHTTP(w, r.WithContext(session.NewContext(r.Context(), sess)))
	})
}

// issueCookie signs the gateway session into the "jwt" cookie. The cookie expires with the
// gateway session, or after the configured TTL when the session has no expiry.
func (s *Server) issueCookie(w http.ResponseWriter, r *http.Request, sess *session.Session) (time.Time, error) {
	expires := sess.ExpiresAt
	if expires.IsZero() {
		expires = time.Now().Add(s.sessionTTL)
	}

	_, signed, err := s.ja.Encode(map[string]any{
		jwt.SubjectKey:    sessionSubject,
		jwt.IssuedAtKey:   time.Now().Unix(),
		jwt.ExpirationKey: expires,
		claimUserID:       sess.User.ID,
		claimEmail:        sess.User.Email,
		claimSession:      sess.Token,
	})
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to sign session cookie: %w", err)
	}

	http.SetCookie(w, &http.Cookie{
		Name:     cookieName,
		Value:    signed,
		Expires:  expires,
		Secure:   s.secureCookies || r.TLS != nil,
		HttpOnly: true,
		Path:     "/",
		SameSite: http.SameSiteLaxMode,
	})
	return expires, nil
}

func (s *Server) clearCookie(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     cookieName,
		Value:    "",
		MaxAge:   -1,
		Secure:   s.secureCookies || r.TLS != nil,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}
