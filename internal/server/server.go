package server

import (
	"context"
	"errors"
	"fmt"
	"html"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/jwtauth/v5"
	"github.com/microcosm-cc/bluemonday"

	"github.com/desertthunder/cardquiz/internal/decks"
	"github.com/desertthunder/cardquiz/internal/gateway"
	"github.com/desertthunder/cardquiz/internal/services"
	"github.com/desertthunder/cardquiz/internal/tasks"
)

// Middleware wraps an http.Handler and returns a new http.Handler with additional behavior.
// Common middleware includes logging, authentication, recovery, request ids, etc.
type Middleware func(http.Handler) http.Handler

// Handler defines the interface for HTTP request handlers in the card quiz service.
// Implementations handle a group of endpoints (import, player, auth, admin).
type Handler interface {
	http.Handler      // ServeHTTP handles the HTTP request and writes the response
	Routes() []string // Routes returns the path patterns this handler serves
}

// Router defines the interface for HTTP routing and middleware management.
// Implementations register handlers, apply middleware, and configure the HTTP server.
type Router interface {
	Use(middleware ...Middleware)                     // Use adds middleware to the router's middleware stack
	Handle(method, path string, handler http.Handler) // Handle registers a handler for the specified method and path
	Handler(handler Handler)                          // Handler registers a custom Handler implementation
	ServeHTTP(w http.ResponseWriter, r *http.Request) // ServeHTTP implements http.Handler for the entire router
}

// DefaultMaxUpload bounds multipart bodies on the bulk import endpoint.
const DefaultMaxUpload = 256 << 20

// Options configures a [Server].
type Options struct {
	Gateway       gateway.Gateway
	Video         services.VideoService // nil disables the URL import endpoints
	Secret        string                // HS256 key for session cookies
	FilesDir      string                // Served under /files/ when set (local backend storage)
	SessionTTL    time.Duration
	MaxUpload     int64
	SecureCookies bool
	Logger        *log.Logger
}

// Server is the HTTP surface over the gateway and the task engine.
type Server struct {
	router        *BasicRouter
	gw            gateway.Gateway
	engine        *tasks.Engine
	composer      *decks.Composer
	ja            *jwtauth.JWTAuth
	strict        *bluemonday.Policy
	logger        *log.Logger
	sessionTTL    time.Duration
	maxUpload     int64
	secureCookies bool
}

// New wires every route. Admin routes and bulk import require the session cookie.
func New(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = 7 * 24 * time.Hour
	}
	if opts.MaxUpload <= 0 {
		opts.MaxUpload = DefaultMaxUpload
	}

	s := &Server{
		router:        NewBasicRouter(),
		gw:            opts.Gateway,
		engine:        tasks.NewEngine(opts.Gateway, opts.Video, logger.With("component", "tasks")),
		composer:      decks.NewComposer(opts.Gateway, logger.With("component", "decks")),
		ja:            jwtauth.New("HS256", []byte(opts.Secret), nil),
		strict:        bluemonday.StrictPolicy(),
		logger:        logger,
		sessionTTL:    opts.SessionTTL,
		maxUpload:     opts.MaxUpload,
		secureCookies: opts.SecureCookies,
	}

	s.router.Use(middleware.RequestID, middleware.RealIP, RequestLogger(logger), middleware.Recoverer)
	s.router.Handler(NewImportHandler(s))
	s.router.Handler(NewPlayerHandler(s))
	s.router.Handler(NewAuthHandler(s))
	s.router.Handler(NewAdminHandler(s))
	if opts.FilesDir != "" {
		s.router.Handle(http.MethodGet, "/files/", http.StripPrefix("/files/", http.FileServer(http.Dir(opts.FilesDir))))
	}
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// authenticated wraps admin routes: verify the cookie, then require it.
func (s *Server) authenticated() []Middleware {
	return []Middleware{jwtauth.Verifier(s.ja), s.requireAuth}
}

// sanitize strips markup from free text. The strict policy escapes what it keeps, so entities are
// decoded again before the text is stored.
func (s *Server) sanitize(text string) string {
	return strings.TrimSpace(html.UnescapeString(s.strict.Sanitize(text)))
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.logger.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	}
}
