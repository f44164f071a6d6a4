// Package devserver is a local implementation of the task service REST
// contract backed by the SQLite store. It exists so the client can be
// exercised end to end without the production service.
package devserver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"github.com/nhle/teamboard/internal/store"
)

// Config configures a Server.
type Config struct {
	Store store.Store

	// Secret signs and verifies HS256 bearer tokens.
	Secret string

	// TokenTTL is the lifetime of issued tokens. Defaults to one hour.
	TokenTTL time.Duration

	// HashCost is the bcrypt cost used for new passwords.
	HashCost int

	Logger *logrus.Logger

	// Now is the server clock. Defaults to time.Now.
	Now func() time.Time
}

// Server serves the task service API.
type Server struct {
	store    store.Store
	secret   []byte
	ttl      time.Duration
	hashCost int
	log      *logrus.Logger
	now      func() time.Time
}

// New returns a server for cfg.
func New(cfg Config) (*Server, error) {
	if cfg.Store == nil {
		return nil, errors.New("devserver: store is required")
	}
	if cfg.Secret == "" {
		return nil, errors.New("devserver: jwt secret is required")
	}
	s := &Server{
		store:    cfg.Store,
		secret:   []byte(cfg.Secret),
		ttl:      cfg.TokenTTL,
		hashCost: cfg.HashCost,
		log:      cfg.Logger,
		now:      cfg.Now,
	}
	if s.ttl <= 0 {
		s.ttl = time.Hour
	}
	if s.hashCost == 0 {
		s.hashCost = bcrypt.DefaultCost
	}
	if s.log == nil {
		s.log = logrus.StandardLogger()
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s, nil
}

// Handler returns the routed API.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Post("/auth/login", s.handleLogin)

	r.Group(func(r chi.Router) {
		r.Use(s.authenticate)

		r.Route("/tasks", func(r chi.Router) {
			r.Get("/", s.handleListTasks)
			r.Post("/", s.handleCreateTask)
			r.Put("/{taskID}", s.handleUpdateTask)
			r.Delete("/{taskID}", s.handleDeleteTask)
		})

		r.Route("/projects", func(r chi.Router) {
			r.Get("/", s.handleListProjects)
			r.Post("/", s.handleCreateProject)
			r.Route("/{projectID}", func(r chi.Router) {
				r.Get("/", s.handleGetProject)
				r.Put("/", s.handleUpdateProject)
				r.Delete("/", s.handleDeleteProject)
				r.Get("/members", s.handleListMembers)
				r.Get("/role/self", s.handleRole)

				r.Get("/comments", s.handleListComments)
				r.Post("/comments", s.handleAddComment)
				r.Delete("/comments/{commentID}", s.handleDeleteComment)
				r.Patch("/comments/{commentID}/pin", s.handleTogglePin)
			})
		})

		r.Get("/dashboard", s.handleDashboard)
		r.Get("/dashboard/manager", s.handleManagerDashboard)

		r.Get("/users", s.handleListUsers)
		r.Post("/users", s.handleCreateUser)
	})

	return r
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.WithField("addr", addr).Info("dev server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serving on %s: %w", addr, err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.log.Info("dev server shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down: %w", err)
	}
	return nil
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		entry := s.log.WithFields(logrus.Fields{
			"method":      r.Method,
			"path":        r.URL.Path,
			"status":      ww.Status(),
			"request_id":  middleware.GetReqID(r.Context()),
			"duration_ms": time.Since(start).Milliseconds(),
		})
		if ww.Status() >= http.StatusInternalServerError {
			entry.Error("request failed")
			return
		}
		entry.Info("request served")
	})
}
