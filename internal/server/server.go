// Package server wires the router, handlers, and dependencies together.
//
// This is the composition root: the identity store, the OAuth providers,
// the session manager, and the auth service are each constructed exactly
// once here and handed to the handlers by reference. Nothing below this
// package reaches for globals or environment variables.
package server

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/Atharva-script/mlp/internal/auth"
	"github.com/Atharva-script/mlp/internal/config"
	"github.com/Atharva-script/mlp/internal/handler"
	"github.com/Atharva-script/mlp/internal/middleware"
	"github.com/Atharva-script/mlp/internal/repository"
	"github.com/Atharva-script/mlp/internal/repository/jsonfile"
	sqliteRepo "github.com/Atharva-script/mlp/internal/repository/sqlite"
	"github.com/Atharva-script/mlp/internal/service"
	"github.com/Atharva-script/mlp/internal/session"
)

// Server is the HTTP server and everything it owns.
type Server struct {
	router *chi.Mux
	cfg    *config.Config
	logger *slog.Logger
	closer io.Closer // the sqlite pool when that backend is active, else nil
}

// New assembles the full dependency graph from cfg.
func New(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	s := &Server{
		router: chi.NewRouter(),
		cfg:    cfg,
		logger: logger,
	}

	users, err := s.newUserRepository()
	if err != nil {
		return nil, err
	}

	sessionStore, err := session.NewFileStore(cfg.SessionDir)
	if err != nil {
		return nil, fmt.Errorf("creating session store: %w", err)
	}
	codec, err := session.NewCookieCodec(cfg.SessionSecret)
	if err != nil {
		return nil, fmt.Errorf("creating session codec: %w", err)
	}
	sessions := session.NewManager(sessionStore, codec,
		time.Duration(cfg.SessionTTLMin)*time.Minute, logger)

	authService := service.NewAuthService(users, logger)

	if err := s.setupRoutes(authService, sessions); err != nil {
		s.Close()
		return nil, fmt.Errorf("setting up routes: %w", err)
	}
	return s, nil
}

// newUserRepository builds the identity store the config asks for. The two
// backends satisfy the same contract; everything above sees only the
// interface.
func (s *Server) newUserRepository() (repository.UserRepository, error) {
	switch s.cfg.StoreBackend {
	case config.BackendSQLite:
		if err := os.MkdirAll(filepath.Dir(s.cfg.DBPath), 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
		db, err := sqliteRepo.New(s.cfg.DBPath)
		if err != nil {
			return nil, fmt.Errorf("opening database: %w", err)
		}
		s.closer = db
		return db, nil
	default:
		store, err := jsonfile.New(s.cfg.StorePath)
		if err != nil {
			return nil, fmt.Errorf("opening file store: %w", err)
		}
		return store, nil
	}
}

func (s *Server) setupRoutes(authService *service.AuthService, sessions *session.Manager) error {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(middleware.Logger(s.logger))

	pages, err := handler.NewPageHandler(s.cfg.TemplateDir, s.logger)
	if err != nil {
		return fmt.Errorf("creating page handler: %w", err)
	}
	authHandler := handler.NewAuthHandler(authService, sessions, s.logger)

	// Pages. "/" doubles as the login page and the anonymous entry point
	// (the EnsureAuthenticated guard redirects here).
	s.router.Get("/", pages.HandleLoginPage)
	s.router.Get("/login", pages.HandleLoginPage)
	s.router.Get("/contact", pages.HandleContact)
	s.router.Get("/register", pages.HandleRegisterPage)
	s.router.With(sessions.EnsureAuthenticated).Get("/index", pages.HandleIndex)

	// Local accounts.
	s.router.Post("/register", authHandler.HandleRegister)
	s.router.Post("/login", authHandler.HandleLogin)
	s.router.Post("/auth/logout", authHandler.HandleLogout)

	// OAuth providers, each registered only when its credentials exist —
	// the server runs fine with zero, one, or both.
	var providers []auth.Provider
	if s.cfg.GitHubEnabled() {
		providers = append(providers,
			auth.NewGitHub(s.cfg.GitHubClientID, s.cfg.GitHubClientSecret, s.cfg.GitHubCallbackURL))
	}
	if s.cfg.GoogleEnabled() {
		providers = append(providers,
			auth.NewGoogle(s.cfg.GoogleClientID, s.cfg.GoogleClientSecret, s.cfg.GoogleCallbackURL))
	}
	for _, p := range providers {
		name := string(p.Name())
		s.router.Get("/auth/"+name, authHandler.HandleOAuthLogin(p))
		s.router.Get("/auth/"+name+"/callback", authHandler.HandleOAuthCallback(p))
		s.logger.Info("oauth provider enabled", slog.String("provider", name))
	}
	if len(providers) == 0 {
		s.logger.Warn("no oauth providers configured — only local login is available")
	}

	return nil
}

// Close releases resources owned by the server (the database pool, when the
// sqlite backend is active).
func (s *Server) Close() {
	if s.closer != nil {
		s.closer.Close()
	}
}

// Start runs the server until SIGINT/SIGTERM, then shuts down gracefully:
// stop accepting connections, give in-flight requests 30 seconds, release
// the store.
func (s *Server) Start() error {
	defer s.Close()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.cfg.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.cfg.Port),
			slog.String("baseURL", s.cfg.BaseURL),
			slog.String("storeBackend", s.cfg.StoreBackend),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
