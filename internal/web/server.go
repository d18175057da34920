// Package web provides the HTTP API of the offer service: offers, comments,
// favorites, user registration and TSV imports.
package web

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/JonMunkholm/offerloader/internal/config"
	"github.com/JonMunkholm/offerloader/internal/core"
	"github.com/JonMunkholm/offerloader/internal/web/middleware"
)

// Services are the core services the handlers call.
type Services struct {
	Offers    *core.OfferService
	Users     *core.UserService
	Comments  *core.CommentService
	Favorites *core.FavoritesService

	// Importer and Sink run POST /imports. Limiter bounds how many run at once.
	Importer *core.Importer
	Sink     core.Sink
	Limiter  *core.ImportLimiter
}

// Server is the HTTP server of the offer API.
type Server struct {
	svc    Services
	cfg    *config.Config
	router *chi.Mux
	server *http.Server
}

// NewServer creates a Server. A nil Limiter is replaced by one built from
// cfg.Import.
func NewServer(svc Services, cfg *config.Config) *Server {
	if svc.Limiter == nil {
		svc.Limiter = core.NewImportLimiter(cfg.Import.MaxConcurrent, cfg.Import.MaxWaitTime)
	}
	s := &Server{
		svc:    svc,
		cfg:    cfg,
		router: chi.NewRouter(),
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// setupMiddleware configures middleware for all routes.
func (s *Server) setupMiddleware() {
	s.router.Use(chimw.RequestID)
	s.router.Use(chimw.RealIP)
	s.router.Use(middleware.Logger)
	s.router.Use(chimw.Recoverer)
	s.router.Use(middleware.Viewer)
}

// setupRoutes configures all HTTP routes. Imports stream their body and are
// bounded by IMPORT_TIMEOUT instead of the request timeout.
func (s *Server) setupRoutes() {
	s.router.Group(func(r chi.Router) {
		if t := s.cfg.Server.RequestTimeout; t > 0 {
			r.Use(chimw.Timeout(t))
		}

		r.Route("/offers", func(r chi.Router) {
			r.Get("/", s.handleListOffers)
			r.Get("/premium", s.handlePremiumOffers)
			r.With(middleware.RequireViewer).Post("/", s.handleCreateOffer)

			r.Route("/{offerID}", func(r chi.Router) {
				r.Get("/", s.handleGetOffer)
				r.Get("/comments", s.handleListComments)

				r.Group(func(r chi.Router) {
					r.Use(middleware.RequireViewer)
					r.Patch("/", s.handleUpdateOffer)
					r.Delete("/", s.handleDeleteOffer)
					r.Post("/comments", s.handleCreateComment)
					r.Post("/favorite", s.handleAddFavorite)
					r.Delete("/favorite", s.handleRemoveFavorite)
				})
			})
		})

		r.Post("/users", s.handleRegisterUser)
		r.With(middleware.RequireViewer).Get("/users/favorites", s.handleListFavorites)
	})

	s.router.Post("/imports", s.handleImport)
	s.router.Get("/imports/status", s.handleImportStatus)
}

// Start begins listening for HTTP requests. It returns http.ErrServerClosed
// after Shutdown.
func (s *Server) Start() error {
	sc := s.cfg.Server
	s.server = &http.Server{
		Addr:         sc.Addr(),
		Handler:      s.router,
		ReadTimeout:  sc.ReadTimeout,
		WriteTimeout: sc.WriteTimeout,
		IdleTimeout:  sc.IdleTimeout,
	}

	slog.Info("starting server", "addr", sc.Addr())
	return s.server.ListenAndServe()
}

// Shutdown stops accepting connections, then waits for running imports.
func (s *Server) Shutdown(ctx context.Context) error {
	var errs []error
	if s.server != nil {
		if err := s.server.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if err := s.svc.Limiter.WaitForDrain(ctx); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}
