package httpserver

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/Clark-Hu/cinepuma/internal/auth"
	"github.com/Clark-Hu/cinepuma/internal/config"
	"github.com/Clark-Hu/cinepuma/internal/detail"
	"github.com/Clark-Hu/cinepuma/internal/domain"
	"github.com/Clark-Hu/cinepuma/internal/help"
	"github.com/Clark-Hu/cinepuma/internal/reviews"
	"github.com/Clark-Hu/cinepuma/internal/session"
	"github.com/Clark-Hu/cinepuma/internal/tmdb"
	"github.com/Clark-Hu/cinepuma/internal/view"
)

// Deps are the collaborators of the server. TMDB, Submitter, Feed and Health
// may be nil when the matching backend is not configured.
type Deps struct {
	Catalog   []domain.Movie
	TMDB      tmdb.Client
	Auth      *auth.Service
	Sessions  *session.Manager
	Submitter detail.Submitter
	Feed      *reviews.Feed
	Help      help.Page
	Renderer  *view.Renderer
	Health    func(ctx context.Context) error
}

// Server wires HTTP routing, middleware, and handlers.
type Server struct {
	cfg     config.Config
	deps    Deps
	logger  *zap.Logger
	router  chi.Router
	httpSrv *http.Server

	// live is cancelled on shutdown to end open review sockets.
	live     context.Context
	stopLive context.CancelFunc
}

// New constructs the HTTP server with base middleware and routes.
func New(cfg config.Config, deps Deps, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if deps.Auth == nil {
		deps.Auth = auth.NewService(nil, nil, logger)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(countRequests)

	s := &Server{
		cfg:    cfg,
		deps:   deps,
		logger: logger,
		router: r,
	}
	s.live, s.stopLive = context.WithCancel(context.Background())
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.router.Get("/healthz", s.handleHealthz)
	s.router.Handle("/metrics", promhttp.Handler())
	s.router.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(view.Static()))))

	s.router.Group(func(r chi.Router) {
		r.Use(s.deps.Sessions.Load)

		r.Get("/", s.handleHome)
		r.Get("/search", s.handleSearch)
		r.Get("/top-rated", s.handleTopRated)
		r.Get("/help", s.handleHelp)

		r.Route("/movies/{id}", func(r chi.Router) {
			r.Get("/", s.handleMovie)
			r.Get("/live", s.handleLive)
			r.Post("/reviews", s.handleSubmitReview)
		})

		r.Get("/login", s.handleLoginPage)
		r.Post("/login", s.handleLogin)
		r.Post("/session/anonymous", s.handleAnonymous)
		r.Post("/session/token", s.handleToken)
		r.Post("/logout", s.handleLogout)

		r.With(s.deps.Sessions.Gate("/login")).Get("/welcome", s.handleWelcome)
	})

	s.router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		s.renderError(w, r, http.StatusNotFound, "Página no encontrada", "La página que buscas no existe.")
	})
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start boots the HTTP server and blocks until ctx is cancelled or the
// listener fails.
func (s *Server) Start(ctx context.Context) error {
	s.httpSrv = &http.Server{
		Addr:         ":" + s.cfg.Port,
		Handler:      s.router,
		ReadTimeout:  time.Duration(s.cfg.ReadTimeoutSecs) * time.Second,
		WriteTimeout: time.Duration(s.cfg.WriteTimeoutSecs) * time.Second,
		IdleTimeout:  time.Duration(s.cfg.IdleTimeoutSecs) * time.Second,
	}
	s.httpSrv.RegisterOnShutdown(s.stopLive)

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http: listening", zap.String("addr", s.httpSrv.Addr))
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.httpSrv.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpSrv == nil {
		s.stopLive()
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}

type healthResponse struct {
	Status string `json:"status"`
	Store  string `json:"store"`
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if s.deps.Health == nil {
		s.respondJSON(w, http.StatusOK, healthResponse{Status: "ok", Store: "none"})
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := s.deps.Health(ctx); err != nil {
		s.logger.Warn("http: health check failed", zap.Error(err))
		s.respondError(w, http.StatusServiceUnavailable, "STORE_UNAVAILABLE", "document store is not reachable")
		return
	}
	s.respondJSON(w, http.StatusOK, healthResponse{Status: "ok", Store: "ok"})
}
