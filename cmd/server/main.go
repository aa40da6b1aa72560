package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Clark-Hu/cinepuma/db"
	"github.com/Clark-Hu/cinepuma/internal/auth"
	"github.com/Clark-Hu/cinepuma/internal/catalog"
	"github.com/Clark-Hu/cinepuma/internal/config"
	"github.com/Clark-Hu/cinepuma/internal/docstore"
	"github.com/Clark-Hu/cinepuma/internal/help"
	httpserver "github.com/Clark-Hu/cinepuma/internal/http"
	"github.com/Clark-Hu/cinepuma/internal/logging"
	"github.com/Clark-Hu/cinepuma/internal/metrics"
	"github.com/Clark-Hu/cinepuma/internal/repository"
	"github.com/Clark-Hu/cinepuma/internal/reviews"
	"github.com/Clark-Hu/cinepuma/internal/session"
	"github.com/Clark-Hu/cinepuma/internal/store"
	"github.com/Clark-Hu/cinepuma/internal/tmdb"
	"github.com/Clark-Hu/cinepuma/internal/view"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	logger, err := logging.New(logging.Options{
		Level:       cfg.LogLevel,
		Development: cfg.Development(),
		File:        cfg.LogFile,
	})
	if err != nil {
		log.Fatalf("logger error: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Error("server stopped", zap.Error(err))
		os.Exit(1)
	}
}

// backend is the opened document store with its health probe and cleanup.
type backend struct {
	docs   docstore.Store
	health func(ctx context.Context) error
	close  func()
}

func openStore(ctx context.Context, cfg config.Config, logger *zap.Logger) (backend, error) {
	switch cfg.StoreBackend {
	case config.StoreMemory:
		mem := docstore.NewMemory()
		return backend{docs: mem, close: mem.Close}, nil

	case config.StorePostgres:
		dbCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		st, err := store.New(dbCtx, cfg.DBURL, store.Options{
			MaxConns:               int32(cfg.DBMaxConns),
			MinConns:               int32(cfg.DBMinConns),
			MaxConnIdleTime:        time.Duration(cfg.DBMaxIdleSecs) * time.Second,
			MaxConnLifetime:        time.Duration(cfg.DBMaxLifeSecs) * time.Second,
			ConnTimeout:            time.Duration(cfg.DBConnTimeoutSecs) * time.Second,
			StatementCacheCapacity: cfg.DBStatementCache,
			Logger:                 logger,
		})
		if err != nil {
			return backend{}, fmt.Errorf("connect database: %w", err)
		}
		if cfg.DBMigrate {
			if err := st.Migrate(dbCtx, db.Migrations); err != nil {
				st.Close()
				return backend{}, fmt.Errorf("migrate database: %w", err)
			}
		}
		if err := prometheus.Register(metrics.NewPoolCollector(st.Stats)); err != nil {
			logger.Warn("register pool metrics", zap.Error(err))
		}
		repo := repository.New(st)
		return backend{docs: docstore.NewPostgres(repo.Documents), health: st.HealthCheck, close: st.Close}, nil

	case config.StoreFirestore:
		fs, err := docstore.NewFirestore(ctx, docstore.FirestoreOptions{
			ProjectID:       cfg.FirebaseProjectID,
			CredentialsFile: cfg.FirebaseCredentialsFile,
		})
		if err != nil {
			return backend{}, fmt.Errorf("connect firestore: %w", err)
		}
		return backend{docs: fs, close: func() { _ = fs.Close() }}, nil
	}

	logger.Warn("no document store configured; reviews and profiles are disabled")
	return backend{close: func() {}}, nil
}

func newAuthService(ctx context.Context, cfg config.Config, logger *zap.Logger) (*auth.Service, error) {
	timeout := time.Duration(cfg.AuthTimeoutSecs) * time.Second

	var password auth.PasswordBackend
	if cfg.AuthEnabled() {
		toolkit, err := auth.NewIdentityToolkit(cfg.IdentityToolkitURL, cfg.FirebaseAPIKey, timeout, logger)
		if err != nil {
			return nil, fmt.Errorf("init identity toolkit: %w", err)
		}
		password = toolkit
	} else {
		logger.Warn("identity service API key missing; login and sign-up are disabled")
	}

	var tokens auth.TokenVerifier
	if cfg.TokenSignInEnabled() {
		verifier, err := auth.NewFirebaseVerifier(ctx, auth.FirebaseConfig{
			ProjectID:       cfg.FirebaseProjectID,
			CredentialsFile: cfg.FirebaseCredentialsFile,
		}, timeout)
		if err != nil {
			return nil, fmt.Errorf("init token verifier: %w", err)
		}
		tokens = verifier
	}
	return auth.NewService(password, tokens, logger), nil
}

func run(cfg config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	movies, err := catalog.Default()
	if err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}
	faq, err := help.Default()
	if err != nil {
		return fmt.Errorf("load help: %w", err)
	}
	renderer, err := view.NewRenderer(logger)
	if err != nil {
		return fmt.Errorf("parse templates: %w", err)
	}

	be, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer be.close()

	authSvc, err := newAuthService(ctx, cfg, logger)
	if err != nil {
		return err
	}

	deps := httpserver.Deps{
		Catalog:  movies,
		Auth:     authSvc,
		Sessions: session.NewManager(cfg.SessionSecret, time.Duration(cfg.SessionTTLHours)*time.Hour, cfg.CookieSecure),
		Help:     faq,
		Renderer: renderer,
		Health:   be.health,
	}

	if cfg.TMDBAPIKey != "" {
		client, err := tmdb.NewHTTPClient(tmdb.Options{
			BaseURL:      cfg.TMDBURL,
			APIKey:       cfg.TMDBAPIKey,
			Language:     cfg.TMDBLanguage,
			ImageBaseURL: cfg.TMDBImageURL,
			Timeout:      time.Duration(cfg.TMDBTimeoutSecs) * time.Second,
			Logger:       logger,
		})
		if err != nil {
			return fmt.Errorf("init tmdb client: %w", err)
		}
		deps.TMDB = client
	} else {
		logger.Warn("TMDB API key missing; top rated page is disabled")
	}

	g, gctx := errgroup.WithContext(ctx)

	if be.docs != nil {
		reviewStore := reviews.NewStore(be.docs, cfg.AppID)
		feed := reviews.NewFeed(reviewStore, logger)
		deps.Submitter = reviews.NewSubmitter(reviewStore)
		deps.Feed = feed
		authSvc.OnStateChange(auth.NewProfileRecorder(be.docs, cfg.AppID, logger).Listener())

		g.Go(func() error {
			// A broken feed degrades the review list; the site keeps serving.
			if err := feed.Run(gctx); err != nil {
				logger.Error("review feed stopped", zap.Error(err))
			}
			return nil
		})
	}

	server := httpserver.New(cfg, deps, logger)
	g.Go(func() error {
		err := server.Start(gctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	err = g.Wait()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if shutdownErr := server.Shutdown(shutdownCtx); shutdownErr != nil {
		logger.Warn("graceful shutdown error", zap.Error(shutdownErr))
	}
	return err
}
