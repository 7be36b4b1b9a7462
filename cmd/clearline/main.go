package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"golang.org/x/sync/errgroup"

	"github.com/clearline-consulting/clearline/internal/app"
	"github.com/clearline-consulting/clearline/internal/authweb"
	"github.com/clearline-consulting/clearline/internal/enquiries"
	"github.com/clearline-consulting/clearline/internal/guard"
	"github.com/clearline-consulting/clearline/internal/identity"
	"github.com/clearline-consulting/clearline/internal/insights"
	"github.com/clearline-consulting/clearline/internal/observability"
	"github.com/clearline-consulting/clearline/internal/platform/cache"
	"github.com/clearline-consulting/clearline/internal/platform/db"
	"github.com/clearline-consulting/clearline/internal/session"
	"github.com/clearline-consulting/clearline/internal/shared"
	"github.com/clearline-consulting/clearline/internal/site"
	"github.com/clearline-consulting/clearline/internal/users"
	"github.com/clearline-consulting/clearline/internal/view"
	"github.com/clearline-consulting/clearline/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	sessionManager := shared.NewManager(redisClient, "clearline_session", cfg.SessionTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)

	templates, err := view.NewEngine()
	if err != nil {
		logger.Error("parse templates", slog.Any("error", err))
		os.Exit(1)
	}

	metrics := observability.NewMetrics()

	bus := identity.NewEventBus(redisClient, logger)
	provider := identity.NewPGProvider(pool, bus, cfg.IdentitySessionTTL, logger)
	profiles := identity.NewPGProfileStore(pool)

	registry := session.NewRegistry(session.RegistryConfig{
		Provider: provider,
		Profiles: profiles,
		Logger:   logger,
		Size:     cfg.SessionCacheSize,
		TTL:      cfg.SessionCacheTTL,
	})

	guardMW := guard.New(guard.Config{
		Resolver:       registry,
		Templates:      templates,
		Logger:         logger,
		Metrics:        metrics,
		ResolveTimeout: cfg.GuardResolveTimeout,
	})

	jobClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("init job client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()

	insightsService := insights.NewService(insights.NewRepository(pool))
	insightsHandler := insights.NewHandler(logger, insightsService, templates, csrfManager)

	usersService := users.NewService(users.NewRepository(pool), provider, logger)
	usersHandler := users.NewHandler(logger, usersService, templates, csrfManager)

	enquiriesService := enquiries.NewService(enquiries.NewRepository(pool), jobs.NewEnquiryNotifier(jobClient), logger)
	enquiriesHandler := enquiries.NewHandler(logger, enquiriesService, templates, csrfManager)

	siteHandler := site.NewHandler(logger, insightsService, enquiriesService, templates, csrfManager)
	authHandler := authweb.NewHandler(logger, registry, templates, sessionManager, csrfManager, metrics)

	router := app.NewRouter(app.RouterParams{
		Logger:         logger,
		Config:         cfg,
		Templates:      templates,
		SessionManager: sessionManager,
		CSRFManager:    csrfManager,

		SiteHandler:      siteHandler,
		AuthHandler:      authHandler,
		InsightsHandler:  insightsHandler,
		InsightsService:  insightsService,
		UsersHandler:     usersHandler,
		UsersService:     usersService,
		EnquiriesHandler: enquiriesHandler,
		EnquiriesService: enquiriesService,

		Guard:    guardMW,
		Registry: registry,
		Metrics:  metrics,

		Pool:  pool,
		Redis: redisClient,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		return bus.Run(groupCtx)
	})
	group.Go(func() error {
		return registry.Run(groupCtx)
	})
	group.Go(func() error {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil && err != context.Canceled {
		logger.Error("shutdown", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("shut down cleanly")
}
