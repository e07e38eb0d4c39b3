package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/straye-as/pipeline-gateway/internal/auth"
	"github.com/straye-as/pipeline-gateway/internal/config"
	"github.com/straye-as/pipeline-gateway/internal/http/handler"
	"github.com/straye-as/pipeline-gateway/internal/http/middleware"
	"github.com/straye-as/pipeline-gateway/internal/http/router"
	"github.com/straye-as/pipeline-gateway/internal/jobs"
	"github.com/straye-as/pipeline-gateway/internal/logger"
	"github.com/straye-as/pipeline-gateway/internal/pipeline"
	"github.com/straye-as/pipeline-gateway/internal/service"
	"github.com/straye-as/pipeline-gateway/internal/storage"
	"github.com/straye-as/pipeline-gateway/internal/upstream"
	"go.uber.org/zap"
)

// version is overridden at build time with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx := context.Background()

	basicCfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log, err := logger.NewLogger(&basicCfg.Logging, &basicCfg.App)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	log.Info("Starting pipeline gateway",
		zap.String("app", basicCfg.App.Name),
		zap.String("env", basicCfg.App.Environment),
		zap.String("version", version),
		zap.Int("port", basicCfg.App.Port),
	)

	// Development reads secrets from the environment, staging and
	// production from Azure Key Vault when enabled.
	cfg, err := config.LoadWithSecrets(ctx, log)
	if err != nil {
		return fmt.Errorf("failed to load secrets: %w", err)
	}

	client := upstream.NewClient(upstream.Config{
		BaseURL:      cfg.Backend.BaseURL,
		Timeout:      cfg.Backend.Timeout(),
		ServiceToken: cfg.Backend.ServiceToken,
		UserAgent:    cfg.App.Name + "/" + version,
	}, auth.TokenFromContext, log)

	// Report storage is optional; the gateway runs without exports.
	var reportStore storage.Storage
	if cfg.Storage.Mode != "" {
		reportStore, err = storage.NewStorage(&cfg.Storage, log)
		if err != nil {
			log.Warn("Report storage unavailable, exports disabled", zap.Error(err))
		} else {
			log.Info("Report storage initialized", zap.String("mode", cfg.Storage.Mode))
		}
	}

	// Services
	store := pipeline.NewStore()
	leadService := service.NewLeadService(client, store, log)
	activityService := service.NewActivityService(client, log)
	transitionService := service.NewTransitionService(leadService, client, activityService, log)
	transitionService.SetConfirmationTimeout(cfg.Pipeline.ConfirmationTimeout())
	boardService := service.NewBoardService(leadService, transitionService, log)
	dashboardService := service.NewDashboardService(leadService, client, log)
	teamService := service.NewTeamService(client, log)
	profileService := service.NewProfileService(client, log)
	reportService := service.NewReportService(leadService, reportStore, log)

	// Handlers
	includeArchived := cfg.Pipeline.IncludeArchivedDefault
	healthHandler := handler.NewHealthHandler(client, version, log)
	leadHandler := handler.NewLeadHandler(leadService, boardService, includeArchived, log)
	transitionHandler := handler.NewTransitionHandler(transitionService, log)
	activityHandler := handler.NewActivityHandler(activityService, log)
	dashboardHandler := handler.NewDashboardHandler(dashboardService, includeArchived, log)
	teamHandler := handler.NewTeamHandler(teamService, profileService, log)
	reportHandler := handler.NewReportHandler(reportService, includeArchived, log)

	if cfg.Security.JWTSecret == "" {
		log.Info("No JWT secret configured, bearer tokens are confirmed with the backend",
			zap.Duration("token_check_ttl", cfg.Security.TokenCheckTTL()))
	}
	authMiddleware := auth.NewMiddleware(cfg, auth.NewVerifier(client, cfg.Security.TokenCheckTTL()), log)
	rateLimiter := middleware.NewRateLimiter(&cfg.RateLimit, log)

	rt := router.NewRouter(
		cfg,
		log,
		authMiddleware,
		rateLimiter,
		healthHandler,
		leadHandler,
		transitionHandler,
		activityHandler,
		dashboardHandler,
		teamHandler,
		reportHandler,
	)

	// Background jobs
	scheduler := jobs.NewScheduler(log)
	runner := jobs.NewRunner(log, cfg.Backend.Timeout()*4)
	var exporter jobs.ReportExporter
	if reportStore != nil {
		exporter = reportService
	}
	if err := jobs.Register(scheduler, runner, &cfg.Pipeline, leadService, transitionService, exporter); err != nil {
		return fmt.Errorf("failed to register jobs: %w", err)
	}
	scheduler.Start()

	// Warm the snapshot without holding up startup.
	go runner.RefreshJob(leadService)()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.App.Port),
		Handler:      rt.Setup(),
		ReadTimeout:  cfg.Server.ReadTimeoutDuration(),
		WriteTimeout: cfg.Server.WriteTimeoutDuration(),
	}

	serverErrors := make(chan error, 1)
	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		serverErrors <- srv.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server error: %w", err)
	case sig := <-shutdown:
		log.Info("Shutdown signal received", zap.String("signal", sig.String()))

		<-scheduler.Stop().Done()
		log.Info("Scheduler stopped")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			log.Error("Failed to shutdown gracefully", zap.Error(err))
			return err
		}
		log.Info("Server stopped gracefully")
	}

	return nil
}
