package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"github.com/straye-as/pipeline-gateway/internal/config"
	"github.com/straye-as/pipeline-gateway/internal/logger"
	"github.com/straye-as/pipeline-gateway/internal/pipeline"
	"github.com/straye-as/pipeline-gateway/internal/service"
	"github.com/straye-as/pipeline-gateway/internal/upstream"
	"go.uber.org/zap"
)

const commandTimeout = 30 * time.Second

// confirmFunc asks the user to approve a transition
type confirmFunc func(title, description string) (bool, error)

// app carries the services shared by every command
type app struct {
	out     io.Writer
	confirm confirmFunc
	logger  *zap.Logger

	leads       *service.LeadService
	board       *service.BoardService
	transitions *service.TransitionService
	activities  *service.ActivityService
	dashboard   *service.DashboardService

	includeArchived bool
	assumeYes       bool
}

// connect builds the service graph from configuration. The CLI logs at warn
// unless LOGGING_LEVEL says otherwise.
func (a *app) connect(baseURL, token string) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if cfg.Logging.Level == "" || cfg.Logging.Level == "info" {
		cfg.Logging.Level = "warn"
	}
	log, err := logger.NewLogger(&cfg.Logging, &cfg.App)
	if err != nil {
		return nil, err
	}
	if baseURL != "" {
		cfg.Backend.BaseURL = baseURL
	}
	if token != "" {
		cfg.Backend.ServiceToken = token
	}
	if cfg.Backend.ServiceToken == "" {
		return nil, fmt.Errorf("no backend token: set BACKEND_SERVICE_TOKEN or pass --token")
	}

	client := upstream.NewClient(upstream.Config{
		BaseURL:      cfg.Backend.BaseURL,
		Timeout:      cfg.Backend.Timeout(),
		ServiceToken: cfg.Backend.ServiceToken,
		UserAgent:    "pipelinectl",
	}, nil, log)
	a.wire(client, log)
	return cfg, nil
}

func (a *app) wire(client *upstream.Client, log *zap.Logger) {
	a.logger = log
	a.leads = service.NewLeadService(client, pipeline.NewStore(), log)
	a.activities = service.NewActivityService(client, log)
	a.transitions = service.NewTransitionService(a.leads, client, a.activities, log)
	a.board = service.NewBoardService(a.leads, a.transitions, log)
	a.dashboard = service.NewDashboardService(a.leads, client, log)
}

func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithTimeout(ctx, commandTimeout)
}
