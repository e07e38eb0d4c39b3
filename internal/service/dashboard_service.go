package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/straye-as/pipeline-gateway/internal/domain"
	"github.com/straye-as/pipeline-gateway/internal/mapper"
	"github.com/straye-as/pipeline-gateway/internal/pipeline"
	"github.com/straye-as/pipeline-gateway/internal/upstream"
	"go.uber.org/zap"
)

// DashboardService serves dashboard figures: the backend's own KPI cards and
// the pipeline metrics computed from the lead snapshot
type DashboardService struct {
	leads  *LeadService
	client *upstream.Client
	logger *zap.Logger
	now    func() time.Time
}

func NewDashboardService(leads *LeadService, client *upstream.Client, logger *zap.Logger) *DashboardService {
	return &DashboardService{
		leads:  leads,
		client: client,
		logger: logger,
		now:    time.Now,
	}
}

// SetClock replaces the service clock
func (s *DashboardService) SetClock(now func() time.Time) {
	s.now = now
}

func normalizeRange(rng string) (string, error) {
	rng = strings.ToLower(strings.TrimSpace(rng))
	if rng == "" {
		rng = pipeline.Range30Days
	}
	if _, err := pipeline.WindowForRange(rng, time.Time{}); err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	return rng, nil
}

// Stats returns the backend-computed KPI cards as they are
func (s *DashboardService) Stats(ctx context.Context, rng string) (*domain.DashboardStats, error) {
	rng, err := normalizeRange(rng)
	if err != nil {
		return nil, err
	}
	stats, err := s.client.DashboardStats(ctx, rng)
	if err != nil {
		return nil, fmt.Errorf("failed to get dashboard stats: %w", translate(err))
	}
	return stats, nil
}

// PipelineMetrics computes windowed metrics over the current snapshot
func (s *DashboardService) PipelineMetrics(ctx context.Context, rng string, includeArchived bool) (*domain.PipelineMetricsDTO, error) {
	rng, err := normalizeRange(rng)
	if err != nil {
		return nil, err
	}
	snap, err := s.leads.Snapshot(ctx)
	if err != nil {
		return nil, err
	}

	window, _ := pipeline.WindowForRange(rng, s.now().UTC())
	metrics := pipeline.ComputeMetrics(snap.Leads, pipeline.MetricsOptions{
		Window:          window,
		IncludeArchived: includeArchived,
	})
	if metrics.MixedCurrency {
		s.logger.Debug("pipeline value mixes currencies", zap.String("range", rng))
	}

	dto := mapper.ToPipelineMetricsDTO(rng, window, metrics)
	return &dto, nil
}
