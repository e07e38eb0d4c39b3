package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/straye-as/pipeline-gateway/internal/domain"
	"github.com/straye-as/pipeline-gateway/internal/mapper"
	"github.com/straye-as/pipeline-gateway/internal/pipeline"
	"github.com/straye-as/pipeline-gateway/internal/storage"
	"go.uber.org/zap"
)

const reportPrefix = "reports/"

// PipelineReport is the document written by Export
type PipelineReport struct {
	GeneratedAt     time.Time                   `json:"generatedAt"`
	SnapshotAt      time.Time                   `json:"snapshotAt"`
	IncludeArchived bool                        `json:"includeArchived"`
	Columns         []pipeline.StatusAggregate  `json:"columns"`
	Metrics         []domain.PipelineMetricsDTO `json:"metrics"`
	Leads           []domain.Lead               `json:"leads"`
}

// ReportService exports pipeline snapshots to report storage
type ReportService struct {
	leads   *LeadService
	storage storage.Storage
	logger  *zap.Logger
	now     func() time.Time
}

// NewReportService creates a report service. store may be nil, in which case
// every call returns ErrStorageDisabled.
func NewReportService(leads *LeadService, store storage.Storage, logger *zap.Logger) *ReportService {
	return &ReportService{
		leads:   leads,
		storage: store,
		logger:  logger,
		now:     time.Now,
	}
}

// SetClock replaces the service clock
func (s *ReportService) SetClock(now func() time.Time) {
	s.now = now
}

// Export writes the current snapshot with its column totals and metrics for
// the standard ranges
func (s *ReportService) Export(ctx context.Context, includeArchived bool) (*domain.ReportDTO, error) {
	if s.storage == nil {
		return nil, ErrStorageDisabled
	}
	snap, err := s.leads.Snapshot(ctx)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	opts := pipeline.FilterOptions{IncludeArchived: includeArchived}
	report := PipelineReport{
		GeneratedAt:     now,
		SnapshotAt:      snap.FetchedAt,
		IncludeArchived: includeArchived,
		Columns:         pipeline.AggregateByStatus(snap.Leads, opts),
		Leads:           pipeline.Filter(snap.Leads, opts),
	}
	for _, rng := range []string{pipeline.Range7Days, pipeline.Range30Days, pipeline.Range90Days, pipeline.Range12Month, pipeline.RangeAll} {
		window, _ := pipeline.WindowForRange(rng, now)
		m := pipeline.ComputeMetrics(snap.Leads, pipeline.MetricsOptions{Window: window, IncludeArchived: includeArchived})
		report.Metrics = append(report.Metrics, mapper.ToPipelineMetricsDTO(rng, window, m))
	}

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode report: %w", err)
	}

	name := reportPrefix + "pipeline-" + now.Format("20060102T150405Z") + ".json"
	size, err := s.storage.Upload(ctx, name, "application/json", bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to store report: %w", err)
	}
	s.logger.Info("pipeline report exported",
		zap.String("path", name),
		zap.Int64("size", size),
		zap.Int("leads", len(report.Leads)),
	)
	return &domain.ReportDTO{Path: name, Size: size, GeneratedAt: now}, nil
}

// Open returns a stored report. Only names under the report prefix are served.
func (s *ReportService) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	if s.storage == nil {
		return nil, ErrStorageDisabled
	}
	cleaned, err := storage.CleanName(name)
	if err != nil || !strings.HasPrefix(cleaned, reportPrefix) {
		return nil, fmt.Errorf("%w: invalid report path %q", ErrInvalidInput, name)
	}
	rc, err := s.storage.Download(ctx, cleaned)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%w: %w", ErrNotFound, err)
		}
		return nil, err
	}
	return rc, nil
}

// List returns stored reports, oldest first
func (s *ReportService) List(ctx context.Context) ([]domain.ReportDTO, error) {
	if s.storage == nil {
		return nil, ErrStorageDisabled
	}
	objects, err := s.storage.List(ctx, reportPrefix)
	if err != nil {
		return nil, err
	}
	out := make([]domain.ReportDTO, 0, len(objects))
	for _, o := range objects {
		out = append(out, domain.ReportDTO{Path: o.Name, Size: o.Size, GeneratedAt: o.ModifiedAt})
	}
	return out, nil
}

// Prune deletes reports older than maxAge and returns how many were removed
func (s *ReportService) Prune(ctx context.Context, maxAge time.Duration) (int, error) {
	if s.storage == nil {
		return 0, ErrStorageDisabled
	}
	objects, err := s.storage.List(ctx, reportPrefix)
	if err != nil {
		return 0, err
	}
	cutoff := s.now().Add(-maxAge)
	removed := 0
	for _, o := range objects {
		if !o.ModifiedAt.Before(cutoff) {
			continue
		}
		if err := s.storage.Delete(ctx, o.Name); err != nil {
			s.logger.Warn("failed to prune report", zap.String("path", o.Name), zap.Error(err))
			continue
		}
		removed++
	}
	return removed, nil
}
