package jobs

import (
	"context"
	"time"

	"github.com/straye-as/pipeline-gateway/internal/config"
	"github.com/straye-as/pipeline-gateway/internal/domain"
	"github.com/straye-as/pipeline-gateway/internal/pipeline"
	"github.com/straye-as/pipeline-gateway/internal/service"
	"go.uber.org/zap"
)

const (
	RefreshJobName      = "lead_refresh"
	TransitionGCJobName = "transition_gc"
	ReportJobName       = "pipeline_report"
	ConsistencyJobName  = "grouping_check"
)

// LeadRefresher refetches the lead snapshot
type LeadRefresher interface {
	Refresh(ctx context.Context) (pipeline.Snapshot, error)
}

// LeadSource is what the lead jobs need from the lead service
type LeadSource interface {
	LeadRefresher
	GroupingChecker
}

// GroupingChecker compares the backend's grouping with the local snapshot
type GroupingChecker interface {
	CheckGrouping(ctx context.Context) ([]service.GroupingDrift, error)
}

// TransitionPurger cancels stale confirmations and drops finished
// transitions older than a retention window
type TransitionPurger interface {
	ExpireAwaiting() int
	PurgeFinished(olderThan time.Duration) int
}

// ReportExporter writes a pipeline report and prunes old ones
type ReportExporter interface {
	Export(ctx context.Context, includeArchived bool) (*domain.ReportDTO, error)
	Prune(ctx context.Context, maxAge time.Duration) (int, error)
}

// Runner wraps each job with a timeout and timing logs
type Runner struct {
	logger  *zap.Logger
	timeout time.Duration
}

func NewRunner(logger *zap.Logger, timeout time.Duration) *Runner {
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &Runner{logger: logger, timeout: timeout}
}

func (r *Runner) run(name string, fn func(ctx context.Context) ([]zap.Field, error)) func() {
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
		defer cancel()

		start := time.Now()
		fields, err := fn(ctx)
		fields = append(fields, zap.String("job_name", name), zap.Duration("duration", time.Since(start)))
		if err != nil {
			r.logger.Error("scheduled job failed", append(fields, zap.Error(err))...)
			return
		}
		r.logger.Info("scheduled job completed", fields...)
	}
}

// RefreshJob keeps the snapshot warm between user requests
func (r *Runner) RefreshJob(leads LeadRefresher) func() {
	return r.run(RefreshJobName, func(ctx context.Context) ([]zap.Field, error) {
		snap, err := leads.Refresh(ctx)
		if err != nil {
			return nil, err
		}
		return []zap.Field{zap.Int("leads", len(snap.Leads))}, nil
	})
}

// ConsistencyJob warns when the snapshot and the backend disagree on counts
func (r *Runner) ConsistencyJob(leads GroupingChecker) func() {
	return r.run(ConsistencyJobName, func(ctx context.Context) ([]zap.Field, error) {
		drift, err := leads.CheckGrouping(ctx)
		if err != nil {
			return nil, err
		}
		for _, d := range drift {
			r.logger.Warn("lead grouping drift",
				zap.String("status", string(d.Status)),
				zap.Int("backend", d.Backend),
				zap.Int("local", d.Local))
		}
		return []zap.Field{zap.Int("drifted_statuses", len(drift))}, nil
	})
}

// TransitionGCJob cancels expired confirmations, then forgets finished
// transitions after the retention window
func (r *Runner) TransitionGCJob(transitions TransitionPurger, retention time.Duration) func() {
	return r.run(TransitionGCJobName, func(context.Context) ([]zap.Field, error) {
		expired := transitions.ExpireAwaiting()
		return []zap.Field{
			zap.Int("expired", expired),
			zap.Int("purged", transitions.PurgeFinished(retention)),
		}, nil
	})
}

// ReportJob exports a snapshot report and prunes expired ones
func (r *Runner) ReportJob(reports ReportExporter, includeArchived bool, maxAge time.Duration) func() {
	return r.run(ReportJobName, func(ctx context.Context) ([]zap.Field, error) {
		report, err := reports.Export(ctx, includeArchived)
		if err != nil {
			return nil, err
		}
		fields := []zap.Field{zap.String("path", report.Path), zap.Int64("size", report.Size)}
		if maxAge > 0 {
			pruned, err := reports.Prune(ctx, maxAge)
			if err != nil {
				return fields, err
			}
			fields = append(fields, zap.Int("pruned", pruned))
		}
		return fields, nil
	})
}

// Register adds every configured pipeline job to s. reports may be nil when
// report storage is disabled.
func Register(s *Scheduler, r *Runner, cfg *config.PipelineConfig, leads LeadSource, transitions TransitionPurger, reports ReportExporter) error {
	if err := s.AddJob(RefreshJobName, cfg.RefreshCron, r.RefreshJob(leads)); err != nil {
		return err
	}
	if err := s.AddJob(ConsistencyJobName, cfg.ConsistencyCron, r.ConsistencyJob(leads)); err != nil {
		return err
	}
	if err := s.AddJob(TransitionGCJobName, cfg.GCCron, r.TransitionGCJob(transitions, cfg.TransitionRetention())); err != nil {
		return err
	}
	if reports == nil {
		return nil
	}
	return s.AddJob(ReportJobName, cfg.ReportCron, r.ReportJob(reports, cfg.IncludeArchivedDefault, cfg.ReportMaxAge()))
}
