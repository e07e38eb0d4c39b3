package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/straye-as/pipeline-gateway/internal/domain"
	"github.com/straye-as/pipeline-gateway/internal/mapper"
	"github.com/straye-as/pipeline-gateway/internal/pipeline"
	"github.com/straye-as/pipeline-gateway/internal/upstream"
	"go.uber.org/zap"
)

var hundred = decimal.NewFromInt(100)

// ActivityService reads and appends lead activities
type ActivityService struct {
	client *upstream.Client
	logger *zap.Logger
	now    func() time.Time
}

func NewActivityService(client *upstream.Client, logger *zap.Logger) *ActivityService {
	return &ActivityService{
		client: client,
		logger: logger,
		now:    time.Now,
	}
}

// SetClock replaces the service clock
func (s *ActivityService) SetClock(now func() time.Time) {
	s.now = now
}

// Create validates an activity, normalises its meta payload and posts it
func (s *ActivityService) Create(ctx context.Context, leadID string, req *domain.CreateActivityRequest) (*domain.LeadActivity, error) {
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	if !req.Type.IsValid() {
		return nil, fmt.Errorf("%w: unknown activity type %q", ErrInvalidInput, req.Type)
	}
	if req.Type == domain.ActivityTypeStatusChange {
		return nil, fmt.Errorf("%w: status changes are recorded by transitions", ErrInvalidInput)
	}

	meta, err := normalizeMeta(req.Type, req.Meta)
	if err != nil {
		return nil, err
	}
	body := *req
	body.Title = strings.TrimSpace(body.Title)
	body.Meta = meta

	activity, err := s.client.CreateActivity(ctx, leadID, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create activity: %w", translate(err))
	}
	s.logger.Info("activity created",
		zap.String("leadId", leadID),
		zap.String("type", string(activity.Type)),
	)
	return activity, nil
}

// normalizeMeta validates type-specific meta and fills derived fields such as
// invoice totals. Types without structured meta pass through unchanged.
func normalizeMeta(t domain.ActivityType, raw json.RawMessage) (json.RawMessage, error) {
	switch t {
	case domain.ActivityTypeInvoice:
		if len(raw) == 0 {
			return nil, fmt.Errorf("%w: invoice activities need line items", ErrInvalidInput)
		}
		var meta domain.InvoiceMeta
		if err := json.Unmarshal(raw, &meta); err != nil {
			return nil, fmt.Errorf("%w: invalid invoice: %w", ErrInvalidInput, err)
		}
		if err := validateStruct(&meta); err != nil {
			return nil, err
		}
		for i, item := range meta.Items {
			if !item.Quantity.IsPositive() {
				return nil, fmt.Errorf("%w: item %d quantity must be positive", ErrInvalidInput, i+1)
			}
			if item.UnitPrice.IsNegative() {
				return nil, fmt.Errorf("%w: item %d unit price must not be negative", ErrInvalidInput, i+1)
			}
		}
		if meta.TaxRate.IsNegative() || meta.TaxRate.GreaterThan(hundred) {
			return nil, fmt.Errorf("%w: tax rate must be between 0 and 100", ErrInvalidInput)
		}
		meta.Currency = strings.ToUpper(meta.Currency)
		meta.ComputeTotals()
		return json.Marshal(meta)

	case domain.ActivityTypeCall, domain.ActivityTypeMeeting:
		if len(raw) == 0 {
			return raw, nil
		}
		var meta domain.CallMeta
		if err := json.Unmarshal(raw, &meta); err != nil {
			return nil, fmt.Errorf("%w: invalid %s details: %w", ErrInvalidInput, t, err)
		}
		if err := validateStruct(&meta); err != nil {
			return nil, err
		}
		return json.Marshal(meta)
	}
	return raw, nil
}

// List returns a lead's activities newest first
func (s *ActivityService) List(ctx context.Context, leadID string) ([]domain.LeadActivity, error) {
	activities, err := s.client.ListActivities(ctx, leadID)
	if err != nil {
		return nil, fmt.Errorf("failed to list activities: %w", translate(err))
	}
	sort.SliceStable(activities, func(i, j int) bool {
		return activities[i].CreatedAt.After(activities[j].CreatedAt)
	})
	return activities, nil
}

// Feed returns a lead's activities rendered as feed entries, newest first
func (s *ActivityService) Feed(ctx context.Context, leadID string) ([]domain.FeedItemDTO, error) {
	activities, err := s.List(ctx, leadID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	items := make([]domain.FeedItemDTO, len(activities))
	for i := range activities {
		items[i] = mapper.ToFeedItemDTO(&activities[i], now)
	}
	return items, nil
}

// RecordStatusChange appends the status_change entry for a committed transition
func (s *ActivityService) RecordStatusChange(ctx context.Context, plan pipeline.Plan) error {
	meta, err := json.Marshal(domain.StatusChangeMeta{From: plan.From, To: plan.To, Action: string(plan.Action)})
	if err != nil {
		return err
	}
	_, err = s.client.CreateActivity(ctx, plan.LeadID, domain.CreateActivityRequest{
		Type:    domain.ActivityTypeStatusChange,
		Title:   fmt.Sprintf("Moved to %s", plan.To.Label()),
		Content: fmt.Sprintf("%s → %s", plan.From.Label(), plan.To.Label()),
		Meta:    meta,
	})
	if err != nil {
		return fmt.Errorf("failed to record status change: %w", translate(err))
	}
	return nil
}
