package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/straye-as/pipeline-gateway/internal/domain"
	"github.com/straye-as/pipeline-gateway/internal/pipeline"
	"github.com/straye-as/pipeline-gateway/internal/telemetry"
	"github.com/straye-as/pipeline-gateway/internal/upstream"
	"go.uber.org/zap"
)

// LeadFilter narrows a lead listing
type LeadFilter struct {
	IncludeArchived bool
	Status          domain.LeadStatus
	Priority        domain.LeadPriority
	Query           string
}

// GroupingDrift is a status whose lead count differs between the backend's
// own grouping and the local snapshot
type GroupingDrift struct {
	Status  domain.LeadStatus
	Backend int
	Local   int
}

// LeadService owns the lead snapshot and every read and write of lead data
type LeadService struct {
	client *upstream.Client
	store  *pipeline.Store
	logger *zap.Logger
	now    func() time.Time
}

func NewLeadService(client *upstream.Client, store *pipeline.Store, logger *zap.Logger) *LeadService {
	return &LeadService{
		client: client,
		store:  store,
		logger: logger,
		now:    time.Now,
	}
}

// SetClock replaces the service clock
func (s *LeadService) SetClock(now func() time.Time) {
	s.now = now
}

// Refresh refetches the full lead collection and installs it in the store.
// A refetch that finishes after a newer one is dropped.
func (s *LeadService) Refresh(ctx context.Context) (pipeline.Snapshot, error) {
	ticket := s.store.BeginFetch()
	list, err := s.client.ListLeads(ctx)
	if err != nil {
		s.store.Invalidate()
		return pipeline.Snapshot{}, fmt.Errorf("failed to fetch leads: %w", translate(err))
	}

	installed, rejected := s.store.Replace(ticket, list.Leads, s.now().UTC())
	for _, r := range rejected {
		s.logger.Warn("dropping lead that breaks pipeline invariants",
			zap.String("leadId", r.LeadID),
			zap.Error(r.Err),
		)
	}
	if !installed {
		s.logger.Debug("discarding stale lead refetch", zap.Uint64("ticket", ticket))
	}

	snap := s.store.Snapshot()
	telemetry.RecordSnapshot(len(snap.Leads), len(rejected)+list.Skipped)
	return snap, nil
}

// Snapshot returns the current snapshot, refetching first when it is stale
func (s *LeadService) Snapshot(ctx context.Context) (pipeline.Snapshot, error) {
	if s.store.IsStale() {
		return s.Refresh(ctx)
	}
	return s.store.Snapshot(), nil
}

// CheckGrouping compares per-status counts from GET /leads/by-status with the
// snapshot, archived leads included. Leads dropped for breaking invariants
// show up as drift.
func (s *LeadService) CheckGrouping(ctx context.Context) ([]GroupingDrift, error) {
	remote, err := s.client.ListLeadsByStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch grouped leads: %w", translate(err))
	}
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}

	backend := make(map[domain.LeadStatus]int, len(domain.LeadStatuses()))
	if len(remote.Stats) > 0 {
		for _, st := range remote.Stats {
			backend[st.Status] = st.Count
		}
	} else {
		for status, leads := range remote.Grouped {
			backend[status] = len(leads)
		}
	}

	var drift []GroupingDrift
	for _, agg := range pipeline.AggregateByStatus(snap.Leads, pipeline.FilterOptions{IncludeArchived: true}) {
		if n := backend[agg.Status]; n != agg.Count {
			drift = append(drift, GroupingDrift{Status: agg.Status, Backend: n, Local: agg.Count})
		}
	}
	return drift, nil
}

// Invalidate forces the next read to refetch
func (s *LeadService) Invalidate() {
	s.store.Invalidate()
}

// List returns leads from the snapshot matching filter, in backend order
func (s *LeadService) List(ctx context.Context, filter LeadFilter) ([]domain.Lead, error) {
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}

	query := strings.ToLower(strings.TrimSpace(filter.Query))
	out := make([]domain.Lead, 0, len(snap.Leads))
	for _, l := range pipeline.Filter(snap.Leads, pipeline.FilterOptions{IncludeArchived: filter.IncludeArchived}) {
		if filter.Status != "" && l.Status != filter.Status {
			continue
		}
		if filter.Priority != "" && l.Priority != filter.Priority {
			continue
		}
		if query != "" && !matches(&l, query) {
			continue
		}
		out = append(out, l.Clone())
	}
	return out, nil
}

func matches(l *domain.Lead, query string) bool {
	for _, field := range []string{l.Title, l.Company, l.Email, l.Label} {
		if strings.Contains(strings.ToLower(field), query) {
			return true
		}
	}
	return false
}

// Get returns one lead. A lead missing from the snapshot triggers one refetch
// before it is reported as not found.
func (s *LeadService) Get(ctx context.Context, id string) (domain.Lead, error) {
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return domain.Lead{}, err
	}
	if lead, ok := snap.Find(id); ok {
		return lead, nil
	}

	snap, err = s.Refresh(ctx)
	if err != nil {
		return domain.Lead{}, err
	}
	if lead, ok := snap.Find(id); ok {
		return lead, nil
	}
	return domain.Lead{}, fmt.Errorf("%w: lead %s", ErrNotFound, id)
}

// Create validates a new lead, sends it to the backend and refetches
func (s *LeadService) Create(ctx context.Context, req *domain.CreateLeadRequest) (domain.Lead, error) {
	if err := validateStruct(req); err != nil {
		return domain.Lead{}, err
	}
	draft, err := pipeline.PrepareCreate(*req, s.now().UTC())
	if err != nil {
		return domain.Lead{}, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}

	res, err := s.client.CreateLead(ctx, draft)
	if err != nil {
		return domain.Lead{}, fmt.Errorf("failed to create lead: %w", translate(err))
	}
	s.logger.Info("lead created",
		zap.String("leadId", res.Lead.ID),
		zap.String("status", string(res.Lead.Status)),
	)

	s.refreshAfterWrite(ctx)
	return s.resolve(res.Lead), nil
}

// Update edits descriptive fields of a lead. Status and archival change only
// through transitions.
func (s *LeadService) Update(ctx context.Context, id string, req *domain.UpdateLeadRequest) (domain.Lead, error) {
	if err := validateStruct(req); err != nil {
		return domain.Lead{}, err
	}
	if req.Value != nil && req.Value.IsNegative() {
		return domain.Lead{}, fmt.Errorf("%w: value must not be negative", ErrInvalidInput)
	}
	if req.Title != nil && strings.TrimSpace(*req.Title) == "" {
		return domain.Lead{}, fmt.Errorf("%w: title is required", ErrInvalidInput)
	}
	if req.Priority != nil && !req.Priority.IsValid() {
		return domain.Lead{}, fmt.Errorf("%w: %w", ErrInvalidInput, domain.ErrInvalidLeadPriority)
	}

	patch := domain.LeadPatch{
		Title:           trimmed(req.Title),
		Company:         req.Company,
		Email:           req.Email,
		Phone:           req.Phone,
		Contacts:        req.Contacts,
		Value:           req.Value,
		Priority:        req.Priority,
		ClientType:      req.ClientType,
		Label:           req.Label,
		DueDate:         req.DueDate,
		AssignedUserIDs: req.AssignedUserIDs,
	}
	if req.Currency != nil {
		c := strings.ToUpper(*req.Currency)
		patch.Currency = &c
	}
	if patch.IsEmpty() {
		return domain.Lead{}, fmt.Errorf("%w: no fields to update", ErrInvalidInput)
	}

	res, err := s.client.UpdateLead(ctx, id, patch)
	if err != nil {
		return domain.Lead{}, fmt.Errorf("failed to update lead: %w", translate(err))
	}
	s.logger.Info("lead updated", zap.String("leadId", id))

	s.refreshAfterWrite(ctx)
	return s.resolve(res.Lead), nil
}

// refreshAfterWrite refetches after a committed mutation. A failed refetch
// leaves the store marked stale so the next read retries.
func (s *LeadService) refreshAfterWrite(ctx context.Context) {
	if _, err := s.Refresh(ctx); err != nil {
		s.logger.Warn("refetch after write failed", zap.Error(err))
	}
}

// resolve prefers the refetched copy of a lead over the mutation response
func (s *LeadService) resolve(lead domain.Lead) domain.Lead {
	if fresh, ok := s.store.Snapshot().Find(lead.ID); ok {
		return fresh
	}
	return lead
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	t := strings.TrimSpace(*s)
	return &t
}
