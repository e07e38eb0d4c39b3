package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/straye-as/pipeline-gateway/internal/domain"
	"github.com/straye-as/pipeline-gateway/internal/logger"
	"github.com/straye-as/pipeline-gateway/internal/pipeline"
	"github.com/straye-as/pipeline-gateway/internal/telemetry"
	"github.com/straye-as/pipeline-gateway/internal/upstream"
	"go.uber.org/zap"
)

// PendingTransition is an unfinished transition together with its plan
type PendingTransition struct {
	Transition domain.Transition
	Plan       pipeline.Plan
}

// DefaultConfirmationTimeout is how long a transition may await confirmation
// before it is cancelled
const DefaultConfirmationTimeout = 15 * time.Minute

const confirmationExpiredMessage = "Confirmation timed out"

type transitionEntry struct {
	transition domain.Transition
	plan       pipeline.Plan
}

// TransitionService runs lead transitions. Each transition is planned against
// the last fetched lead, optionally waits for confirmation, is sent to the
// backend once and is followed by a refetch. A lead has at most one
// unfinished transition at a time.
type TransitionService struct {
	leads      *LeadService
	client     *upstream.Client
	activities *ActivityService
	logger     *zap.Logger
	now        func() time.Time
	timeout    time.Duration

	mu      sync.Mutex
	entries map[string]*transitionEntry
	byLead  map[string]string
}

func NewTransitionService(leads *LeadService, client *upstream.Client, activities *ActivityService, logger *zap.Logger) *TransitionService {
	return &TransitionService{
		leads:      leads,
		client:     client,
		activities: activities,
		logger:     logger,
		now:        time.Now,
		timeout:    DefaultConfirmationTimeout,
		entries:    make(map[string]*transitionEntry),
		byLead:     make(map[string]string),
	}
}

// SetClock replaces the service clock
func (s *TransitionService) SetClock(now func() time.Time) {
	s.now = now
}

// SetConfirmationTimeout changes how long a transition may await
// confirmation. Zero or less keeps them until confirmed or cancelled.
func (s *TransitionService) SetConfirmationTimeout(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.timeout = d
}

// Begin starts a transition on a lead. Actions that need confirmation stop
// in awaiting_confirmation; the rest are executed before Begin returns.
func (s *TransitionService) Begin(ctx context.Context, leadID string, req *domain.TransitionRequest) (domain.Transition, error) {
	if err := validateStruct(req); err != nil {
		return domain.Transition{}, err
	}
	if !req.Action.IsValid() {
		return domain.Transition{}, fmt.Errorf("%w: %w", ErrInvalidInput, domain.ErrInvalidTransitionAction)
	}

	lead, err := s.leads.Get(ctx, leadID)
	if err != nil {
		return domain.Transition{}, err
	}
	plan, err := pipeline.PlanTransition(lead, req.Action, req.Target)
	if err != nil {
		return domain.Transition{}, fmt.Errorf("%w: %w", ErrInvalidTransition, err)
	}

	now := s.now().UTC()
	entry := &transitionEntry{
		plan: plan,
		transition: domain.Transition{
			ID:        uuid.NewString(),
			LeadID:    leadID,
			Action:    plan.Action,
			From:      plan.From,
			To:        plan.To,
			State:     domain.TransitionInFlight,
			CreatedAt: now,
			UpdatedAt: now,
		},
	}
	if plan.Action.RequiresConfirmation() {
		entry.transition.State = domain.TransitionAwaitingConfirmation
	}

	s.mu.Lock()
	expired := s.expireLocked(now)
	if existing, busy := s.byLead[leadID]; busy {
		s.mu.Unlock()
		s.recordExpired(expired)
		return domain.Transition{}, fmt.Errorf("%w: %s", ErrTransitionInFlight, existing)
	}
	s.entries[entry.transition.ID] = entry
	s.byLead[leadID] = entry.transition.ID
	started := entry.transition
	s.mu.Unlock()
	s.recordExpired(expired)

	logger.WithTransition(s.logger, started.ID, leadID, string(plan.Action)).
		Info("transition started", zap.String("state", string(started.State)))
	telemetry.RecordTransition(string(plan.Action), string(started.State))

	if started.State == domain.TransitionAwaitingConfirmation {
		return started, nil
	}
	return s.execute(ctx, entry)
}

// Confirm executes a transition that is awaiting confirmation. The lead is
// re-checked against the latest snapshot first.
func (s *TransitionService) Confirm(ctx context.Context, id string) (domain.Transition, error) {
	s.mu.Lock()
	entry, ok := s.entries[id]
	if !ok {
		s.mu.Unlock()
		return domain.Transition{}, fmt.Errorf("%w: %s", ErrTransitionNotFound, id)
	}
	if entry.transition.State.IsFinished() {
		t := entry.transition
		s.mu.Unlock()
		return t, fmt.Errorf("%w: %s", ErrTransitionFinished, t.State)
	}
	if entry.transition.State != domain.TransitionAwaitingConfirmation {
		t := entry.transition
		s.mu.Unlock()
		return t, ErrNotAwaitingConfirmation
	}
	if s.expiredLocked(entry, s.now().UTC()) {
		t := s.finishLocked(entry, domain.TransitionCancelled, "", confirmationExpiredMessage)
		s.mu.Unlock()
		s.recordExpired([]domain.Transition{t})
		return t, fmt.Errorf("%w: %s", ErrTransitionFinished, t.State)
	}
	entry.transition.State = domain.TransitionInFlight
	entry.transition.UpdatedAt = s.now().UTC()
	s.mu.Unlock()

	lead, err := s.leads.Get(ctx, entry.transition.LeadID)
	if err != nil {
		t := s.finish(entry, domain.TransitionRolledBack, "", BackendMessage(err))
		return t, err
	}
	plan, err := pipeline.PlanTransition(lead, entry.plan.Action, entry.plan.To)
	if err != nil {
		t := s.finish(entry, domain.TransitionRolledBack, "", err.Error())
		return t, fmt.Errorf("%w: %w", ErrInvalidTransition, err)
	}

	s.mu.Lock()
	entry.plan = plan
	entry.transition.From = plan.From
	s.mu.Unlock()

	return s.execute(ctx, entry)
}

// Cancel drops a transition that is still awaiting confirmation
func (s *TransitionService) Cancel(id string) (domain.Transition, error) {
	s.mu.Lock()
	entry, ok := s.entries[id]
	if !ok {
		s.mu.Unlock()
		return domain.Transition{}, fmt.Errorf("%w: %s", ErrTransitionNotFound, id)
	}
	t := entry.transition
	if t.State.IsFinished() {
		s.mu.Unlock()
		return t, fmt.Errorf("%w: %s", ErrTransitionFinished, t.State)
	}
	if t.State != domain.TransitionAwaitingConfirmation {
		s.mu.Unlock()
		return t, ErrNotAwaitingConfirmation
	}
	t = s.finishLocked(entry, domain.TransitionCancelled, "", "")
	s.mu.Unlock()

	telemetry.RecordTransition(string(t.Action), string(t.State))
	s.logger.Info("transition cancelled", zap.String("transitionId", t.ID), zap.String("leadId", t.LeadID))
	return t, nil
}

// execute sends the planned mutation. On success the store is refetched; on
// failure the transition is rolled back and carries the backend's message.
func (s *TransitionService) execute(ctx context.Context, entry *transitionEntry) (domain.Transition, error) {
	s.mu.Lock()
	plan := entry.plan
	s.mu.Unlock()

	var (
		message string
		err     error
	)
	if plan.Action == domain.TransitionDelete {
		message, err = s.client.DeleteLead(ctx, plan.LeadID)
	} else {
		var res *upstream.LeadResult
		res, err = s.client.UpdateLead(ctx, plan.LeadID, plan.Patch(s.now().UTC()))
		if res != nil {
			message = res.Message
		}
	}

	if err != nil {
		t := s.finish(entry, domain.TransitionRolledBack, "", BackendMessage(err))
		logger.WithTransition(s.logger, t.ID, plan.LeadID, string(plan.Action)).
			Warn("transition rolled back", zap.Error(err))
		if errors.Is(err, upstream.ErrNotFound) {
			s.leads.Invalidate()
		}
		return t, fmt.Errorf("transition %s failed: %w", plan.Action, translate(err))
	}

	s.leads.refreshAfterWrite(ctx)
	t := s.finish(entry, domain.TransitionCommitted, message, "")
	logger.WithTransition(s.logger, t.ID, plan.LeadID, string(plan.Action)).
		Info("transition committed", zap.String("to", string(plan.To)))

	if plan.Action.ChangesStatus() && s.activities != nil {
		if err := s.activities.RecordStatusChange(ctx, plan); err != nil {
			s.logger.Warn("failed to record status change activity",
				zap.String("leadId", plan.LeadID),
				zap.Error(err),
			)
		}
	}
	return t, nil
}

// finish moves an entry to a finished state and frees its lead
func (s *TransitionService) finish(entry *transitionEntry, state domain.TransitionState, message, errMsg string) domain.Transition {
	s.mu.Lock()
	t := s.finishLocked(entry, state, message, errMsg)
	s.mu.Unlock()

	telemetry.RecordTransition(string(t.Action), string(state))
	return t
}

// finishLocked must be called with s.mu held
func (s *TransitionService) finishLocked(entry *transitionEntry, state domain.TransitionState, message, errMsg string) domain.Transition {
	entry.transition.State = state
	entry.transition.Message = message
	entry.transition.Error = errMsg
	entry.transition.UpdatedAt = s.now().UTC()
	if s.byLead[entry.transition.LeadID] == entry.transition.ID {
		delete(s.byLead, entry.transition.LeadID)
	}
	return entry.transition
}

// Get returns a transition by id
func (s *TransitionService) Get(id string) (domain.Transition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[id]
	if !ok {
		return domain.Transition{}, fmt.Errorf("%w: %s", ErrTransitionNotFound, id)
	}
	return entry.transition, nil
}

// List returns every retained transition, newest first
func (s *TransitionService) List() []domain.Transition {
	s.mu.Lock()
	out := make([]domain.Transition, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, e.transition)
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// Overlay returns the unfinished transitions keyed by lead id
func (s *TransitionService) Overlay() map[string]PendingTransition {
	s.mu.Lock()
	expired := s.expireLocked(s.now().UTC())
	out := make(map[string]PendingTransition, len(s.byLead))
	for leadID, id := range s.byLead {
		e := s.entries[id]
		out[leadID] = PendingTransition{Transition: e.transition, Plan: e.plan}
	}
	s.mu.Unlock()
	s.recordExpired(expired)
	return out
}

// ExpireAwaiting cancels transitions that waited for confirmation longer than
// the confirmation timeout and returns how many were cancelled
func (s *TransitionService) ExpireAwaiting() int {
	s.mu.Lock()
	expired := s.expireLocked(s.now().UTC())
	s.mu.Unlock()
	s.recordExpired(expired)
	return len(expired)
}

// expireLocked must be called with s.mu held
func (s *TransitionService) expireLocked(now time.Time) []domain.Transition {
	var expired []domain.Transition
	for _, id := range s.byLead {
		e := s.entries[id]
		if s.expiredLocked(e, now) {
			expired = append(expired, s.finishLocked(e, domain.TransitionCancelled, "", confirmationExpiredMessage))
		}
	}
	return expired
}

func (s *TransitionService) expiredLocked(e *transitionEntry, now time.Time) bool {
	return s.timeout > 0 &&
		e.transition.State == domain.TransitionAwaitingConfirmation &&
		!now.Before(e.transition.CreatedAt.Add(s.timeout))
}

func (s *TransitionService) recordExpired(expired []domain.Transition) {
	for _, t := range expired {
		telemetry.RecordTransition(string(t.Action), string(t.State))
		logger.WithTransition(s.logger, t.ID, t.LeadID, string(t.Action)).Info("transition confirmation expired")
	}
}

// PurgeFinished forgets finished transitions last updated more than
// olderThan ago and returns how many were removed
func (s *TransitionService) PurgeFinished(olderThan time.Duration) int {
	cutoff := s.now().UTC().Add(-olderThan)
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, e := range s.entries {
		if e.transition.State.IsFinished() && e.transition.UpdatedAt.Before(cutoff) {
			delete(s.entries, id)
			removed++
		}
	}
	return removed
}
