package pipeline

import (
	"fmt"
	"strings"
	"time"

	"github.com/straye-as/pipeline-gateway/internal/domain"
)

// Plan is a transition that passed its precondition check against one lead
type Plan struct {
	Action      domain.TransitionAction
	LeadID      string
	From        domain.LeadStatus
	To          domain.LeadStatus
	WasArchived bool
}

// preconditions per action. The lead passed in is the last fetched state.
var transitionRules = map[domain.TransitionAction]func(l *domain.Lead, target domain.LeadStatus) error{
	domain.TransitionMove: func(l *domain.Lead, target domain.LeadStatus) error {
		if l.Status.IsTerminal() {
			return fmt.Errorf("%w: %s", ErrTerminalStatus, l.Status)
		}
		if !target.IsValid() || target.IsTerminal() {
			return fmt.Errorf("%w: %q", ErrInvalidTarget, target)
		}
		if target == l.Status {
			return fmt.Errorf("%w: %s", ErrSameStatus, target)
		}
		return nil
	},
	domain.TransitionWon: func(l *domain.Lead, _ domain.LeadStatus) error {
		if l.Status.IsTerminal() {
			return fmt.Errorf("%w: %s", ErrTerminalStatus, l.Status)
		}
		return nil
	},
	domain.TransitionLost: func(l *domain.Lead, _ domain.LeadStatus) error {
		if l.Status.IsTerminal() {
			return fmt.Errorf("%w: %s", ErrTerminalStatus, l.Status)
		}
		return nil
	},
	domain.TransitionDelete: func(*domain.Lead, domain.LeadStatus) error {
		return nil
	},
	domain.TransitionArchive: func(l *domain.Lead, _ domain.LeadStatus) error {
		if l.IsArchived {
			return ErrAlreadyArchived
		}
		return nil
	},
	domain.TransitionRestore: func(l *domain.Lead, _ domain.LeadStatus) error {
		if !l.IsArchived {
			return ErrNotArchived
		}
		return nil
	},
}

// PlanTransition checks action against lead and returns the resulting plan.
// target is only read for moves.
func PlanTransition(lead domain.Lead, action domain.TransitionAction, target domain.LeadStatus) (Plan, error) {
	rule, ok := transitionRules[action]
	if !ok {
		return Plan{}, fmt.Errorf("%w: %q", ErrUnknownAction, action)
	}
	if err := rule(&lead, target); err != nil {
		return Plan{}, err
	}

	plan := Plan{
		Action:      action,
		LeadID:      lead.ID,
		From:        lead.Status,
		To:          lead.Status,
		WasArchived: lead.IsArchived,
	}
	switch action {
	case domain.TransitionMove:
		plan.To = target
	case domain.TransitionWon:
		plan.To = domain.LeadStatusWon
	case domain.TransitionLost:
		plan.To = domain.LeadStatusLost
	}
	return plan, nil
}

// Patch builds the partial update that carries out plan. Deletes have no patch.
func (p Plan) Patch(now time.Time) domain.LeadPatch {
	var patch domain.LeadPatch
	switch p.Action {
	case domain.TransitionMove:
		to := p.To
		patch.Status = &to
	case domain.TransitionWon:
		to := domain.LeadStatusWon
		at := now
		patch.Status = &to
		patch.WonAt = &at
		patch.ClearLostAt = true
	case domain.TransitionLost:
		to := domain.LeadStatusLost
		at := now
		patch.Status = &to
		patch.LostAt = &at
		patch.ClearWonAt = true
	case domain.TransitionArchive:
		archived := true
		patch.IsArchived = &archived
	case domain.TransitionRestore:
		archived := false
		patch.IsArchived = &archived
	}
	return patch
}

// Apply projects the effect of plan onto lead without touching the store.
// It is used to show a pending transition before the backend confirms it.
func Apply(lead domain.Lead, p Plan, now time.Time) domain.Lead {
	out := lead.Clone()
	switch p.Action {
	case domain.TransitionMove:
		out.Status = p.To
	case domain.TransitionWon:
		at := now
		out.Status = domain.LeadStatusWon
		out.WonAt = &at
		out.LostAt = nil
	case domain.TransitionLost:
		at := now
		out.Status = domain.LeadStatusLost
		out.LostAt = &at
		out.WonAt = nil
	case domain.TransitionArchive:
		out.IsArchived = true
	case domain.TransitionRestore:
		out.IsArchived = false
	}
	return out
}

// PrepareCreate applies the creation rules to a form submission: non-empty
// title, non-negative value, valid enums, LEAD_IN unless another status is
// given, and a closing timestamp when created directly as won or lost.
func PrepareCreate(req domain.CreateLeadRequest, now time.Time) (domain.LeadDraft, error) {
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return domain.LeadDraft{}, fmt.Errorf("%w: title is required", ErrInvalidLead)
	}
	if req.Value.IsNegative() {
		return domain.LeadDraft{}, fmt.Errorf("%w: value must not be negative", ErrInvalidLead)
	}

	status := req.Status
	if status == "" {
		status = domain.LeadStatusLeadIn
	}
	if !status.IsValid() {
		return domain.LeadDraft{}, fmt.Errorf("%w: %w", ErrInvalidLead, domain.ErrInvalidLeadStatus)
	}
	priority := req.Priority
	if priority == "" {
		priority = domain.LeadPriorityMedium
	}
	if !priority.IsValid() {
		return domain.LeadDraft{}, fmt.Errorf("%w: %w", ErrInvalidLead, domain.ErrInvalidLeadPriority)
	}
	if !req.ClientType.IsValid() {
		return domain.LeadDraft{}, fmt.Errorf("%w: %w", ErrInvalidLead, domain.ErrInvalidClientType)
	}

	draft := domain.LeadDraft{
		Title:           title,
		Company:         req.Company,
		Email:           req.Email,
		Phone:           req.Phone,
		Contacts:        req.Contacts,
		Value:           req.Value,
		Currency:        strings.ToUpper(req.Currency),
		Status:          status,
		Priority:        priority,
		ClientType:      req.ClientType,
		Label:           req.Label,
		DueDate:         req.DueDate,
		AssignedUserIDs: req.AssignedUserIDs,
	}
	switch status {
	case domain.LeadStatusWon:
		at := now
		draft.WonAt = &at
	case domain.LeadStatusLost:
		at := now
		draft.LostAt = &at
	}
	return draft, nil
}
