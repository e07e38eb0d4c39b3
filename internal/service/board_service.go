package service

import (
	"context"
	"time"

	"github.com/straye-as/pipeline-gateway/internal/domain"
	"github.com/straye-as/pipeline-gateway/internal/mapper"
	"github.com/straye-as/pipeline-gateway/internal/pipeline"
	"go.uber.org/zap"
)

// BoardService builds the kanban board from the lead snapshot and the
// transitions that are still pending
type BoardService struct {
	leads       *LeadService
	transitions *TransitionService
	logger      *zap.Logger
	now         func() time.Time
}

func NewBoardService(leads *LeadService, transitions *TransitionService, logger *zap.Logger) *BoardService {
	return &BoardService{
		leads:       leads,
		transitions: transitions,
		logger:      logger,
		now:         time.Now,
	}
}

// SetClock replaces the service clock
func (s *BoardService) SetClock(now func() time.Time) {
	s.now = now
}

// Board groups the snapshot into one column per status. A lead with an
// in-flight transition is shown where the transition will put it; a lead
// waiting for confirmation stays in place. Both are flagged pending. Deletes
// and archives keep the card in place until they commit.
func (s *BoardService) Board(ctx context.Context, includeArchived bool) (*domain.BoardDTO, error) {
	snap, err := s.leads.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	now := s.now()
	overlay := s.transitions.Overlay()

	projected := make([]domain.Lead, 0, len(snap.Leads))
	for _, l := range snap.Leads {
		if p, ok := overlay[l.ID]; ok && p.Transition.State == domain.TransitionInFlight && !removesCard(p.Plan.Action) {
			l = pipeline.Apply(l, p.Plan, now.UTC())
		}
		projected = append(projected, l)
	}

	opts := pipeline.FilterOptions{IncludeArchived: includeArchived}
	groups := pipeline.GroupByStatus(projected, opts)
	aggregates := pipeline.AggregateByStatus(projected, opts)

	board := &domain.BoardDTO{
		Columns:         make([]domain.BoardColumnDTO, 0, len(aggregates)),
		IncludeArchived: includeArchived,
		FetchedAt:       snap.FetchedAt,
	}
	for _, agg := range aggregates {
		bucket := groups[agg.Status]
		cards := make([]domain.LeadCardDTO, 0, len(bucket))
		for i := range bucket {
			card := mapper.ToLeadCardDTO(&bucket[i], now)
			if p, ok := overlay[card.ID]; ok {
				card.Pending = true
				card.PendingAction = p.Transition.Action
				card.PendingTransitionID = p.Transition.ID
				board.PendingCount++
			}
			cards = append(cards, card)
		}
		board.Columns = append(board.Columns, mapper.ToBoardColumnDTO(agg, cards))
	}
	return board, nil
}

func removesCard(a domain.TransitionAction) bool {
	return a == domain.TransitionDelete || a == domain.TransitionArchive
}
