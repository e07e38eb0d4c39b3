package service_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/straye-as/pipeline-gateway/internal/domain"
	"github.com/straye-as/pipeline-gateway/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBoardService_Board(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	now := time.Now().UTC()

	overdue := testutil.OpenLead("c", "Initech", domain.LeadStatusNegotiation, 50, "EUR")
	due := now.Add(-48 * time.Hour)
	overdue.DueDate = &due
	archived := testutil.OpenLead("d", "Archived", domain.LeadStatusLeadIn, 999, "USD")
	archived.IsArchived = true
	won := testutil.OpenLead("e", "Signed", domain.LeadStatusWon, 70, "USD")
	won.WonAt = &now

	f.backend.Seed(
		testutil.OpenLead("a", "Acme", domain.LeadStatusLeadIn, 100, "USD"),
		testutil.OpenLead("b", "Globex", domain.LeadStatusNegotiation, 200, "USD"),
		overdue,
		archived,
		won,
	)

	board, err := f.board.Board(ctx, false)
	require.NoError(t, err)
	require.Len(t, board.Columns, 8)

	statuses := make([]domain.LeadStatus, 0, 8)
	for _, col := range board.Columns {
		statuses = append(statuses, col.Status)
	}
	assert.Equal(t, domain.LeadStatuses(), statuses)

	leadIn := board.Columns[0]
	assert.Equal(t, "Lead In", leadIn.Label)
	assert.Equal(t, 1, leadIn.Count, "archived leads are hidden by default")
	assert.True(t, leadIn.TotalValue.Equal(decimal.NewFromInt(100)))

	negotiation := board.Columns[4]
	assert.Equal(t, domain.LeadStatusNegotiation, negotiation.Status)
	assert.Equal(t, 2, negotiation.Count)
	assert.True(t, negotiation.TotalValue.Equal(decimal.NewFromInt(250)))
	assert.True(t, negotiation.MixedCurrency)
	assert.Equal(t, []string{"b", "c"}, []string{negotiation.Leads[0].ID, negotiation.Leads[1].ID})
	assert.True(t, negotiation.Leads[1].Overdue)

	wonCol := board.Columns[6]
	assert.True(t, wonCol.Terminal)
	assert.Equal(t, 1, wonCol.Count)
	assert.False(t, wonCol.MixedCurrency)

	for _, col := range board.Columns {
		assert.NotNil(t, col.Leads)
	}
	assert.Zero(t, board.PendingCount)

	withArchived, err := f.board.Board(ctx, true)
	require.NoError(t, err)
	assert.True(t, withArchived.IncludeArchived)
	assert.Equal(t, 2, withArchived.Columns[0].Count)
}

func TestBoardService_PendingCards(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.backend.Seed(
		testutil.OpenLead("a", "Acme", domain.LeadStatusProposalMade, 100, "USD"),
		testutil.OpenLead("b", "Globex", domain.LeadStatusProposalMade, 100, "USD"),
	)

	lost, err := f.transitions.Begin(ctx, "a", action(domain.TransitionLost))
	require.NoError(t, err)
	del, err := f.transitions.Begin(ctx, "b", action(domain.TransitionDelete))
	require.NoError(t, err)

	board, err := f.board.Board(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, 2, board.PendingCount)

	proposal := board.Columns[3]
	require.Equal(t, 2, proposal.Count, "nothing moves before confirmation")
	assert.Equal(t, domain.TransitionLost, proposal.Leads[0].PendingAction)
	assert.Equal(t, lost.ID, proposal.Leads[0].PendingTransitionID)
	assert.Equal(t, domain.TransitionDelete, proposal.Leads[1].PendingAction)
	assert.Equal(t, del.ID, proposal.Leads[1].PendingTransitionID)
	assert.Zero(t, board.Columns[7].Count)
}

func TestBoardService_InFlightArchiveStaysPending(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.backend.Seed(
		testutil.OpenLead("a", "Acme", domain.LeadStatusProposalMade, 100, "USD"),
		testutil.OpenLead("b", "Globex", domain.LeadStatusProposalMade, 100, "USD"),
	)
	_, err := f.leads.Refresh(ctx)
	require.NoError(t, err)

	entered, release := f.backend.HoldNext(http.MethodPut, "/leads/a")
	defer release()

	done := make(chan domain.Transition, 1)
	go func() {
		tr, _ := f.transitions.Begin(ctx, "a", action(domain.TransitionArchive))
		done <- tr
	}()
	<-entered

	board, err := f.board.Board(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, 1, board.PendingCount)
	assert.Equal(t, 2, board.Columns[3].Count, "the archived card stays until the backend confirms")
	card := findCard(t, board, "a")
	assert.True(t, card.Pending)
	assert.Equal(t, domain.TransitionArchive, card.PendingAction)

	release()
	tr := <-done
	require.Equal(t, domain.TransitionCommitted, tr.State)

	board, err = f.board.Board(ctx, false)
	require.NoError(t, err)
	assert.Zero(t, board.PendingCount)
	assert.Equal(t, 1, board.Columns[3].Count)
}
