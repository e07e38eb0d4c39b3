package pipeline_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/straye-as/pipeline-gateway/internal/domain"
	"github.com/straye-as/pipeline-gateway/internal/pipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlanTransition_Rules(t *testing.T) {
	open := newLead("open", domain.LeadStatusContactMade, 100, "USD")
	won := newLead("won", domain.LeadStatusWon, 100, "USD")
	archived := newLead("arch", domain.LeadStatusLeadIn, 100, "USD")
	archived.IsArchived = true

	tests := []struct {
		name    string
		lead    domain.Lead
		action  domain.TransitionAction
		target  domain.LeadStatus
		wantTo  domain.LeadStatus
		wantErr error
	}{
		{"move forward", open, domain.TransitionMove, domain.LeadStatusNegotiation, domain.LeadStatusNegotiation, nil},
		{"move backward", open, domain.TransitionMove, domain.LeadStatusLeadIn, domain.LeadStatusLeadIn, nil},
		{"move to same column", open, domain.TransitionMove, domain.LeadStatusContactMade, "", pipeline.ErrSameStatus},
		{"move onto won column", open, domain.TransitionMove, domain.LeadStatusWon, "", pipeline.ErrInvalidTarget},
		{"move to unknown status", open, domain.TransitionMove, domain.LeadStatus("LIMBO"), "", pipeline.ErrInvalidTarget},
		{"move out of won", won, domain.TransitionMove, domain.LeadStatusLeadIn, "", pipeline.ErrTerminalStatus},
		{"archived lead can move", archived, domain.TransitionMove, domain.LeadStatusContactMade, domain.LeadStatusContactMade, nil},
		{"won from open", open, domain.TransitionWon, "", domain.LeadStatusWon, nil},
		{"lost from open", open, domain.TransitionLost, "", domain.LeadStatusLost, nil},
		{"won twice", won, domain.TransitionWon, "", "", pipeline.ErrTerminalStatus},
		{"lost after won", won, domain.TransitionLost, "", "", pipeline.ErrTerminalStatus},
		{"delete open", open, domain.TransitionDelete, "", domain.LeadStatusContactMade, nil},
		{"delete won", won, domain.TransitionDelete, "", domain.LeadStatusWon, nil},
		{"archive open", open, domain.TransitionArchive, "", domain.LeadStatusContactMade, nil},
		{"archive won", won, domain.TransitionArchive, "", domain.LeadStatusWon, nil},
		{"archive archived", archived, domain.TransitionArchive, "", "", pipeline.ErrAlreadyArchived},
		{"restore archived", archived, domain.TransitionRestore, "", domain.LeadStatusLeadIn, nil},
		{"restore active", open, domain.TransitionRestore, "", "", pipeline.ErrNotArchived},
		{"unknown action", open, domain.TransitionAction("merge"), "", "", pipeline.ErrUnknownAction},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan, err := pipeline.PlanTransition(tt.lead, tt.action, tt.target)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.lead.Status, plan.From)
			assert.Equal(t, tt.wantTo, plan.To)
			assert.Equal(t, tt.lead.ID, plan.LeadID)
		})
	}
}

func TestApply_WonClearsLostAt(t *testing.T) {
	lead := newLead("a", domain.LeadStatusNegotiation, 100, "USD")
	stale := baseTime.AddDate(0, -1, 0)
	lead.LostAt = &stale

	plan, err := pipeline.PlanTransition(lead, domain.TransitionWon, "")
	require.NoError(t, err)
	out := pipeline.Apply(lead, plan, baseTime)

	assert.Equal(t, domain.LeadStatusWon, out.Status)
	require.NotNil(t, out.WonAt)
	assert.Equal(t, baseTime, *out.WonAt)
	assert.Nil(t, out.LostAt)
	assert.NoError(t, out.Validate())
	assert.NotNil(t, lead.LostAt, "input lead is not modified")
}

func TestApply_LostClearsWonAt(t *testing.T) {
	lead := newLead("a", domain.LeadStatusProposalMade, 100, "USD")
	stale := baseTime.AddDate(0, -1, 0)
	lead.WonAt = &stale

	plan, err := pipeline.PlanTransition(lead, domain.TransitionLost, "")
	require.NoError(t, err)
	out := pipeline.Apply(lead, plan, baseTime)

	assert.Equal(t, domain.LeadStatusLost, out.Status)
	require.NotNil(t, out.LostAt)
	assert.Nil(t, out.WonAt)
	assert.NoError(t, out.Validate())
}

func TestApply_ArchiveKeepsStatusAndTimestamps(t *testing.T) {
	for _, lead := range []domain.Lead{
		newLead("open", domain.LeadStatusNeedIdentified, 1, "USD"),
		newLead("won", domain.LeadStatusWon, 1, "USD"),
		newLead("lost", domain.LeadStatusLost, 1, "USD"),
	} {
		plan, err := pipeline.PlanTransition(lead, domain.TransitionArchive, "")
		require.NoError(t, err)
		out := pipeline.Apply(lead, plan, baseTime)

		assert.True(t, out.IsArchived)
		assert.Equal(t, lead.Status, out.Status)
		assert.Equal(t, lead.WonAt, out.WonAt)
		assert.Equal(t, lead.LostAt, out.LostAt)

		patch := plan.Patch(baseTime)
		assert.Nil(t, patch.Status)
		assert.Nil(t, patch.WonAt)
		assert.False(t, patch.ClearLostAt)
		require.NotNil(t, patch.IsArchived)
		assert.True(t, *patch.IsArchived)
	}
}

func TestPlan_Patch(t *testing.T) {
	lead := newLead("a", domain.LeadStatusLeadIn, 1, "USD")

	plan, _ := pipeline.PlanTransition(lead, domain.TransitionMove, domain.LeadStatusNegotiation)
	patch := plan.Patch(baseTime)
	require.NotNil(t, patch.Status)
	assert.Equal(t, domain.LeadStatusNegotiation, *patch.Status)
	assert.Nil(t, patch.WonAt)
	assert.Nil(t, patch.LostAt)

	plan, _ = pipeline.PlanTransition(lead, domain.TransitionWon, "")
	patch = plan.Patch(baseTime)
	assert.Equal(t, domain.LeadStatusWon, *patch.Status)
	assert.Equal(t, baseTime, *patch.WonAt)
	assert.True(t, patch.ClearLostAt)
	assert.False(t, patch.ClearWonAt)

	lead.IsArchived = true
	plan, _ = pipeline.PlanTransition(lead, domain.TransitionRestore, "")
	patch = plan.Patch(baseTime)
	require.NotNil(t, patch.IsArchived)
	assert.False(t, *patch.IsArchived)
	assert.Nil(t, patch.Status)

	plan, _ = pipeline.PlanTransition(lead, domain.TransitionDelete, "")
	assert.True(t, plan.Patch(baseTime).IsEmpty())
}

func TestPrepareCreate(t *testing.T) {
	due := baseTime.AddDate(0, 1, 0)

	tests := []struct {
		name       string
		req        domain.CreateLeadRequest
		wantErr    bool
		wantStatus domain.LeadStatus
		wantWonAt  bool
		wantLostAt bool
	}{
		{
			name:       "defaults to LEAD_IN",
			req:        domain.CreateLeadRequest{Title: "Acme Deal", Value: decimal.NewFromInt(1000000), Currency: "idr", DueDate: &due},
			wantStatus: domain.LeadStatusLeadIn,
		},
		{
			name:       "explicit status",
			req:        domain.CreateLeadRequest{Title: "Acme", Currency: "USD", Status: domain.LeadStatusNegotiation},
			wantStatus: domain.LeadStatusNegotiation,
		},
		{
			name:       "created as won stamps wonAt",
			req:        domain.CreateLeadRequest{Title: "Acme", Currency: "USD", Status: domain.LeadStatusWon},
			wantStatus: domain.LeadStatusWon,
			wantWonAt:  true,
		},
		{
			name:       "created as lost stamps lostAt",
			req:        domain.CreateLeadRequest{Title: "Acme", Currency: "USD", Status: domain.LeadStatusLost},
			wantStatus: domain.LeadStatusLost,
			wantLostAt: true,
		},
		{
			name:    "blank title",
			req:     domain.CreateLeadRequest{Title: "  ", Currency: "USD"},
			wantErr: true,
		},
		{
			name:    "negative value",
			req:     domain.CreateLeadRequest{Title: "Acme", Value: decimal.NewFromInt(-5), Currency: "USD"},
			wantErr: true,
		},
		{
			name:    "bad client type",
			req:     domain.CreateLeadRequest{Title: "Acme", Currency: "USD", ClientType: "partner"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			draft, err := pipeline.PrepareCreate(tt.req, baseTime)
			if tt.wantErr {
				assert.ErrorIs(t, err, pipeline.ErrInvalidLead)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, draft.Status)
			assert.False(t, draft.IsArchived)
			assert.Equal(t, tt.wantWonAt, draft.WonAt != nil)
			assert.Equal(t, tt.wantLostAt, draft.LostAt != nil)
			assert.Equal(t, domain.LeadPriorityMedium, draft.Priority)
		})
	}
}

func TestPrepareCreate_NormalisesCurrency(t *testing.T) {
	draft, err := pipeline.PrepareCreate(domain.CreateLeadRequest{Title: "x", Currency: "eur"}, time.Now())
	require.NoError(t, err)
	assert.Equal(t, "EUR", draft.Currency)
}
