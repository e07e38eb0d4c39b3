package domain_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/straye-as/pipeline-gateway/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// LeadStatus Tests
// =============================================================================

func TestLeadStatus_IsValid(t *testing.T) {
	tests := []struct {
		name     string
		status   domain.LeadStatus
		expected bool
	}{
		{"lead in", domain.LeadStatusLeadIn, true},
		{"contact made", domain.LeadStatusContactMade, true},
		{"need identified", domain.LeadStatusNeedIdentified, true},
		{"proposal made", domain.LeadStatusProposalMade, true},
		{"negotiation", domain.LeadStatusNegotiation, true},
		{"contract send", domain.LeadStatusContractSend, true},
		{"won", domain.LeadStatusWon, true},
		{"lost", domain.LeadStatusLost, true},
		{"lowercase is not a value", domain.LeadStatus("won"), false},
		{"empty", domain.LeadStatus(""), false},
		{"unknown", domain.LeadStatus("QUALIFIED"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.status.IsValid())
		})
	}
}

func TestLeadStatus_IsTerminal(t *testing.T) {
	for _, s := range domain.LeadStatuses() {
		want := s == domain.LeadStatusWon || s == domain.LeadStatusLost
		assert.Equal(t, want, s.IsTerminal(), string(s))
	}
}

func TestLeadStatuses_PipelineOrder(t *testing.T) {
	statuses := domain.LeadStatuses()
	require.Len(t, statuses, 8)
	assert.Equal(t, domain.LeadStatusLeadIn, statuses[0])
	assert.Equal(t, domain.LeadStatusContractSend, statuses[5])
	assert.Equal(t, domain.LeadStatusLost, statuses[7])

	// callers get their own copy
	statuses[0] = domain.LeadStatusLost
	assert.Equal(t, domain.LeadStatusLeadIn, domain.LeadStatuses()[0])
}

func TestLeadStatus_UnmarshalJSON(t *testing.T) {
	var s domain.LeadStatus
	require.NoError(t, json.Unmarshal([]byte(`"negotiation"`), &s))
	assert.Equal(t, domain.LeadStatusNegotiation, s)

	err := json.Unmarshal([]byte(`"ON_HOLD"`), &s)
	assert.ErrorIs(t, err, domain.ErrInvalidLeadStatus)

	err = json.Unmarshal([]byte(`42`), &s)
	assert.ErrorIs(t, err, domain.ErrInvalidLeadStatus)
}

func TestLeadPriority_UnmarshalJSON(t *testing.T) {
	var p domain.LeadPriority
	require.NoError(t, json.Unmarshal([]byte(`"high"`), &p))
	assert.Equal(t, domain.LeadPriorityHigh, p)

	err := json.Unmarshal([]byte(`"URGENT"`), &p)
	assert.ErrorIs(t, err, domain.ErrInvalidLeadPriority)
}

func TestClientType_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    domain.ClientType
		wantErr bool
	}{
		{"new", `"new"`, domain.ClientTypeNew, false},
		{"existing uppercase", `"EXISTING"`, domain.ClientTypeExisting, false},
		{"null", `null`, "", false},
		{"empty", `""`, "", false},
		{"unknown", `"partner"`, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var c domain.ClientType
			err := json.Unmarshal([]byte(tt.input), &c)
			if tt.wantErr {
				assert.ErrorIs(t, err, domain.ErrInvalidClientType)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, c)
		})
	}
}

// =============================================================================
// Lead invariant Tests
// =============================================================================

func validLead() domain.Lead {
	return domain.Lead{
		ID:       "lead-1",
		Title:    "Acme Deal",
		Value:    decimal.NewFromInt(1000000),
		Currency: "IDR",
		Status:   domain.LeadStatusLeadIn,
		Priority: domain.LeadPriorityMedium,
	}
}

func TestLead_Validate(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		mutate  func(l *domain.Lead)
		wantErr bool
	}{
		{"open lead without timestamps", func(l *domain.Lead) {}, false},
		{"won with wonAt", func(l *domain.Lead) {
			l.Status = domain.LeadStatusWon
			l.WonAt = &now
		}, false},
		{"lost with lostAt", func(l *domain.Lead) {
			l.Status = domain.LeadStatusLost
			l.LostAt = &now
		}, false},
		{"won without wonAt", func(l *domain.Lead) {
			l.Status = domain.LeadStatusWon
		}, true},
		{"won with both timestamps", func(l *domain.Lead) {
			l.Status = domain.LeadStatusWon
			l.WonAt = &now
			l.LostAt = &now
		}, true},
		{"lost carrying wonAt", func(l *domain.Lead) {
			l.Status = domain.LeadStatusLost
			l.WonAt = &now
		}, true},
		{"open lead carrying lostAt", func(l *domain.Lead) {
			l.LostAt = &now
		}, true},
		{"negative value", func(l *domain.Lead) {
			l.Value = decimal.NewFromInt(-1)
		}, true},
		{"blank title", func(l *domain.Lead) {
			l.Title = "   "
		}, true},
		{"missing id", func(l *domain.Lead) {
			l.ID = ""
		}, true},
		{"archived won lead", func(l *domain.Lead) {
			l.Status = domain.LeadStatusWon
			l.WonAt = &now
			l.IsArchived = true
		}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lead := validLead()
			tt.mutate(&lead)
			err := lead.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, domain.ErrLeadInvariant)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLead_IsOverdue(t *testing.T) {
	now := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	past := now.Add(-24 * time.Hour)

	lead := validLead()
	assert.False(t, lead.IsOverdue(now))

	lead.DueDate = &past
	assert.True(t, lead.IsOverdue(now))

	lead.Status = domain.LeadStatusWon
	lead.WonAt = &now
	assert.False(t, lead.IsOverdue(now), "closed leads are never overdue")
}

func TestLead_Clone(t *testing.T) {
	lead := validLead()
	lead.AssignedUsers = []domain.UserRef{{ID: "u1"}}

	clone := lead.Clone()
	clone.AssignedUsers[0].ID = "u2"

	assert.Equal(t, "u1", lead.AssignedUsers[0].ID)
}

func TestLead_JSONRoundTripKeepsNumericValue(t *testing.T) {
	lead := validLead()
	data, err := json.Marshal(lead)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"value":1000000`)
	assert.Contains(t, string(data), `"wonAt":null`)
}

func TestLead_DecodeRejectsUnknownStatus(t *testing.T) {
	var lead domain.Lead
	err := json.Unmarshal([]byte(`{"id":"x","title":"t","value":1,"currency":"USD","status":"PAUSED","priority":"LOW"}`), &lead)
	assert.ErrorIs(t, err, domain.ErrInvalidLeadStatus)
}

// =============================================================================
// Invoice Tests
// =============================================================================

func TestInvoiceMeta_ComputeTotals(t *testing.T) {
	meta := domain.InvoiceMeta{
		Items: []domain.InvoiceItem{
			{Description: "Design", Quantity: decimal.NewFromInt(2), UnitPrice: decimal.RequireFromString("150.50")},
			{Description: "Hosting", Quantity: decimal.NewFromInt(1), UnitPrice: decimal.RequireFromString("99.99")},
		},
		TaxRate: decimal.NewFromInt(11),
	}

	meta.ComputeTotals()

	assert.Equal(t, "400.99", meta.Subtotal.StringFixed(2))
	assert.Equal(t, "44.11", meta.Tax.StringFixed(2))
	assert.Equal(t, "445.10", meta.Total.StringFixed(2))
}

func TestInvoiceMeta_ComputeTotalsWithoutItems(t *testing.T) {
	meta := domain.InvoiceMeta{TaxRate: decimal.NewFromInt(10)}
	meta.ComputeTotals()
	assert.True(t, meta.Total.IsZero())
}

// =============================================================================
// KPI Tests
// =============================================================================

func TestKPI_UnmarshalJSON(t *testing.T) {
	var stats domain.DashboardStats
	body := `{"pipelineValue": 2500000, "activeDeals": 4, "avgDeal": {"value": 625000, "change": -3.5, "isPositive": false}}`
	require.NoError(t, json.Unmarshal([]byte(body), &stats))

	assert.True(t, stats.PipelineValue.Value.Equal(decimal.NewFromInt(2500000)))
	assert.True(t, stats.ActiveDeals.Value.Equal(decimal.NewFromInt(4)))
	assert.Equal(t, -3.5, stats.AvgDeal.Change)
	assert.False(t, stats.AvgDeal.IsPositive)
}

// =============================================================================
// Team Tests
// =============================================================================

func TestTeamRole_IsValid(t *testing.T) {
	assert.True(t, domain.TeamRoleAdmin.IsValid())
	assert.True(t, domain.TeamRoleSales.IsValid())
	assert.True(t, domain.TeamRoleViewer.IsValid())
	assert.False(t, domain.TeamRole("OWNER").IsValid())
}

func TestTeamMemberStatus_IsValid(t *testing.T) {
	assert.True(t, domain.TeamMemberStatusOnLeave.IsValid())
	assert.False(t, domain.TeamMemberStatus("RETIRED").IsValid())
}
