package mapper_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/straye-as/pipeline-gateway/internal/domain"
	"github.com/straye-as/pipeline-gateway/internal/mapper"
	"github.com/straye-as/pipeline-gateway/internal/pipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)

func TestToLeadCardDTO(t *testing.T) {
	due := now.Add(-time.Hour)
	lead := domain.Lead{
		ID:       "lead-1",
		Title:    "Acme Deal",
		Value:    decimal.NewFromInt(1000000),
		Currency: "IDR",
		Status:   domain.LeadStatusNegotiation,
		Priority: domain.LeadPriorityHigh,
		DueDate:  &due,
	}

	card := mapper.ToLeadCardDTO(&lead, now)
	assert.Equal(t, "lead-1", card.ID)
	assert.True(t, card.Overdue)
	assert.NotNil(t, card.AssignedUsers)
	assert.Empty(t, card.AssignedUsers)
	assert.False(t, card.Pending)

	wonAt := now
	lead.Status = domain.LeadStatusWon
	lead.WonAt = &wonAt
	card = mapper.ToLeadCardDTO(&lead, now)
	assert.False(t, card.Overdue, "closed leads are never overdue")
}

func TestToBoardColumnDTO(t *testing.T) {
	col := mapper.ToBoardColumnDTO(pipeline.StatusAggregate{
		Status:     domain.LeadStatusContractSend,
		Count:      0,
		TotalValue: decimal.Zero,
	}, nil)

	assert.Equal(t, "Contract Sent", col.Label)
	assert.False(t, col.Terminal)
	assert.NotNil(t, col.Leads)

	col = mapper.ToBoardColumnDTO(pipeline.StatusAggregate{Status: domain.LeadStatusLost}, nil)
	assert.True(t, col.Terminal)
}

func TestToPipelineMetricsDTO(t *testing.T) {
	w, err := pipeline.WindowForRange("7d", now)
	require.NoError(t, err)

	dto := mapper.ToPipelineMetricsDTO("7d", w, pipeline.Metrics{MixedCurrency: true})
	require.NotNil(t, dto.From)
	assert.True(t, dto.From.Equal(now.AddDate(0, 0, -7)))
	assert.True(t, dto.MixedCurrency)

	all, err := pipeline.WindowForRange("all", now)
	require.NoError(t, err)
	dto = mapper.ToPipelineMetricsDTO("all", all, pipeline.Metrics{})
	assert.Nil(t, dto.From)
}

func TestToFeedItemDTO(t *testing.T) {
	statusMeta, _ := json.Marshal(domain.StatusChangeMeta{From: domain.LeadStatusNegotiation, To: domain.LeadStatusWon, Action: "won"})
	invoice := domain.InvoiceMeta{
		Currency: "USD",
		Items:    []domain.InvoiceItem{{Description: "Setup", Quantity: decimal.NewFromInt(2), UnitPrice: decimal.NewFromInt(50)}},
	}
	invoice.ComputeTotals()
	invoiceMeta, _ := json.Marshal(invoice)
	callMeta, _ := json.Marshal(domain.CallMeta{DurationMinutes: 15, Outcome: "Interested"})

	tests := []struct {
		name     string
		activity domain.LeadActivity
		icon     string
		title    string
		summary  string
	}{
		{
			name:     "status change",
			activity: domain.LeadActivity{Type: domain.ActivityTypeStatusChange, Meta: statusMeta},
			icon:     "arrow-right",
			title:    "Status changed",
			summary:  "Negotiation → Won",
		},
		{
			name:     "invoice",
			activity: domain.LeadActivity{Type: domain.ActivityTypeInvoice, Title: "INV-7", Meta: invoiceMeta},
			icon:     "receipt",
			title:    "INV-7",
			summary:  "1 item(s), total 100.00 USD",
		},
		{
			name:     "call",
			activity: domain.LeadActivity{Type: domain.ActivityTypeCall, Meta: callMeta},
			icon:     "phone",
			title:    "Call",
			summary:  "15 min, Interested",
		},
		{
			name:     "note falls back to content",
			activity: domain.LeadActivity{Type: domain.ActivityTypeNote, Content: "  Sent brochure  "},
			icon:     "note",
			title:    "Note",
			summary:  "Sent brochure",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.activity.CreatedAt = now.Add(-5 * time.Minute)
			item := mapper.ToFeedItemDTO(&tt.activity, now)
			assert.Equal(t, tt.icon, item.Icon)
			assert.Equal(t, tt.title, item.Title)
			assert.Equal(t, tt.summary, item.Summary)
			assert.Equal(t, "5m ago", item.RelativeTime)
		})
	}
}

func TestRelativeTime(t *testing.T) {
	tests := []struct {
		ago  time.Duration
		want string
	}{
		{10 * time.Second, "just now"},
		{59 * time.Minute, "59m ago"},
		{3 * time.Hour, "3h ago"},
		{50 * time.Hour, "2d ago"},
		{40 * 24 * time.Hour, "6 May 2026"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, mapper.RelativeTime(now.Add(-tt.ago), now))
	}
}
