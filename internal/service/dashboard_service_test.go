package service_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/straye-as/pipeline-gateway/internal/domain"
	"github.com/straye-as/pipeline-gateway/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lead(id string, status domain.LeadStatus, value int64, created time.Time) domain.Lead {
	return domain.Lead{
		ID:        id,
		Title:     id,
		Value:     decimal.NewFromInt(value),
		Currency:  "USD",
		Status:    status,
		Priority:  domain.LeadPriorityMedium,
		CreatedAt: created,
		UpdatedAt: created,
	}
}

func closed(l domain.Lead, at time.Time) domain.Lead {
	switch l.Status {
	case domain.LeadStatusWon:
		l.WonAt = &at
	case domain.LeadStatusLost:
		l.LostAt = &at
	}
	return l
}

func TestDashboardService_PipelineMetrics(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	now := time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)
	f.fixedClock(now)

	day := 24 * time.Hour
	archived := lead("archived", domain.LeadStatusNegotiation, 1000, now.Add(-2*day))
	archived.IsArchived = true
	f.backend.Seed(
		lead("open-1", domain.LeadStatusLeadIn, 100, now.Add(-3*day)),
		lead("open-2", domain.LeadStatusNegotiation, 300, now.Add(-40*day)),
		closed(lead("won-1", domain.LeadStatusWon, 500, now.Add(-20*day)), now.Add(-day)),
		closed(lead("won-2", domain.LeadStatusWon, 200, now.Add(-20*day)), now.Add(-5*day)),
		closed(lead("lost-1", domain.LeadStatusLost, 50, now.Add(-20*day)), now.Add(-2*day)),
		closed(lead("won-old", domain.LeadStatusWon, 80, now.Add(-60*day)), now.Add(-10*day)),
		archived,
	)

	m, err := f.dashboard.PipelineMetrics(ctx, "7d", false)
	require.NoError(t, err)

	assert.Equal(t, "7d", m.Range)
	require.NotNil(t, m.From)
	assert.True(t, m.TotalWon.Value.Equal(decimal.NewFromInt(2)))
	assert.Equal(t, 100.0, m.TotalWon.Change, "one win in the previous week")
	assert.True(t, m.TotalLost.Value.Equal(decimal.NewFromInt(1)))
	assert.True(t, m.TotalLeads.Value.Equal(decimal.NewFromInt(1)), "archived leads are not counted as created")
	assert.True(t, m.ConversionRate.Value.Equal(decimal.RequireFromString("66.67")))
	assert.True(t, m.PipelineValue.Value.Equal(decimal.NewFromInt(400)))
	assert.True(t, m.ActiveDeals.Value.Equal(decimal.NewFromInt(2)))
	assert.True(t, m.AverageDeal.Value.Equal(decimal.NewFromInt(200)))
	assert.Zero(t, m.PipelineValue.Change)

	withArchived, err := f.dashboard.PipelineMetrics(ctx, "7d", true)
	require.NoError(t, err)
	assert.True(t, withArchived.PipelineValue.Value.Equal(decimal.NewFromInt(1400)))

	all, err := f.dashboard.PipelineMetrics(ctx, "", false)
	require.NoError(t, err)
	assert.Equal(t, "30d", all.Range)

	_, err = f.dashboard.PipelineMetrics(ctx, "2w", false)
	assert.ErrorIs(t, err, service.ErrInvalidInput)
}

func TestDashboardService_Stats(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.backend.SetStats(domain.DashboardStats{
		PipelineValue: domain.KPI{Value: decimal.NewFromInt(9000), Change: 3.5, IsPositive: true},
	})

	stats, err := f.dashboard.Stats(ctx, "90D")
	require.NoError(t, err)
	assert.Equal(t, "90d", stats.Range)
	assert.Equal(t, 3.5, stats.PipelineValue.Change)

	_, err = f.dashboard.Stats(ctx, "forever")
	assert.ErrorIs(t, err, service.ErrInvalidInput)
	assert.Equal(t, 1, f.backend.CountRequests(http.MethodGet, "/dashboard/stats"))
}
