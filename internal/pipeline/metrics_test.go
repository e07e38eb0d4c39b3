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

func window30(t *testing.T) pipeline.Window {
	t.Helper()
	w, err := pipeline.WindowForRange(pipeline.Range30Days, baseTime)
	require.NoError(t, err)
	return w
}

func TestComputeMetrics_EmptyCollection(t *testing.T) {
	m := pipeline.ComputeMetrics(nil, pipeline.MetricsOptions{Window: window30(t)})

	assert.True(t, m.TotalWon.Value.IsZero())
	assert.True(t, m.TotalLost.Value.IsZero())
	assert.True(t, m.TotalLeads.Value.IsZero())
	assert.True(t, m.ConversionRate.Value.IsZero(), "no won or lost leads gives 0%")
	assert.True(t, m.PipelineValue.Value.IsZero())
	assert.True(t, m.AverageDeal.Value.IsZero(), "no active deals gives 0")
	assert.Equal(t, 0.0, m.TotalWon.Change)
}

func TestComputeMetrics_OnlyClosedLeads(t *testing.T) {
	leads := []domain.Lead{
		newLead("w1", domain.LeadStatusWon, 100, "USD"),
		newLead("w2", domain.LeadStatusWon, 100, "USD"),
		newLead("w3", domain.LeadStatusWon, 100, "USD"),
		newLead("l1", domain.LeadStatusLost, 100, "USD"),
	}

	m := pipeline.ComputeMetrics(leads, pipeline.MetricsOptions{Window: window30(t)})

	assert.True(t, m.TotalWon.Value.Equal(decimal.NewFromInt(3)))
	assert.True(t, m.TotalLost.Value.Equal(decimal.NewFromInt(1)))
	assert.Equal(t, "75", m.ConversionRate.Value.String())
	assert.True(t, m.PipelineValue.Value.IsZero())
	assert.True(t, m.ActiveDeals.Value.IsZero())
	assert.True(t, m.AverageDeal.Value.IsZero())
}

func TestComputeMetrics_PipelineAndAverage(t *testing.T) {
	leads := []domain.Lead{
		newLead("a", domain.LeadStatusLeadIn, 1000, "USD"),
		newLead("b", domain.LeadStatusNegotiation, 2000, "USD"),
		newLead("c", domain.LeadStatusContractSend, 500, "USD"),
		newLead("won", domain.LeadStatusWon, 99999, "USD"),
	}

	m := pipeline.ComputeMetrics(leads, pipeline.MetricsOptions{Window: window30(t)})

	assert.True(t, m.PipelineValue.Value.Equal(decimal.NewFromInt(3500)))
	assert.True(t, m.ActiveDeals.Value.Equal(decimal.NewFromInt(3)))
	assert.Equal(t, "1166.67", m.AverageDeal.Value.StringFixed(2))
	assert.False(t, m.MixedCurrency)
}

func TestComputeMetrics_TotalLeadsExcludesArchived(t *testing.T) {
	archived := newLead("arch", domain.LeadStatusLeadIn, 100, "USD")
	archived.IsArchived = true
	leads := []domain.Lead{archived, newLead("a", domain.LeadStatusLeadIn, 100, "USD")}

	m := pipeline.ComputeMetrics(leads, pipeline.MetricsOptions{Window: window30(t), IncludeArchived: true})

	assert.True(t, m.TotalLeads.Value.Equal(decimal.NewFromInt(1)))
	assert.True(t, m.PipelineValue.Value.Equal(decimal.NewFromInt(200)), "archived leads count toward pipeline when requested")
}

func TestComputeMetrics_WindowAndChange(t *testing.T) {
	recentWin := newLead("recent", domain.LeadStatusWon, 1, "USD")
	olderWin1 := newLead("older1", domain.LeadStatusWon, 1, "USD")
	olderWin2 := newLead("older2", domain.LeadStatusWon, 1, "USD")
	ancient := newLead("ancient", domain.LeadStatusWon, 1, "USD")

	prev := baseTime.AddDate(0, 0, -40)
	olderWin1.WonAt = &prev
	olderWin2.WonAt = &prev
	old := baseTime.AddDate(-2, 0, 0)
	ancient.WonAt = &old

	leads := []domain.Lead{recentWin, olderWin1, olderWin2, ancient}
	m := pipeline.ComputeMetrics(leads, pipeline.MetricsOptions{Window: window30(t)})

	assert.True(t, m.TotalWon.Value.Equal(decimal.NewFromInt(1)))
	assert.Equal(t, -50.0, m.TotalWon.Change)
	assert.False(t, m.TotalWon.IsPositive)

	all, err := pipeline.WindowForRange(pipeline.RangeAll, baseTime)
	require.NoError(t, err)
	m = pipeline.ComputeMetrics(leads, pipeline.MetricsOptions{Window: all})
	assert.True(t, m.TotalWon.Value.Equal(decimal.NewFromInt(4)))
	assert.Equal(t, 0.0, m.TotalWon.Change, "unbounded window has no previous period")
}

func TestComputeMetrics_LostGrowthIsNegative(t *testing.T) {
	m := pipeline.ComputeMetrics([]domain.Lead{newLead("l", domain.LeadStatusLost, 1, "USD")},
		pipeline.MetricsOptions{Window: window30(t)})

	assert.Equal(t, 100.0, m.TotalLost.Change)
	assert.False(t, m.TotalLost.IsPositive)
}

func TestComputeMetrics_FlagsMixedCurrencyPipeline(t *testing.T) {
	leads := []domain.Lead{
		newLead("a", domain.LeadStatusLeadIn, 1_000_000, "IDR"),
		newLead("b", domain.LeadStatusLeadIn, 100, "USD"),
	}

	m := pipeline.ComputeMetrics(leads, pipeline.MetricsOptions{Window: window30(t)})

	assert.True(t, m.MixedCurrency)
	assert.True(t, m.PipelineValue.Value.Equal(decimal.NewFromInt(1_000_100)))
}

func TestComputeMetrics_IsDeterministic(t *testing.T) {
	leads := []domain.Lead{
		newLead("a", domain.LeadStatusLeadIn, 1000, "USD"),
		newLead("w", domain.LeadStatusWon, 1000, "USD"),
	}
	opts := pipeline.MetricsOptions{Window: window30(t)}

	assert.Equal(t, pipeline.ComputeMetrics(leads, opts), pipeline.ComputeMetrics(leads, opts))
}

func TestWindowForRange(t *testing.T) {
	tests := []struct {
		rng     string
		start   time.Time
		wantErr bool
	}{
		{"7d", baseTime.AddDate(0, 0, -7), false},
		{"30d", baseTime.AddDate(0, 0, -30), false},
		{"", baseTime.AddDate(0, 0, -30), false},
		{"90D", baseTime.AddDate(0, 0, -90), false},
		{"12m", baseTime.AddDate(-1, 0, 0), false},
		{"all", time.Time{}, false},
		{"forever", time.Time{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.rng, func(t *testing.T) {
			w, err := pipeline.WindowForRange(tt.rng, baseTime)
			if tt.wantErr {
				assert.ErrorIs(t, err, pipeline.ErrInvalidRange)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.start, w.Start)
			assert.True(t, w.Contains(baseTime), "window includes now")
		})
	}
}

func TestWindow_Previous(t *testing.T) {
	w := pipeline.Window{Start: baseTime.AddDate(0, 0, -7), End: baseTime}
	prev, ok := w.Previous()
	require.True(t, ok)
	assert.Equal(t, baseTime.AddDate(0, 0, -14), prev.Start)
	assert.Equal(t, w.Start, prev.End)

	_, ok = pipeline.Window{End: baseTime}.Previous()
	assert.False(t, ok)
}

func TestPercentChange(t *testing.T) {
	assert.Equal(t, 0.0, pipeline.PercentChange(0, 0))
	assert.Equal(t, 100.0, pipeline.PercentChange(3, 0))
	assert.Equal(t, 50.0, pipeline.PercentChange(3, 2))
	assert.Equal(t, -33.3, pipeline.PercentChange(2, 3))
}
