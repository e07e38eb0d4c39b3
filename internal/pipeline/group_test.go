package pipeline_test

import (
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/straye-as/pipeline-gateway/internal/domain"
	"github.com/straye-as/pipeline-gateway/internal/pipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var baseTime = time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)

func newLead(id string, status domain.LeadStatus, value int64, currency string) domain.Lead {
	l := domain.Lead{
		ID:        id,
		Title:     "Lead " + id,
		Value:     decimal.NewFromInt(value),
		Currency:  currency,
		Status:    status,
		Priority:  domain.LeadPriorityMedium,
		CreatedAt: baseTime.AddDate(0, 0, -10),
		UpdatedAt: baseTime.AddDate(0, 0, -10),
	}
	switch status {
	case domain.LeadStatusWon:
		at := baseTime.AddDate(0, 0, -2)
		l.WonAt = &at
	case domain.LeadStatusLost:
		at := baseTime.AddDate(0, 0, -2)
		l.LostAt = &at
	}
	return l
}

func randomLeads(r *rand.Rand, n int) []domain.Lead {
	statuses := domain.LeadStatuses()
	currencies := []string{"IDR", "USD", "EUR"}
	leads := make([]domain.Lead, n)
	for i := range leads {
		leads[i] = newLead(fmt.Sprintf("l%d", i), statuses[r.Intn(len(statuses))], r.Int63n(5_000_000), currencies[r.Intn(len(currencies))])
		leads[i].IsArchived = r.Intn(4) == 0
	}
	return leads
}

func TestGroupByStatus_EveryStatusHasBucket(t *testing.T) {
	groups := pipeline.GroupByStatus(nil, pipeline.FilterOptions{})

	require.Len(t, groups, 8)
	for _, s := range domain.LeadStatuses() {
		bucket, ok := groups[s]
		assert.True(t, ok, "missing bucket for %s", s)
		assert.NotNil(t, bucket)
		assert.Empty(t, bucket)
	}
}

func TestGroupByStatus_PreservesFetchOrder(t *testing.T) {
	leads := []domain.Lead{
		newLead("a", domain.LeadStatusNegotiation, 1, "USD"),
		newLead("b", domain.LeadStatusLeadIn, 1, "USD"),
		newLead("c", domain.LeadStatusNegotiation, 1, "USD"),
		newLead("d", domain.LeadStatusNegotiation, 1, "USD"),
	}

	groups := pipeline.GroupByStatus(leads, pipeline.FilterOptions{})

	var ids []string
	for _, l := range groups[domain.LeadStatusNegotiation] {
		ids = append(ids, l.ID)
	}
	assert.Equal(t, []string{"a", "c", "d"}, ids)
}

func TestGroupByStatus_ExcludesArchivedByDefault(t *testing.T) {
	archived := newLead("a", domain.LeadStatusLeadIn, 1, "USD")
	archived.IsArchived = true
	leads := []domain.Lead{archived, newLead("b", domain.LeadStatusLeadIn, 1, "USD")}

	groups := pipeline.GroupByStatus(leads, pipeline.FilterOptions{})
	assert.Len(t, groups[domain.LeadStatusLeadIn], 1)

	groups = pipeline.GroupByStatus(leads, pipeline.FilterOptions{IncludeArchived: true})
	assert.Len(t, groups[domain.LeadStatusLeadIn], 2)
}

func TestGroupByStatus_IsTotalPartition(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	for round := 0; round < 50; round++ {
		leads := randomLeads(r, r.Intn(60))
		for _, includeArchived := range []bool{false, true} {
			opts := pipeline.FilterOptions{IncludeArchived: includeArchived}
			groups := pipeline.GroupByStatus(leads, opts)

			seen := map[string]int{}
			total := 0
			for status, bucket := range groups {
				for _, l := range bucket {
					assert.Equal(t, status, l.Status)
					seen[l.ID]++
				}
				total += len(bucket)
			}

			assert.Equal(t, len(pipeline.Filter(leads, opts)), total)
			for id, n := range seen {
				assert.Equal(t, 1, n, "lead %s appears in %d buckets", id, n)
			}
		}
	}
}

func TestAggregateByStatus_MatchesBuckets(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	for round := 0; round < 50; round++ {
		leads := randomLeads(r, r.Intn(60))
		opts := pipeline.FilterOptions{}
		groups := pipeline.GroupByStatus(leads, opts)
		aggs := pipeline.AggregateByStatus(leads, opts)

		require.Len(t, aggs, 8)
		for i, agg := range aggs {
			assert.Equal(t, domain.LeadStatuses()[i], agg.Status)
			bucket := groups[agg.Status]
			assert.Equal(t, len(bucket), agg.Count)

			sum := decimal.Zero
			for _, l := range bucket {
				sum = sum.Add(l.Value)
			}
			assert.True(t, sum.Equal(agg.TotalValue), "status %s: want %s got %s", agg.Status, sum, agg.TotalValue)
		}
	}
}

func TestAggregateByStatus_EmptyBuckets(t *testing.T) {
	leads := []domain.Lead{newLead("a", domain.LeadStatusLeadIn, 500, "USD")}

	for _, agg := range pipeline.AggregateByStatus(leads, pipeline.FilterOptions{}) {
		if agg.Status == domain.LeadStatusLeadIn {
			assert.Equal(t, 1, agg.Count)
			assert.True(t, agg.TotalValue.Equal(decimal.NewFromInt(500)))
			continue
		}
		assert.Equal(t, 0, agg.Count)
		assert.True(t, agg.TotalValue.IsZero())
		assert.False(t, agg.MixedCurrency)
	}
}

// Values in different currencies are still summed into TotalValue. The
// aggregate flags the mix so callers do not present the sum as one amount.
func TestAggregateByStatus_FlagsMixedCurrency(t *testing.T) {
	leads := []domain.Lead{
		newLead("idr", domain.LeadStatusProposalMade, 15_000_000, "IDR"),
		newLead("usd", domain.LeadStatusProposalMade, 1_000, "USD"),
		newLead("usd2", domain.LeadStatusProposalMade, 500, "USD"),
	}

	aggs := pipeline.AggregateByStatus(leads, pipeline.FilterOptions{})
	proposal := aggs[3]

	require.Equal(t, domain.LeadStatusProposalMade, proposal.Status)
	assert.True(t, proposal.MixedCurrency)
	assert.True(t, proposal.TotalValue.Equal(decimal.NewFromInt(15_001_500)))
	assert.True(t, proposal.ValueByCurrency["IDR"].Equal(decimal.NewFromInt(15_000_000)))
	assert.True(t, proposal.ValueByCurrency["USD"].Equal(decimal.NewFromInt(1_500)))
}

func TestSumValues(t *testing.T) {
	total, mixed := pipeline.SumValues([]domain.Lead{
		newLead("a", domain.LeadStatusLeadIn, 10, "EUR"),
		newLead("b", domain.LeadStatusLeadIn, 5, "EUR"),
	})
	assert.True(t, total.Equal(decimal.NewFromInt(15)))
	assert.False(t, mixed)
}
