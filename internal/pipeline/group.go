package pipeline

import (
	"github.com/shopspring/decimal"
	"github.com/straye-as/pipeline-gateway/internal/domain"
)

// FilterOptions control which leads take part in grouping and aggregation
type FilterOptions struct {
	IncludeArchived bool
}

func (o FilterOptions) includes(l *domain.Lead) bool {
	return o.IncludeArchived || !l.IsArchived
}

// Filter returns the leads selected by opts, in their original order
func Filter(leads []domain.Lead, opts FilterOptions) []domain.Lead {
	out := make([]domain.Lead, 0, len(leads))
	for i := range leads {
		if opts.includes(&leads[i]) {
			out = append(out, leads[i])
		}
	}
	return out
}

// GroupByStatus partitions leads into one bucket per status. Every status has
// a bucket, possibly empty, and leads keep their fetch order within a bucket.
func GroupByStatus(leads []domain.Lead, opts FilterOptions) map[domain.LeadStatus][]domain.Lead {
	groups := make(map[domain.LeadStatus][]domain.Lead, 8)
	for _, s := range domain.LeadStatuses() {
		groups[s] = []domain.Lead{}
	}
	for i := range leads {
		l := &leads[i]
		if !opts.includes(l) {
			continue
		}
		if _, ok := groups[l.Status]; !ok {
			continue
		}
		groups[l.Status] = append(groups[l.Status], *l)
	}
	return groups
}

// StatusAggregate summarises one status bucket. TotalValue adds values across
// currencies as-is; ValueByCurrency and MixedCurrency expose when that sum
// mixes units.
type StatusAggregate struct {
	Status          domain.LeadStatus          `json:"status"`
	Count           int                        `json:"count"`
	TotalValue      decimal.Decimal            `json:"totalValue"`
	ValueByCurrency map[string]decimal.Decimal `json:"valueByCurrency"`
	MixedCurrency   bool                       `json:"mixedCurrency"`
}

// AggregateByStatus returns one aggregate per status in pipeline order,
// including empty buckets.
func AggregateByStatus(leads []domain.Lead, opts FilterOptions) []StatusAggregate {
	groups := GroupByStatus(leads, opts)
	out := make([]StatusAggregate, 0, len(groups))
	for _, s := range domain.LeadStatuses() {
		out = append(out, aggregate(s, groups[s]))
	}
	return out
}

func aggregate(status domain.LeadStatus, bucket []domain.Lead) StatusAggregate {
	agg := StatusAggregate{
		Status:          status,
		Count:           len(bucket),
		TotalValue:      decimal.Zero,
		ValueByCurrency: map[string]decimal.Decimal{},
	}
	for _, l := range bucket {
		agg.TotalValue = agg.TotalValue.Add(l.Value)
		agg.ValueByCurrency[l.Currency] = agg.ValueByCurrency[l.Currency].Add(l.Value)
	}
	agg.MixedCurrency = len(agg.ValueByCurrency) > 1
	return agg
}

// SumValues adds lead values and reports whether more than one currency was involved
func SumValues(leads []domain.Lead) (decimal.Decimal, bool) {
	total := decimal.Zero
	currencies := map[string]struct{}{}
	for _, l := range leads {
		total = total.Add(l.Value)
		currencies[l.Currency] = struct{}{}
	}
	return total, len(currencies) > 1
}
