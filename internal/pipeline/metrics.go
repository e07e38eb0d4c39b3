package pipeline

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/straye-as/pipeline-gateway/internal/domain"
)

// Supported metrics ranges
const (
	Range7Days   = "7d"
	Range30Days  = "30d"
	Range90Days  = "90d"
	Range12Month = "12m"
	RangeAll     = "all"
)

// Window is a half-open time range [Start, End). A zero Start is unbounded.
type Window struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t falls inside the window
func (w Window) Contains(t time.Time) bool {
	if !w.Start.IsZero() && t.Before(w.Start) {
		return false
	}
	return t.Before(w.End)
}

// Bounded reports whether the window has a start
func (w Window) Bounded() bool {
	return !w.Start.IsZero()
}

// Previous returns the window of equal length that ends where w starts
func (w Window) Previous() (Window, bool) {
	if !w.Bounded() {
		return Window{}, false
	}
	return Window{Start: w.Start.Add(-w.End.Sub(w.Start)), End: w.Start}, true
}

// WindowForRange resolves a range name against now
func WindowForRange(rng string, now time.Time) (Window, error) {
	end := now.Add(time.Nanosecond)
	switch strings.ToLower(strings.TrimSpace(rng)) {
	case Range7Days:
		return Window{Start: now.AddDate(0, 0, -7), End: end}, nil
	case "", Range30Days:
		return Window{Start: now.AddDate(0, 0, -30), End: end}, nil
	case Range90Days:
		return Window{Start: now.AddDate(0, 0, -90), End: end}, nil
	case Range12Month:
		return Window{Start: now.AddDate(-1, 0, 0), End: end}, nil
	case RangeAll:
		return Window{End: end}, nil
	}
	return Window{}, fmt.Errorf("%w: %q", ErrInvalidRange, rng)
}

// MetricsOptions select the leads and the time window for ComputeMetrics
type MetricsOptions struct {
	Window          Window
	IncludeArchived bool
}

// Metrics are the dashboard figures derived from a lead collection
type Metrics struct {
	TotalWon       domain.KPI
	TotalLost      domain.KPI
	TotalLeads     domain.KPI
	ConversionRate domain.KPI
	PipelineValue  domain.KPI
	AverageDeal    domain.KPI
	ActiveDeals    domain.KPI
	MixedCurrency  bool
}

type windowCounts struct {
	won, lost, created int64
}

func countWindow(leads []domain.Lead, w Window, opts FilterOptions) windowCounts {
	var c windowCounts
	for i := range leads {
		l := &leads[i]
		if l.Status == domain.LeadStatusWon && l.WonAt != nil && opts.includes(l) && w.Contains(*l.WonAt) {
			c.won++
		}
		if l.Status == domain.LeadStatusLost && l.LostAt != nil && opts.includes(l) && w.Contains(*l.LostAt) {
			c.lost++
		}
		if !l.IsArchived && w.Contains(l.CreatedAt) {
			c.created++
		}
	}
	return c
}

// ComputeMetrics derives the dashboard figures from leads. Won, lost and
// created counts use the window and compare against the previous window of
// the same length; pipeline value, active deals and average deal describe the
// open pipeline at the time of the snapshot and carry no change.
func ComputeMetrics(leads []domain.Lead, opts MetricsOptions) Metrics {
	filter := FilterOptions{IncludeArchived: opts.IncludeArchived}
	cur := countWindow(leads, opts.Window, filter)
	var prev windowCounts
	prevWindow, hasPrev := opts.Window.Previous()
	if hasPrev {
		prev = countWindow(leads, prevWindow, filter)
	}

	var open []domain.Lead
	for i := range leads {
		if leads[i].IsOpen() && filter.includes(&leads[i]) {
			open = append(open, leads[i])
		}
	}
	pipelineValue, mixed := SumValues(open)
	activeDeals := int64(len(open))

	m := Metrics{
		TotalWon:      countKPI(cur.won, prev.won, hasPrev, true),
		TotalLost:     countKPI(cur.lost, prev.lost, hasPrev, false),
		TotalLeads:    countKPI(cur.created, prev.created, hasPrev, true),
		PipelineValue: pointKPI(pipelineValue),
		ActiveDeals:   pointKPI(decimal.NewFromInt(activeDeals)),
		AverageDeal:   pointKPI(divide(pipelineValue, decimal.NewFromInt(activeDeals))),
		MixedCurrency: mixed,
	}

	rate := conversionRate(cur.won, cur.lost)
	m.ConversionRate = domain.KPI{Value: rate, IsPositive: true}
	if hasPrev {
		// change of a rate is reported in percentage points
		diff := rate.Sub(conversionRate(prev.won, prev.lost)).Round(1)
		m.ConversionRate.Change = diff.InexactFloat64()
		m.ConversionRate.IsPositive = !diff.IsNegative()
	}
	return m
}

func conversionRate(won, lost int64) decimal.Decimal {
	return divide(decimal.NewFromInt(won*100), decimal.NewFromInt(won+lost))
}

// divide rounds to two places and yields zero for a zero denominator
func divide(num, den decimal.Decimal) decimal.Decimal {
	if den.IsZero() {
		return decimal.Zero
	}
	return num.DivRound(den, 2)
}

func pointKPI(v decimal.Decimal) domain.KPI {
	return domain.KPI{Value: v, IsPositive: true}
}

// countKPI builds a windowed count. higherIsBetter is false for counts where
// growth is bad news, such as lost deals.
func countKPI(cur, prev int64, hasPrev, higherIsBetter bool) domain.KPI {
	k := domain.KPI{Value: decimal.NewFromInt(cur), IsPositive: true}
	if !hasPrev {
		return k
	}
	k.Change = PercentChange(float64(cur), float64(prev))
	if higherIsBetter {
		k.IsPositive = k.Change >= 0
	} else {
		k.IsPositive = k.Change <= 0
	}
	return k
}

// PercentChange returns the change from prev to cur in percent, rounded to
// one decimal. From zero it is 0 when cur is also zero and 100 otherwise.
func PercentChange(cur, prev float64) float64 {
	if prev == 0 {
		if cur == 0 {
			return 0
		}
		return 100
	}
	return math.Round((cur-prev)/prev*1000) / 10
}
