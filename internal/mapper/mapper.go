package mapper

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/straye-as/pipeline-gateway/internal/domain"
	"github.com/straye-as/pipeline-gateway/internal/pipeline"
)

// ToLeadCardDTO converts a Lead to the card shown on the board
func ToLeadCardDTO(lead *domain.Lead, now time.Time) domain.LeadCardDTO {
	users := lead.AssignedUsers
	if users == nil {
		users = []domain.UserRef{}
	}
	return domain.LeadCardDTO{
		ID:            lead.ID,
		Title:         lead.Title,
		Company:       lead.Company,
		Value:         lead.Value,
		Currency:      lead.Currency,
		Status:        lead.Status,
		Priority:      lead.Priority,
		ClientType:    lead.ClientType,
		Label:         lead.Label,
		DueDate:       lead.DueDate,
		Overdue:       lead.IsOverdue(now),
		IsArchived:    lead.IsArchived,
		AssignedUsers: users,
	}
}

// ToBoardColumnDTO converts one status aggregate and its leads to a board column
func ToBoardColumnDTO(agg pipeline.StatusAggregate, cards []domain.LeadCardDTO) domain.BoardColumnDTO {
	if cards == nil {
		cards = []domain.LeadCardDTO{}
	}
	return domain.BoardColumnDTO{
		Status:          agg.Status,
		Label:           agg.Status.Label(),
		Terminal:        agg.Status.IsTerminal(),
		Count:           agg.Count,
		TotalValue:      agg.TotalValue,
		ValueByCurrency: agg.ValueByCurrency,
		MixedCurrency:   agg.MixedCurrency,
		Leads:           cards,
	}
}

// ToPipelineMetricsDTO converts computed metrics for a range
func ToPipelineMetricsDTO(rng string, window pipeline.Window, m pipeline.Metrics) domain.PipelineMetricsDTO {
	dto := domain.PipelineMetricsDTO{
		Range:          rng,
		To:             window.End,
		TotalWon:       m.TotalWon,
		TotalLost:      m.TotalLost,
		TotalLeads:     m.TotalLeads,
		ConversionRate: m.ConversionRate,
		PipelineValue:  m.PipelineValue,
		AverageDeal:    m.AverageDeal,
		ActiveDeals:    m.ActiveDeals,
		MixedCurrency:  m.MixedCurrency,
	}
	if window.Bounded() {
		from := window.Start
		dto.From = &from
	}
	return dto
}

var activityIcons = map[domain.ActivityType]string{
	domain.ActivityTypeNote:         "note",
	domain.ActivityTypeCall:         "phone",
	domain.ActivityTypeMeeting:      "calendar",
	domain.ActivityTypeEmail:        "mail",
	domain.ActivityTypeInvoice:      "receipt",
	domain.ActivityTypeTask:         "check-square",
	domain.ActivityTypeStatusChange: "arrow-right",
}

// ToFeedItemDTO converts an activity to a feed entry
func ToFeedItemDTO(a *domain.LeadActivity, now time.Time) domain.FeedItemDTO {
	icon, ok := activityIcons[a.Type]
	if !ok {
		icon = "activity"
	}
	title := a.Title
	if title == "" {
		title = defaultTitle(a)
	}
	return domain.FeedItemDTO{
		ID:           a.ID,
		Type:         a.Type,
		Icon:         icon,
		Title:        title,
		Summary:      summarize(a),
		CreatedByID:  a.CreatedByID,
		CreatedAt:    a.CreatedAt,
		RelativeTime: RelativeTime(a.CreatedAt, now),
	}
}

func defaultTitle(a *domain.LeadActivity) string {
	switch a.Type {
	case domain.ActivityTypeStatusChange:
		return "Status changed"
	case domain.ActivityTypeInvoice:
		return "Invoice"
	case domain.ActivityTypeTask:
		return "Task"
	}
	if a.Type == "" {
		return "Activity"
	}
	s := string(a.Type)
	return strings.ToUpper(s[:1]) + s[1:]
}

// summarize renders meta payloads into a single line. Plain content wins when
// there is no structured meta to show.
func summarize(a *domain.LeadActivity) string {
	switch a.Type {
	case domain.ActivityTypeStatusChange:
		var meta domain.StatusChangeMeta
		if json.Unmarshal(a.Meta, &meta) == nil && meta.To != "" {
			return fmt.Sprintf("%s → %s", meta.From.Label(), meta.To.Label())
		}
	case domain.ActivityTypeInvoice:
		var meta domain.InvoiceMeta
		if json.Unmarshal(a.Meta, &meta) == nil && len(meta.Items) > 0 {
			return fmt.Sprintf("%d item(s), total %s %s", len(meta.Items), meta.Total.StringFixed(2), meta.Currency)
		}
	case domain.ActivityTypeCall, domain.ActivityTypeMeeting:
		var meta domain.CallMeta
		if json.Unmarshal(a.Meta, &meta) == nil && meta.DurationMinutes > 0 {
			if meta.Outcome != "" {
				return fmt.Sprintf("%d min, %s", meta.DurationMinutes, meta.Outcome)
			}
			return fmt.Sprintf("%d min", meta.DurationMinutes)
		}
	}
	return truncate(a.Content, 140)
}

func truncate(s string, max int) string {
	s = strings.TrimSpace(s)
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-1]) + "…"
}

// RelativeTime renders t relative to now, e.g. "5m ago"
func RelativeTime(t, now time.Time) string {
	d := now.Sub(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	case d < 30*24*time.Hour:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
	return t.Format("2 Jan 2006")
}
