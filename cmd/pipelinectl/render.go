package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/straye-as/pipeline-gateway/internal/domain"
)

var (
	headerStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63"))
	terminalStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("240"))
	successStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("46"))
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	mutedStyle    = lipgloss.NewStyle().Faint(true)
	pendingStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	columnStyle   = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1)
)

const cardWidth = 36

// renderBoard prints one bordered block per status column, in pipeline order
func renderBoard(board *domain.BoardDTO) string {
	blocks := make([]string, 0, len(board.Columns)+1)
	for _, col := range board.Columns {
		blocks = append(blocks, renderColumn(col))
	}

	footer := fmt.Sprintf("Fetched %s", board.FetchedAt.Local().Format("2006-01-02 15:04:05"))
	if board.PendingCount > 0 {
		footer += pendingStyle.Render(fmt.Sprintf("  %d pending", board.PendingCount))
	}
	if board.IncludeArchived {
		footer += "  (archived included)"
	}
	blocks = append(blocks, mutedStyle.Render(footer))
	return lipgloss.JoinVertical(lipgloss.Left, blocks...)
}

func renderColumn(col domain.BoardColumnDTO) string {
	style := headerStyle
	if col.Terminal {
		style = terminalStyle
	}
	header := style.Render(fmt.Sprintf("%s (%d)", col.Label, col.Count)) + "  " + formatColumnValue(col)

	lines := []string{header}
	if len(col.Leads) == 0 {
		lines = append(lines, mutedStyle.Render("no leads"))
	}
	for _, card := range col.Leads {
		lines = append(lines, renderCard(card))
	}
	return columnStyle.Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}

func formatColumnValue(col domain.BoardColumnDTO) string {
	total := col.TotalValue.StringFixed(2)
	if col.MixedCurrency {
		return total + errorStyle.Render(" mixed currency")
	}
	for cur := range col.ValueByCurrency {
		total += " " + cur
	}
	return total
}

func renderCard(card domain.LeadCardDTO) string {
	title := truncate(card.Title, cardWidth)
	if card.Company != "" {
		title += mutedStyle.Render(" · " + truncate(card.Company, 20))
	}
	details := []string{card.Value.StringFixed(2) + " " + card.Currency, strings.ToLower(string(card.Priority))}
	if card.Label != "" {
		details = append(details, card.Label)
	}
	if card.Overdue {
		details = append(details, errorStyle.Render("overdue"))
	}
	if card.IsArchived {
		details = append(details, "archived")
	}
	if card.Pending {
		details = append(details, pendingStyle.Render("pending "+string(card.PendingAction)))
	}
	return fmt.Sprintf("%s\n  %s %s", title, mutedStyle.Render(card.ID), strings.Join(details, ", "))
}

func renderLeads(leads []domain.Lead) string {
	if len(leads) == 0 {
		return mutedStyle.Render("No leads found.")
	}
	var b strings.Builder
	for _, l := range leads {
		fmt.Fprintf(&b, "%-14s %-38s %14s %s  %s\n",
			l.ID,
			truncate(l.Title, cardWidth),
			l.Value.StringFixed(2),
			l.Currency,
			l.Status.Label())
	}
	return strings.TrimRight(b.String(), "\n")
}

func renderMetrics(m *domain.PipelineMetricsDTO) string {
	rows := []struct {
		name string
		kpi  domain.KPI
		unit string
	}{
		{"Won", m.TotalWon, ""},
		{"Lost", m.TotalLost, ""},
		{"New leads", m.TotalLeads, ""},
		{"Conversion", m.ConversionRate, "%"},
		{"Pipeline value", m.PipelineValue, ""},
		{"Average deal", m.AverageDeal, ""},
		{"Active deals", m.ActiveDeals, ""},
	}

	lines := []string{headerStyle.Render("Pipeline metrics, " + m.Range)}
	for _, r := range rows {
		change := mutedStyle.Render("  -")
		if r.kpi.Change != 0 {
			style := errorStyle
			if r.kpi.IsPositive {
				style = successStyle
			}
			change = style.Render(fmt.Sprintf("%+6.1f%%", r.kpi.Change))
		}
		lines = append(lines, fmt.Sprintf("%-16s %14s%-1s %s", r.name, r.kpi.Value.String(), r.unit, change))
	}
	if m.MixedCurrency {
		lines = append(lines, errorStyle.Render("Values span more than one currency."))
	}
	return columnStyle.Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}

func renderFeed(items []domain.FeedItemDTO) string {
	if len(items) == 0 {
		return mutedStyle.Render("No activity yet.")
	}
	lines := make([]string, 0, len(items))
	for _, it := range items {
		line := fmt.Sprintf("%s %s  %s", it.Icon, it.Title, mutedStyle.Render(it.RelativeTime))
		if it.Summary != "" {
			line += "\n    " + it.Summary
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

func renderTransition(t domain.Transition) string {
	var what string
	switch t.Action {
	case domain.TransitionMove:
		what = fmt.Sprintf("Moved %s from %s to %s", t.LeadID, t.From.Label(), t.To.Label())
	case domain.TransitionWon:
		what = fmt.Sprintf("Marked %s as won", t.LeadID)
	case domain.TransitionLost:
		what = fmt.Sprintf("Marked %s as lost", t.LeadID)
	case domain.TransitionDelete:
		what = fmt.Sprintf("Deleted %s", t.LeadID)
	case domain.TransitionArchive:
		what = fmt.Sprintf("Archived %s", t.LeadID)
	case domain.TransitionRestore:
		what = fmt.Sprintf("Restored %s", t.LeadID)
	}
	out := successStyle.Render("✔") + " " + what
	if t.Message != "" {
		out += "\n  " + mutedStyle.Render(t.Message)
	}
	return out
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-1]) + "…"
}
