package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/shopspring/decimal"
	"github.com/straye-as/pipeline-gateway/internal/domain"
	"go.uber.org/zap"
)

// LeadList is the decoded body of GET /leads
type LeadList struct {
	Leads []domain.Lead
	Total int
	// Skipped counts leads whose JSON could not be decoded into the lead model
	Skipped int
}

// StatusStat is one entry of the backend's per-status statistics
type StatusStat struct {
	Status     domain.LeadStatus `json:"status"`
	Count      int               `json:"count"`
	TotalValue decimal.Decimal   `json:"totalValue"`
}

// LeadsByStatus is the decoded body of GET /leads/by-status
type LeadsByStatus struct {
	Grouped map[domain.LeadStatus][]domain.Lead
	Stats   []StatusStat
}

// LeadResult is the body of lead create and update calls
type LeadResult struct {
	Lead    domain.Lead `json:"lead"`
	Message string      `json:"message"`
}

// decodeLeads decodes each lead on its own so one malformed record does not
// hide the rest of the collection.
func (c *Client) decodeLeads(op string, raws []json.RawMessage) ([]domain.Lead, int) {
	leads := make([]domain.Lead, 0, len(raws))
	skipped := 0
	for _, raw := range raws {
		var l domain.Lead
		if err := json.Unmarshal(raw, &l); err != nil {
			skipped++
			c.logger.Warn("skipping malformed lead from backend",
				zap.String("operation", op),
				zap.Error(err),
			)
			continue
		}
		leads = append(leads, l)
	}
	return leads, skipped
}

// ListLeads fetches the full lead collection
func (c *Client) ListLeads(ctx context.Context) (*LeadList, error) {
	var body struct {
		Leads []json.RawMessage `json:"leads"`
		Total int               `json:"total"`
	}
	if err := c.do(ctx, "list_leads", http.MethodGet, "/leads", nil, nil, &body); err != nil {
		return nil, err
	}
	leads, skipped := c.decodeLeads("list_leads", body.Leads)
	return &LeadList{Leads: leads, Total: body.Total, Skipped: skipped}, nil
}

// ListLeadsByStatus fetches the backend's own grouping
func (c *Client) ListLeadsByStatus(ctx context.Context) (*LeadsByStatus, error) {
	var body struct {
		Grouped map[string][]json.RawMessage `json:"grouped"`
		Stats   []json.RawMessage            `json:"stats"`
	}
	if err := c.do(ctx, "leads_by_status", http.MethodGet, "/leads/by-status", nil, nil, &body); err != nil {
		return nil, err
	}

	out := &LeadsByStatus{Grouped: make(map[domain.LeadStatus][]domain.Lead, len(body.Grouped))}
	for key, raws := range body.Grouped {
		status, err := domain.ParseLeadStatus(key)
		if err != nil {
			c.logger.Warn("skipping unknown status group from backend", zap.String("status", key))
			continue
		}
		out.Grouped[status], _ = c.decodeLeads("leads_by_status", raws)
	}
	for _, raw := range body.Stats {
		var stat StatusStat
		if err := json.Unmarshal(raw, &stat); err != nil {
			c.logger.Warn("skipping malformed status stat", zap.Error(err))
			continue
		}
		out.Stats = append(out.Stats, stat)
	}
	return out, nil
}

// CreateLead creates a lead
func (c *Client) CreateLead(ctx context.Context, draft domain.LeadDraft) (*LeadResult, error) {
	var res LeadResult
	if err := c.do(ctx, "create_lead", http.MethodPost, "/leads", nil, draft, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// UpdateLead sends a partial update for one lead
func (c *Client) UpdateLead(ctx context.Context, id string, patch domain.LeadPatch) (*LeadResult, error) {
	var res LeadResult
	path := "/leads/" + url.PathEscape(id)
	if err := c.do(ctx, "update_lead", http.MethodPut, path, nil, patch, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// DeleteLead permanently removes a lead
func (c *Client) DeleteLead(ctx context.Context, id string) (string, error) {
	var res domain.MessageResponse
	path := "/leads/" + url.PathEscape(id)
	if err := c.do(ctx, "delete_lead", http.MethodDelete, path, nil, nil, &res); err != nil {
		return "", err
	}
	return res.Message, nil
}

// DashboardStats fetches the backend-computed KPI cards for a range
func (c *Client) DashboardStats(ctx context.Context, rng string) (*domain.DashboardStats, error) {
	query := url.Values{}
	if rng != "" {
		query.Set("range", rng)
	}
	var stats domain.DashboardStats
	if err := c.do(ctx, "dashboard_stats", http.MethodGet, "/dashboard/stats", query, nil, &stats); err != nil {
		return nil, err
	}
	if stats.Range == "" {
		stats.Range = rng
	}
	return &stats, nil
}

// CreateActivity posts an activity to a lead's feed
func (c *Client) CreateActivity(ctx context.Context, leadID string, req domain.CreateActivityRequest) (*domain.LeadActivity, error) {
	var raw json.RawMessage
	path := fmt.Sprintf("/leads/%s/activities", url.PathEscape(leadID))
	if err := c.do(ctx, "create_activity", http.MethodPost, path, nil, req, &raw); err != nil {
		return nil, err
	}

	// the backend answers with either the activity or {"activity": ...}
	var wrapped struct {
		Activity *domain.LeadActivity `json:"activity"`
	}
	if err := json.Unmarshal(raw, &wrapped); err == nil && wrapped.Activity != nil {
		return wrapped.Activity, nil
	}
	var activity domain.LeadActivity
	if err := json.Unmarshal(raw, &activity); err != nil {
		return nil, fmt.Errorf("create_activity: failed to decode response: %w", err)
	}
	if activity.LeadID == "" {
		activity.LeadID = leadID
	}
	return &activity, nil
}

// ListActivities fetches a lead's activity feed
func (c *Client) ListActivities(ctx context.Context, leadID string) ([]domain.LeadActivity, error) {
	var body struct {
		Activities []domain.LeadActivity `json:"activities"`
	}
	path := fmt.Sprintf("/leads/%s/activities", url.PathEscape(leadID))
	if err := c.do(ctx, "list_activities", http.MethodGet, path, nil, nil, &body); err != nil {
		return nil, err
	}
	return body.Activities, nil
}
