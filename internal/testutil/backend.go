// Package testutil provides an in-memory CRM backend for tests.
package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/straye-as/pipeline-gateway/internal/domain"
	"github.com/straye-as/pipeline-gateway/internal/pipeline"
)

// TestToken is accepted by every Backend
const TestToken = "test-token"

type failure struct {
	method string
	prefix string
	status int
	body   string
}

type hold struct {
	method  string
	prefix  string
	entered chan struct{}
	release chan struct{}
}

// Backend is a fake CRM REST API holding leads, activities and team members
// in memory. Failures can be injected per route.
type Backend struct {
	Server *httptest.Server

	mu         sync.Mutex
	leads      []domain.Lead
	activities map[string][]domain.LeadActivity
	team       []domain.TeamMember
	profile    domain.Profile
	password   string
	stats      domain.DashboardStats
	tokens     map[string]bool
	failures   []failure
	holds      []*hold
	requests   []string
	rawLeads   []json.RawMessage
	now        func() time.Time
}

// NewBackend starts a fake backend that is closed with the test
func NewBackend(t *testing.T) *Backend {
	t.Helper()
	b := &Backend{
		activities: map[string][]domain.LeadActivity{},
		tokens:     map[string]bool{TestToken: true},
		profile:    domain.Profile{ID: "user-1", Name: "Dewi Lestari", Email: "dewi@example.com", Role: domain.TeamRoleSales},
		password:   "correct-horse",
		now:        time.Now,
	}
	b.Server = httptest.NewServer(b.routes())
	t.Cleanup(b.Server.Close)
	return b
}

// URL returns the base URL of the fake backend
func (b *Backend) URL() string {
	return b.Server.URL
}

// AllowToken makes the backend accept another bearer token
func (b *Backend) AllowToken(token string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.tokens[token] = true
}

// SetNow fixes the clock used for server-assigned timestamps
func (b *Backend) SetNow(now func() time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.now = now
}

// Seed replaces the stored leads
func (b *Backend) Seed(leads ...domain.Lead) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.leads = make([]domain.Lead, len(leads))
	for i, l := range leads {
		b.leads[i] = l.Clone()
	}
}

// SeedRaw appends undecodable or otherwise raw lead JSON to GET /leads
func (b *Backend) SeedRaw(raw string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rawLeads = append(b.rawLeads, json.RawMessage(raw))
}

// SeedTeam replaces the stored team members
func (b *Backend) SeedTeam(members ...domain.TeamMember) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.team = append([]domain.TeamMember(nil), members...)
}

// SetStats sets the dashboard stats returned for any range
func (b *Backend) SetStats(stats domain.DashboardStats) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stats = stats
}

// Lead returns the stored lead with the given id
func (b *Backend) Lead(id string) (domain.Lead, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, l := range b.leads {
		if l.ID == id {
			return l.Clone(), true
		}
	}
	return domain.Lead{}, false
}

// Leads returns every stored lead
func (b *Backend) Leads() []domain.Lead {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]domain.Lead, len(b.leads))
	for i, l := range b.leads {
		out[i] = l.Clone()
	}
	return out
}

// Activities returns the activities stored for a lead
func (b *Backend) Activities(leadID string) []domain.LeadActivity {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]domain.LeadActivity(nil), b.activities[leadID]...)
}

// FailNext makes the next request matching method and path prefix answer
// with status and {"error": message}.
func (b *Backend) FailNext(method, pathPrefix string, status int, message string) {
	body, _ := json.Marshal(map[string]string{"error": message})
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = append(b.failures, failure{method: method, prefix: pathPrefix, status: status, body: string(body)})
}

// HoldNext parks the next request matching method and path prefix until
// release is called. entered is closed once the request has arrived.
func (b *Backend) HoldNext(method, pathPrefix string) (entered <-chan struct{}, release func()) {
	h := &hold{method: method, prefix: pathPrefix, entered: make(chan struct{}), release: make(chan struct{})}
	b.mu.Lock()
	b.holds = append(b.holds, h)
	b.mu.Unlock()
	var once sync.Once
	return h.entered, func() { once.Do(func() { close(h.release) }) }
}

// Requests returns "METHOD /path" for every request received
func (b *Backend) Requests() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.requests...)
}

// CountRequests counts received requests with the given method and path prefix
func (b *Backend) CountRequests(method, pathPrefix string) int {
	n := 0
	for _, r := range b.Requests() {
		if strings.HasPrefix(r, method+" "+pathPrefix) {
			n++
		}
	}
	return n
}

func (b *Backend) routes() http.Handler {
	r := chi.NewRouter()
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Group(func(r chi.Router) {
		r.Use(b.record, b.authenticate, b.holdRequests, b.injectFailures)

		r.Get("/leads", b.listLeads)
		r.Get("/leads/by-status", b.leadsByStatus)
		r.Post("/leads", b.createLead)
		r.Put("/leads/{id}", b.updateLead)
		r.Delete("/leads/{id}", b.deleteLead)
		r.Get("/leads/{id}/activities", b.listActivities)
		r.Post("/leads/{id}/activities", b.createActivity)

		r.Get("/dashboard/stats", b.dashboardStats)

		r.Get("/team", b.listTeam)
		r.Post("/team", b.createMember)
		r.Put("/team/{id}", b.updateMember)
		r.Delete("/team/{id}", b.deleteMember)

		r.Get("/profile", b.getProfile)
		r.Put("/profile", b.updateProfile)
		r.Put("/profile/password", b.changePassword)
	})
	return r
}

func (b *Backend) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		b.requests = append(b.requests, r.Method+" "+r.URL.Path)
		b.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

func (b *Backend) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		b.mu.Lock()
		ok := b.tokens[token]
		b.mu.Unlock()
		if !ok {
			writeError(w, http.StatusUnauthorized, "Invalid or expired token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (b *Backend) holdRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var held *hold
		b.mu.Lock()
		for i, h := range b.holds {
			if h.method == r.Method && strings.HasPrefix(r.URL.Path, h.prefix) {
				held = h
				b.holds = append(b.holds[:i], b.holds[i+1:]...)
				break
			}
		}
		b.mu.Unlock()
		if held != nil {
			close(held.entered)
			select {
			case <-held.release:
			case <-r.Context().Done():
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func (b *Backend) injectFailures(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		for i, f := range b.failures {
			if f.method == r.Method && strings.HasPrefix(r.URL.Path, f.prefix) {
				b.failures = append(b.failures[:i], b.failures[i+1:]...)
				b.mu.Unlock()
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(f.status)
				_, _ = w.Write([]byte(f.body))
				return
			}
		}
		b.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

func (b *Backend) listLeads(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	raws := make([]json.RawMessage, 0, len(b.leads)+len(b.rawLeads))
	for _, l := range b.leads {
		data, _ := json.Marshal(l)
		raws = append(raws, data)
	}
	raws = append(raws, b.rawLeads...)
	b.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"leads": raws, "total": len(raws)})
}

func (b *Backend) leadsByStatus(w http.ResponseWriter, r *http.Request) {
	leads := b.Leads()
	opts := pipeline.FilterOptions{IncludeArchived: true}
	writeJSON(w, http.StatusOK, map[string]any{
		"grouped": pipeline.GroupByStatus(leads, opts),
		"stats":   pipeline.AggregateByStatus(leads, opts),
	})
}

func (b *Backend) createLead(w http.ResponseWriter, r *http.Request) {
	var draft domain.LeadDraft
	if err := json.NewDecoder(r.Body).Decode(&draft); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid lead payload")
		return
	}
	if strings.TrimSpace(draft.Title) == "" {
		writeError(w, http.StatusBadRequest, "Title is required")
		return
	}

	b.mu.Lock()
	now := b.now().UTC()
	lead := domain.Lead{
		ID:         uuid.NewString(),
		Title:      draft.Title,
		Company:    draft.Company,
		Email:      draft.Email,
		Phone:      draft.Phone,
		Contacts:   draft.Contacts,
		Value:      draft.Value,
		Currency:   draft.Currency,
		Status:     draft.Status,
		Priority:   draft.Priority,
		ClientType: draft.ClientType,
		Label:      draft.Label,
		DueDate:    draft.DueDate,
		WonAt:      draft.WonAt,
		LostAt:     draft.LostAt,
		IsArchived: draft.IsArchived,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if lead.Status == "" {
		lead.Status = domain.LeadStatusLeadIn
	}
	for _, id := range draft.AssignedUserIDs {
		lead.AssignedUsers = append(lead.AssignedUsers, b.userRef(id))
	}
	b.leads = append(b.leads, lead)
	b.mu.Unlock()

	writeJSON(w, http.StatusCreated, map[string]any{"lead": lead, "message": "Lead created successfully"})
}

// userRef must be called with b.mu held
func (b *Backend) userRef(id string) domain.UserRef {
	for _, m := range b.team {
		if m.ID == id {
			return domain.UserRef{ID: m.ID, Name: m.Name, Email: m.Email}
		}
	}
	return domain.UserRef{ID: id}
}

func (b *Backend) updateLead(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var fields map[string]json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid lead payload")
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	idx := b.indexOf(id)
	if idx < 0 {
		writeError(w, http.StatusNotFound, "Lead not found")
		return
	}

	// decode the stored lead merged with the patch; null clears a field
	current, _ := json.Marshal(b.leads[idx])
	var merged map[string]json.RawMessage
	_ = json.Unmarshal(current, &merged)
	for k, v := range fields {
		if k == "assignedUserIds" {
			var ids []string
			_ = json.Unmarshal(v, &ids)
			refs := make([]domain.UserRef, 0, len(ids))
			for _, uid := range ids {
				refs = append(refs, b.userRef(uid))
			}
			merged["assignedUsers"], _ = json.Marshal(refs)
			continue
		}
		merged[k] = v
	}
	data, _ := json.Marshal(merged)
	var updated domain.Lead
	if err := json.Unmarshal(data, &updated); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	updated.ID = id
	updated.UpdatedAt = b.now().UTC()
	b.leads[idx] = updated

	writeJSON(w, http.StatusOK, map[string]any{"lead": updated, "message": "Lead updated successfully"})
}

func (b *Backend) deleteLead(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	b.mu.Lock()
	defer b.mu.Unlock()
	idx := b.indexOf(id)
	if idx < 0 {
		writeError(w, http.StatusNotFound, "Lead not found")
		return
	}
	b.leads = append(b.leads[:idx], b.leads[idx+1:]...)
	writeJSON(w, http.StatusOK, map[string]string{"message": "Lead deleted successfully"})
}

// indexOf must be called with b.mu held
func (b *Backend) indexOf(id string) int {
	for i, l := range b.leads {
		if l.ID == id {
			return i
		}
	}
	return -1
}

func (b *Backend) listActivities(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, ok := b.Lead(id); !ok {
		writeError(w, http.StatusNotFound, "Lead not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"activities": b.Activities(id)})
}

func (b *Backend) createActivity(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req domain.CreateActivityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid activity payload")
		return
	}
	if _, ok := b.Lead(id); !ok {
		writeError(w, http.StatusNotFound, "Lead not found")
		return
	}

	b.mu.Lock()
	activity := domain.LeadActivity{
		ID:          uuid.NewString(),
		LeadID:      id,
		Type:        req.Type,
		Title:       req.Title,
		Content:     req.Content,
		Meta:        req.Meta,
		CreatedByID: b.profile.ID,
		CreatedAt:   b.now().UTC(),
	}
	// newest first, like the feed
	b.activities[id] = append([]domain.LeadActivity{activity}, b.activities[id]...)
	b.mu.Unlock()

	writeJSON(w, http.StatusCreated, map[string]any{"activity": activity})
}

func (b *Backend) dashboardStats(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	stats := b.stats
	b.mu.Unlock()
	stats.Range = r.URL.Query().Get("range")
	writeJSON(w, http.StatusOK, stats)
}

func (b *Backend) listTeam(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	members := append([]domain.TeamMember(nil), b.team...)
	b.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"members": members})
}

func (b *Backend) createMember(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateTeamMemberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid team member payload")
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for _, m := range b.team {
		if strings.EqualFold(m.Email, req.Email) {
			writeError(w, http.StatusConflict, "Email already in use")
			return
		}
	}
	now := b.now().UTC()
	member := domain.TeamMember{
		ID:        uuid.NewString(),
		Name:      req.Name,
		Email:     req.Email,
		Phone:     req.Phone,
		Role:      req.Role,
		Status:    req.Status,
		JoinedAt:  req.JoinedAt,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if member.Status == "" {
		member.Status = domain.TeamMemberStatusActive
	}
	b.team = append(b.team, member)
	writeJSON(w, http.StatusCreated, map[string]any{"member": member, "message": "Team member created"})
}

func (b *Backend) updateMember(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req domain.UpdateTeamMemberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid team member payload")
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.team {
		if b.team[i].ID != id {
			continue
		}
		m := &b.team[i]
		if req.Name != nil {
			m.Name = *req.Name
		}
		if req.Email != nil {
			m.Email = *req.Email
		}
		if req.Phone != nil {
			m.Phone = *req.Phone
		}
		if req.Role != nil {
			m.Role = *req.Role
		}
		if req.Status != nil {
			m.Status = *req.Status
		}
		if req.JoinedAt != nil {
			m.JoinedAt = req.JoinedAt
		}
		m.UpdatedAt = b.now().UTC()
		writeJSON(w, http.StatusOK, map[string]any{"member": *m, "message": "Team member updated"})
		return
	}
	writeError(w, http.StatusNotFound, "Team member not found")
}

func (b *Backend) deleteMember(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.team {
		if b.team[i].ID == id {
			b.team = append(b.team[:i], b.team[i+1:]...)
			writeJSON(w, http.StatusOK, map[string]string{"message": "Team member deleted"})
			return
		}
	}
	writeError(w, http.StatusNotFound, "Team member not found")
}

func (b *Backend) getProfile(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	p := b.profile
	b.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"profile": p})
}

func (b *Backend) updateProfile(w http.ResponseWriter, r *http.Request) {
	var req domain.UpdateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid profile payload")
		return
	}
	b.mu.Lock()
	if req.Name != nil {
		b.profile.Name = *req.Name
	}
	if req.Email != nil {
		b.profile.Email = *req.Email
	}
	if req.Phone != nil {
		b.profile.Phone = *req.Phone
	}
	if req.Avatar != nil {
		b.profile.Avatar = *req.Avatar
	}
	p := b.profile
	b.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"profile": p, "message": "Profile updated"})
}

func (b *Backend) changePassword(w http.ResponseWriter, r *http.Request) {
	var req domain.ChangePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid password payload")
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if req.CurrentPassword != b.password {
		writeError(w, http.StatusBadRequest, "Current password is incorrect")
		return
	}
	b.password = req.NewPassword
	writeJSON(w, http.StatusOK, map[string]string{"message": "Password changed successfully"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// OpenLead builds a valid open lead for seeding
func OpenLead(id, title string, status domain.LeadStatus, value int64, currency string) domain.Lead {
	now := time.Now().UTC().Add(-time.Hour)
	return domain.Lead{
		ID:        id,
		Title:     title,
		Value:     decimal.NewFromInt(value),
		Currency:  currency,
		Status:    status,
		Priority:  domain.LeadPriorityMedium,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
