package upstream_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/straye-as/pipeline-gateway/internal/domain"
	"github.com/straye-as/pipeline-gateway/internal/testutil"
	"github.com/straye-as/pipeline-gateway/internal/upstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newClient(t *testing.T, b *testutil.Backend) *upstream.Client {
	t.Helper()
	return upstream.NewClient(upstream.Config{
		BaseURL:      b.URL(),
		Timeout:      2 * time.Second,
		ServiceToken: testutil.TestToken,
	}, nil, zap.NewNop())
}

func TestClient_ListLeads(t *testing.T) {
	b := testutil.NewBackend(t)
	b.Seed(
		testutil.OpenLead("a", "Acme", domain.LeadStatusLeadIn, 100, "USD"),
		testutil.OpenLead("b", "Globex", domain.LeadStatusNegotiation, 200, "USD"),
	)
	c := newClient(t, b)

	list, err := c.ListLeads(context.Background())
	require.NoError(t, err)

	require.Len(t, list.Leads, 2)
	assert.Equal(t, 2, list.Total)
	assert.Equal(t, "a", list.Leads[0].ID)
	assert.True(t, list.Leads[1].Value.Equal(decimal.NewFromInt(200)))
	assert.Equal(t, 0, list.Skipped)
}

func TestClient_ListLeadsSkipsUnknownStatus(t *testing.T) {
	b := testutil.NewBackend(t)
	b.Seed(testutil.OpenLead("a", "Acme", domain.LeadStatusLeadIn, 100, "USD"))
	b.SeedRaw(`{"id":"bad","title":"Bad","value":1,"currency":"USD","status":"ON_HOLD","priority":"LOW"}`)
	c := newClient(t, b)

	list, err := c.ListLeads(context.Background())
	require.NoError(t, err)

	assert.Len(t, list.Leads, 1)
	assert.Equal(t, 1, list.Skipped)
}

func TestClient_ListLeadsByStatus(t *testing.T) {
	b := testutil.NewBackend(t)
	b.Seed(
		testutil.OpenLead("a", "Acme", domain.LeadStatusLeadIn, 100, "USD"),
		testutil.OpenLead("b", "Globex", domain.LeadStatusLeadIn, 50, "USD"),
	)
	c := newClient(t, b)

	res, err := c.ListLeadsByStatus(context.Background())
	require.NoError(t, err)

	assert.Len(t, res.Grouped[domain.LeadStatusLeadIn], 2)
	assert.Empty(t, res.Grouped[domain.LeadStatusWon])
	require.Len(t, res.Stats, 8)
	assert.Equal(t, 2, res.Stats[0].Count)
	assert.True(t, res.Stats[0].TotalValue.Equal(decimal.NewFromInt(150)))
}

func TestClient_CreateUpdateDelete(t *testing.T) {
	b := testutil.NewBackend(t)
	c := newClient(t, b)
	ctx := context.Background()

	created, err := c.CreateLead(ctx, domain.LeadDraft{
		Title:    "Acme Deal",
		Value:    decimal.NewFromInt(1000000),
		Currency: "IDR",
		Status:   domain.LeadStatusLeadIn,
		Priority: domain.LeadPriorityHigh,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, created.Lead.ID)
	assert.Equal(t, "Lead created successfully", created.Message)

	won := domain.LeadStatusWon
	at := time.Date(2026, 7, 1, 10, 0, 0, 0, time.UTC)
	updated, err := c.UpdateLead(ctx, created.Lead.ID, domain.LeadPatch{Status: &won, WonAt: &at, ClearLostAt: true})
	require.NoError(t, err)
	assert.Equal(t, domain.LeadStatusWon, updated.Lead.Status)
	require.NotNil(t, updated.Lead.WonAt)
	assert.True(t, at.Equal(*updated.Lead.WonAt))
	assert.Nil(t, updated.Lead.LostAt)

	msg, err := c.DeleteLead(ctx, created.Lead.ID)
	require.NoError(t, err)
	assert.Equal(t, "Lead deleted successfully", msg)

	_, err = c.DeleteLead(ctx, created.Lead.ID)
	assert.ErrorIs(t, err, upstream.ErrNotFound)
}

func TestClient_BackendMessageIsPassedThrough(t *testing.T) {
	b := testutil.NewBackend(t)
	b.Seed(testutil.OpenLead("a", "Acme", domain.LeadStatusLeadIn, 100, "USD"))
	b.FailNext(http.MethodPut, "/leads/a", http.StatusUnprocessableEntity, "Lead is locked by finance")
	c := newClient(t, b)

	status := domain.LeadStatusNegotiation
	_, err := c.UpdateLead(context.Background(), "a", domain.LeadPatch{Status: &status})
	require.Error(t, err)

	var apiErr *upstream.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnprocessableEntity, apiErr.StatusCode)
	assert.Equal(t, "Lead is locked by finance", apiErr.Message)
	assert.Equal(t, "Lead is locked by finance", err.Error())
}

func TestClient_TransportError(t *testing.T) {
	b := testutil.NewBackend(t)
	c := newClient(t, b)
	b.Server.Close()

	_, err := c.ListLeads(context.Background())
	assert.ErrorIs(t, err, upstream.ErrUnavailable)

	var apiErr *upstream.Error
	assert.NotErrorAs(t, err, &apiErr)
}

func TestClient_TokenSelection(t *testing.T) {
	b := testutil.NewBackend(t)
	b.AllowToken("caller-token")

	c := upstream.NewClient(upstream.Config{BaseURL: b.URL()}, func(ctx context.Context) (string, bool) {
		return "caller-token", true
	}, zap.NewNop())
	_, err := c.ListLeads(context.Background())
	require.NoError(t, err)

	_, err = c.ListLeads(upstream.WithToken(context.Background(), "stolen"))
	assert.ErrorIs(t, err, upstream.ErrUnauthorized)

	bare := upstream.NewClient(upstream.Config{BaseURL: b.URL()}, nil, zap.NewNop())
	_, err = bare.ListLeads(context.Background())
	assert.ErrorIs(t, err, upstream.ErrNoToken)
	assert.Equal(t, 2, b.CountRequests(http.MethodGet, "/leads"), "no request without a token")
}

func TestClient_DashboardStats(t *testing.T) {
	b := testutil.NewBackend(t)
	b.SetStats(domain.DashboardStats{
		PipelineValue: domain.KPI{Value: decimal.NewFromInt(5000), Change: 12.5, IsPositive: true},
		AvgDeal:       domain.KPI{Value: decimal.NewFromInt(1250), Change: -4, IsPositive: false},
	})
	c := newClient(t, b)

	stats, err := c.DashboardStats(context.Background(), "30d")
	require.NoError(t, err)

	assert.Equal(t, "30d", stats.Range)
	assert.Equal(t, 12.5, stats.PipelineValue.Change)
	assert.False(t, stats.AvgDeal.IsPositive)
}

func TestClient_Activities(t *testing.T) {
	b := testutil.NewBackend(t)
	b.Seed(testutil.OpenLead("a", "Acme", domain.LeadStatusLeadIn, 100, "USD"))
	c := newClient(t, b)
	ctx := context.Background()

	activity, err := c.CreateActivity(ctx, "a", domain.CreateActivityRequest{Type: domain.ActivityTypeNote, Content: "Called back"})
	require.NoError(t, err)
	assert.Equal(t, "a", activity.LeadID)
	assert.Equal(t, domain.ActivityTypeNote, activity.Type)

	list, err := c.ListActivities(ctx, "a")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Called back", list[0].Content)

	_, err = c.CreateActivity(ctx, "missing", domain.CreateActivityRequest{Type: domain.ActivityTypeNote})
	assert.ErrorIs(t, err, upstream.ErrNotFound)
}

func TestClient_TeamAndProfile(t *testing.T) {
	b := testutil.NewBackend(t)
	c := newClient(t, b)
	ctx := context.Background()

	member, err := c.CreateTeamMember(ctx, domain.CreateTeamMemberRequest{Name: "Budi", Email: "budi@example.com", Role: domain.TeamRoleSales})
	require.NoError(t, err)
	assert.Equal(t, domain.TeamMemberStatusActive, member.Status)

	_, err = c.CreateTeamMember(ctx, domain.CreateTeamMemberRequest{Name: "Budi 2", Email: "BUDI@example.com", Role: domain.TeamRoleSales})
	var apiErr *upstream.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusConflict, apiErr.StatusCode)

	leave := domain.TeamMemberStatusOnLeave
	updated, err := c.UpdateTeamMember(ctx, member.ID, domain.UpdateTeamMemberRequest{Status: &leave})
	require.NoError(t, err)
	assert.Equal(t, domain.TeamMemberStatusOnLeave, updated.Status)

	members, err := c.ListTeam(ctx)
	require.NoError(t, err)
	assert.Len(t, members, 1)

	_, err = c.DeleteTeamMember(ctx, member.ID)
	require.NoError(t, err)

	profile, err := c.GetProfile(ctx)
	require.NoError(t, err)
	assert.Equal(t, "user-1", profile.ID)

	_, err = c.ChangePassword(ctx, domain.ChangePasswordRequest{CurrentPassword: "wrong", NewPassword: "newpassword1", ConfirmPassword: "newpassword1"})
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "Current password is incorrect", apiErr.Message)
}

func TestClient_Ping(t *testing.T) {
	b := testutil.NewBackend(t)
	c := newClient(t, b)
	assert.NoError(t, c.Ping(context.Background()))

	b.Server.Close()
	assert.ErrorIs(t, c.Ping(context.Background()), upstream.ErrUnavailable)
}

func TestClient_CheckToken(t *testing.T) {
	b := testutil.NewBackend(t)
	b.AllowToken("caller-token")
	c := newClient(t, b)
	ctx := context.Background()

	ok, err := c.CheckToken(ctx, "caller-token")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = c.CheckToken(ctx, "not-a-real-token")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Contains(t, b.Requests(), "GET /profile")

	b.FailNext(http.MethodGet, "/profile", http.StatusForbidden, "Account disabled")
	ok, err = c.CheckToken(ctx, "caller-token")
	require.NoError(t, err)
	assert.False(t, ok)

	b.FailNext(http.MethodGet, "/profile", http.StatusInternalServerError, "boom")
	_, err = c.CheckToken(ctx, "caller-token")
	require.Error(t, err)

	b.Server.Close()
	_, err = c.CheckToken(ctx, "caller-token")
	assert.ErrorIs(t, err, upstream.ErrUnavailable)
}
