package service_test

import (
	"testing"
	"time"

	"github.com/straye-as/pipeline-gateway/internal/pipeline"
	"github.com/straye-as/pipeline-gateway/internal/service"
	"github.com/straye-as/pipeline-gateway/internal/storage"
	"github.com/straye-as/pipeline-gateway/internal/testutil"
	"github.com/straye-as/pipeline-gateway/internal/upstream"
	"go.uber.org/zap"
)

type fixture struct {
	backend     *testutil.Backend
	client      *upstream.Client
	store       *pipeline.Store
	leads       *service.LeadService
	activities  *service.ActivityService
	transitions *service.TransitionService
	board       *service.BoardService
	dashboard   *service.DashboardService
	team        *service.TeamService
	profile     *service.ProfileService
	reports     *service.ReportService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := zap.NewNop()
	b := testutil.NewBackend(t)
	client := upstream.NewClient(upstream.Config{
		BaseURL:      b.URL(),
		Timeout:      2 * time.Second,
		ServiceToken: testutil.TestToken,
	}, nil, logger)

	store := pipeline.NewStore()
	leads := service.NewLeadService(client, store, logger)
	activities := service.NewActivityService(client, logger)
	transitions := service.NewTransitionService(leads, client, activities, logger)

	reportStore, err := storage.NewLocalStorage(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create report storage: %v", err)
	}

	return &fixture{
		backend:     b,
		client:      client,
		store:       store,
		leads:       leads,
		activities:  activities,
		transitions: transitions,
		board:       service.NewBoardService(leads, transitions, logger),
		dashboard:   service.NewDashboardService(leads, client, logger),
		team:        service.NewTeamService(client, logger),
		profile:     service.NewProfileService(client, logger),
		reports:     service.NewReportService(leads, reportStore, logger),
	}
}

// fixedClock pins every service clock in the fixture to now
func (f *fixture) fixedClock(now time.Time) {
	clock := func() time.Time { return now }
	f.leads.SetClock(clock)
	f.activities.SetClock(clock)
	f.transitions.SetClock(clock)
	f.board.SetClock(clock)
	f.dashboard.SetClock(clock)
	f.reports.SetClock(clock)
}
