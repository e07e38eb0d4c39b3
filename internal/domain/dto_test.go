package domain_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/straye-as/pipeline-gateway/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLeadPatch_MarshalJSON(t *testing.T) {
	now := time.Date(2026, 5, 4, 9, 30, 0, 0, time.UTC)
	status := domain.LeadStatusWon

	patch := domain.LeadPatch{
		Status:      &status,
		WonAt:       &now,
		ClearLostAt: true,
	}

	data, err := json.Marshal(patch)
	require.NoError(t, err)

	var body map[string]any
	require.NoError(t, json.Unmarshal(data, &body))

	assert.Equal(t, "WON", body["status"])
	assert.Equal(t, "2026-05-04T09:30:00Z", body["wonAt"])
	v, present := body["lostAt"]
	assert.True(t, present, "cleared timestamps are sent as null")
	assert.Nil(t, v)
	assert.NotContains(t, body, "title")
	assert.Len(t, body, 3)
}

func TestLeadPatch_IsEmpty(t *testing.T) {
	assert.True(t, domain.LeadPatch{}.IsEmpty())

	archived := true
	assert.False(t, domain.LeadPatch{IsArchived: &archived}.IsEmpty())
	assert.False(t, domain.LeadPatch{ClearWonAt: true}.IsEmpty())
}

func TestTransitionAction(t *testing.T) {
	tests := []struct {
		action  domain.TransitionAction
		confirm bool
		status  bool
	}{
		{domain.TransitionMove, false, true},
		{domain.TransitionWon, true, true},
		{domain.TransitionLost, true, true},
		{domain.TransitionDelete, true, false},
		{domain.TransitionArchive, false, false},
		{domain.TransitionRestore, false, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.action), func(t *testing.T) {
			assert.True(t, tt.action.IsValid())
			assert.Equal(t, tt.confirm, tt.action.RequiresConfirmation())
			assert.Equal(t, tt.status, tt.action.ChangesStatus())
		})
	}
}

func TestTransitionRequest_DecodeRejectsUnknownAction(t *testing.T) {
	var req domain.TransitionRequest
	err := json.Unmarshal([]byte(`{"action":"teleport"}`), &req)
	assert.ErrorIs(t, err, domain.ErrInvalidTransitionAction)

	require.NoError(t, json.Unmarshal([]byte(`{"action":"MOVE","target":"negotiation"}`), &req))
	assert.Equal(t, domain.TransitionMove, req.Action)
	assert.Equal(t, domain.LeadStatusNegotiation, req.Target)
}

func TestTransitionState_IsFinished(t *testing.T) {
	assert.False(t, domain.TransitionAwaitingConfirmation.IsFinished())
	assert.False(t, domain.TransitionInFlight.IsFinished())
	assert.True(t, domain.TransitionCommitted.IsFinished())
	assert.True(t, domain.TransitionRolledBack.IsFinished())
	assert.True(t, domain.TransitionCancelled.IsFinished())
}
