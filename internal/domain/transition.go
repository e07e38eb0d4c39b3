package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrInvalidTransitionAction is returned when decoding an unknown action
var ErrInvalidTransitionAction = errors.New("invalid transition action")

// TransitionAction names a user gesture that changes a lead's pipeline state
type TransitionAction string

const (
	TransitionMove    TransitionAction = "move"
	TransitionWon     TransitionAction = "won"
	TransitionLost    TransitionAction = "lost"
	TransitionDelete  TransitionAction = "delete"
	TransitionArchive TransitionAction = "archive"
	TransitionRestore TransitionAction = "restore"
)

// IsValid checks if the TransitionAction is a valid enum value
func (a TransitionAction) IsValid() bool {
	switch a {
	case TransitionMove, TransitionWon, TransitionLost, TransitionDelete, TransitionArchive, TransitionRestore:
		return true
	}
	return false
}

// RequiresConfirmation reports whether the action waits for an explicit confirm
// before the mutating call is issued.
func (a TransitionAction) RequiresConfirmation() bool {
	return a == TransitionDelete || a == TransitionWon || a == TransitionLost
}

// ChangesStatus reports whether a committed action records a status_change activity
func (a TransitionAction) ChangesStatus() bool {
	return a == TransitionMove || a == TransitionWon || a == TransitionLost
}

func (a *TransitionAction) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidTransitionAction, string(data))
	}
	action := TransitionAction(strings.ToLower(strings.TrimSpace(raw)))
	if !action.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidTransitionAction, raw)
	}
	*a = action
	return nil
}

// TransitionState is the lifecycle of a pending transition
type TransitionState string

const (
	TransitionAwaitingConfirmation TransitionState = "awaiting_confirmation"
	TransitionInFlight             TransitionState = "in_flight"
	TransitionCommitted            TransitionState = "committed"
	TransitionRolledBack           TransitionState = "rolled_back"
	TransitionCancelled            TransitionState = "cancelled"
)

// IsFinished reports whether the transition can no longer change
func (s TransitionState) IsFinished() bool {
	switch s {
	case TransitionCommitted, TransitionRolledBack, TransitionCancelled:
		return true
	}
	return false
}

// Transition tracks one gesture from the moment it is made until the backend
// confirms or rejects it.
type Transition struct {
	ID        string           `json:"id"`
	LeadID    string           `json:"leadId"`
	Action    TransitionAction `json:"action"`
	From      LeadStatus       `json:"from"`
	To        LeadStatus       `json:"to"`
	State     TransitionState  `json:"state"`
	Error     string           `json:"error,omitempty"`
	Message   string           `json:"message,omitempty"`
	CreatedAt time.Time        `json:"createdAt"`
	UpdatedAt time.Time        `json:"updatedAt"`
}
