package service

import "errors"

// Common service errors
var (
	// ErrNotFound is returned when a resource is not found
	ErrNotFound = errors.New("resource not found")

	// ErrInvalidInput is returned when input validation fails
	ErrInvalidInput = errors.New("invalid input")

	// ErrConflict is returned when a request conflicts with current state
	ErrConflict = errors.New("resource conflict")

	// ErrUnauthorized is returned when user is not authenticated
	ErrUnauthorized = errors.New("unauthorized")

	// ErrInvalidTransition is returned when an action is not allowed from the lead's current state
	ErrInvalidTransition = errors.New("invalid transition")

	// ErrTransitionInFlight is returned when a lead already has an unfinished transition
	ErrTransitionInFlight = errors.New("lead has a transition in progress")

	// ErrTransitionNotFound is returned when a transition id is unknown or purged
	ErrTransitionNotFound = errors.New("transition not found")

	// ErrTransitionFinished is returned when confirming or cancelling a finished transition
	ErrTransitionFinished = errors.New("transition already finished")

	// ErrNotAwaitingConfirmation is returned when confirming a transition that needs none
	ErrNotAwaitingConfirmation = errors.New("transition is not awaiting confirmation")

	// ErrStorageDisabled is returned when report export has no storage configured
	ErrStorageDisabled = errors.New("report storage is not configured")
)
