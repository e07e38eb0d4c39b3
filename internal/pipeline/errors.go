package pipeline

import "errors"

// Transition rule errors
var (
	// ErrTerminalStatus is returned when a won or lost lead is asked to change status
	ErrTerminalStatus = errors.New("lead is in a terminal status")

	// ErrSameStatus is returned when a move targets the lead's current column
	ErrSameStatus = errors.New("lead is already in the target status")

	// ErrInvalidTarget is returned when a move targets an unknown or terminal status
	ErrInvalidTarget = errors.New("invalid target status")

	// ErrAlreadyArchived is returned when archiving an archived lead
	ErrAlreadyArchived = errors.New("lead is already archived")

	// ErrNotArchived is returned when restoring a lead that is not archived
	ErrNotArchived = errors.New("lead is not archived")

	// ErrUnknownAction is returned for actions outside the transition table
	ErrUnknownAction = errors.New("unknown transition action")

	// ErrInvalidLead is returned when a lead draft fails its creation rules
	ErrInvalidLead = errors.New("invalid lead")

	// ErrInvalidRange is returned for an unsupported metrics range
	ErrInvalidRange = errors.New("invalid range")
)
