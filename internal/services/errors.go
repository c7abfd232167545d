package services

import "errors"

// Sentinel errors shared across the service layer. Handlers map these onto
// HTTP status codes with errors.Is.
var (
	// ErrUnknownModule is returned when a module id is not registered.
	ErrUnknownModule = errors.New("module not found")

	// ErrUnknownEventKind is returned for event types outside the known set.
	ErrUnknownEventKind = errors.New("unknown event type")

	// ErrInvalidRegistration is returned when a module registration is
	// missing required fields or carries an invalid category.
	ErrInvalidRegistration = errors.New("invalid module registration")

	// ErrScheduleNotFound is returned when a simulation schedule id does not
	// exist.
	ErrScheduleNotFound = errors.New("schedule not found")
)
