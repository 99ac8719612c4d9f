package session

import "errors"

// Error taxonomy. Handlers map these to HTTP status codes; everything else is
// an internal error. All rejections leave state untouched.
var (
	// ErrNotFound marks an unknown session, quest, waypoint, task, or
	// participant.
	ErrNotFound = errors.New("not found")

	// ErrValidation marks malformed input: out-of-range coordinates, empty
	// payloads, answers for foreign questions.
	ErrValidation = errors.New("validation failed")

	// ErrAccess marks a caller that is neither the organizer nor an active
	// participant, including participants in a terminal status.
	ErrAccess = errors.New("access denied")

	// ErrStateConflict marks an operation the current state forbids: task
	// already completed, deadline passed, waypoint not yet reachable,
	// question already answered, session ended.
	ErrStateConflict = errors.New("state conflict")
)
