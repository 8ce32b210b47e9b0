package game

import "errors"

// Error taxonomy for scan adjudication and persistence. Handlers map these to
// protocol error codes with errors.Is.
var (
	// ErrValidation is returned for malformed input. Fails fast, no state
	// change, no transaction recorded.
	ErrValidation = errors.New("invalid data")

	// ErrNoSession is returned when a scan arrives with no active session.
	ErrNoSession = errors.New("no active session")

	// ErrSessionPaused rejects scans while the session is paused.
	ErrSessionPaused = errors.New("session is paused")

	// ErrSessionActive is returned when creating a session while another is
	// still active; the operator must end the prior one first.
	ErrSessionActive = errors.New("a session is already active")

	// ErrInvalidToken marks a scan of a token id absent from the catalog.
	ErrInvalidToken = errors.New("unknown token")

	// ErrOrphanedDuplicate marks a duplicate whose original accepted
	// transaction cannot be found. Never silently accepted.
	ErrOrphanedDuplicate = errors.New("duplicate without accepted original")

	// ErrConfiguration means a scoring lookup table is missing an expected
	// key. Fatal for the transaction; never defaults to zero.
	ErrConfiguration = errors.New("missing scoring configuration")

	// ErrPersistence means a durable write failed. The triggering mutation
	// must not be broadcast.
	ErrPersistence = errors.New("persistence write failed")
)
