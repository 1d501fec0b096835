package service

import "errors"

// Service-layer error taxonomy. Every component returns these typed errors
// unchanged to the API boundary; the orchestrator never converts a storage
// or crypto failure into a partial-success state.
var (
	// ErrInvalidTransition: state machine misuse or a lost status race;
	// recoverable, the caller re-reads current state.
	ErrInvalidTransition = errors.New("invalid session state transition")

	// ErrForbidden: the actor lacks the required role; surfaced, not retried.
	ErrForbidden = errors.New("actor not permitted")

	// ErrVersionConflict: a concurrent editor updated the note first;
	// recoverable by refetch-and-retry or merge.
	ErrVersionConflict = errors.New("note version conflict")

	// ErrSessionLocked: the session is not active, note creation rejected.
	ErrSessionLocked = errors.New("session is not active")

	// ErrNoteLocked: the note's lock flag is set.
	ErrNoteLocked = errors.New("note is locked")

	// ErrSessionArchived: the owning session is archived; its notes are
	// permanently immutable.
	ErrSessionArchived = errors.New("session is archived")

	ErrNotFound = errors.New("not found")

	// ErrInvalidCursor: the pagination cursor did not decode; a client-side
	// input problem, not a server failure.
	ErrInvalidCursor = errors.New("invalid pagination cursor")

	// ErrInvalidState: archiving a session that is not closed.
	ErrInvalidState = errors.New("session must be closed before archiving")

	// ErrAlreadyArchived: the session already has an archive.
	ErrAlreadyArchived = errors.New("session already archived")

	// ErrIntegrity: decryption authentication or checksum failure. Fatal:
	// may indicate tampering or key mismatch, always logged at high
	// severity, never silently degraded.
	ErrIntegrity = errors.New("archive integrity verification failed")

	// ErrStorageUnavailable: transient object-store failure; the caller
	// may retry. A session is never marked archived without confirmed
	// storage success.
	ErrStorageUnavailable = errors.New("archive storage unavailable")
)
