package types

import "errors"

// Typed negative results. The store and registry never panic across their
// boundary; every failure is one of these, returned to the immediate
// caller.
var (
	ErrSessionExists   = errors.New("session id already denotes an active session")
	ErrSessionNotFound = errors.New("session not found")
	ErrMemberNotFound  = errors.New("client is not a member of the session")
	ErrClientNotFound  = errors.New("client has never registered")
	ErrQuizNotFound    = errors.New("quiz not found")

	ErrInvalidClientID    = errors.New("client id must be 1-64 characters, alphanumeric plus hyphen")
	ErrInvalidSessionID   = errors.New("session id must be 1-64 characters, alphanumeric plus hyphen")
	ErrInvalidDisplayName = errors.New("display name must be at most 100 characters")
	ErrMissingField       = errors.New("missing required field")
)
