package client

import "errors"

var (
	// ErrRequestTimeout is a transport failure: the request may or may not
	// have been applied server-side. It is surfaced to the caller and never
	// treated as success; recovery is a full reconnect, not a re-issue.
	ErrRequestTimeout = errors.New("request timed out")

	ErrNotConnected = errors.New("not connected")
	ErrConflict     = errors.New("session id already taken")
	ErrNotFound     = errors.New("session or membership not found")
	ErrRejected     = errors.New("request rejected by server")
)
