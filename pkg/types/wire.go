package types

import (
	"encoding/json"
	"fmt"
)

// Push-channel protocol. Requests travel client->server with a correlation
// id and get exactly one response frame back; broadcasts travel
// server->client with an empty id and expect no reply. Every payload is a
// tagged variant with a fixed field set, validated at the boundary.

// Request type tags.
const (
	RequestStartSession = "start-session"
	RequestJoinSession  = "userjoin"
	RequestRejoin       = "rejoin"
	RequestKillSession  = "kill-session"
	RequestFetchState   = "fetchserverstate"
	RequestDisconnect   = "client-disconnect"
)

// Broadcast event tags. EventConnected is not a broadcast: it is sent
// once to a newly attached connection to hand it its connection id.
const (
	EventConnected        = "connected"
	EventSessionStarted   = "session"
	EventSessionKilled    = "sessionkilled"
	EventUserJoined       = "userjoined"
	EventUserDisconnected = "userdisconnected"
)

// Error codes carried in failed response frames.
const (
	ErrCodeConflict   = "conflict"
	ErrCodeNotFound   = "not_found"
	ErrCodeValidation = "validation"
)

// Request is a client->server push-channel message.
type Request struct {
	ID   string          `json:"id"`
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Frame is a server->client push-channel message: a response when ID is
// set, a broadcast when ID is empty. A request that names a missing
// session yields OK=false with Error set, never a closed connection.
type Frame struct {
	ID    string          `json:"id,omitempty"`
	Type  string          `json:"type"`
	OK    bool            `json:"ok"`
	Data  json.RawMessage `json:"data,omitempty"`
	Error string          `json:"error,omitempty"`
}

// IsBroadcast reports whether the frame is a fire-and-forget event rather
// than a response to a request.
func (f *Frame) IsBroadcast() bool { return f.ID == "" }

// StartSessionData asks the server to create a session with the caller as
// admin.
type StartSessionData struct {
	SessionID   string `json:"sessionId"`
	ClientID    string `json:"clientId"`
	DisplayName string `json:"userName,omitempty"`
}

func (d *StartSessionData) Validate() error {
	if !IsValidSessionID(d.SessionID) {
		return ErrInvalidSessionID
	}
	if !IsValidClientID(d.ClientID) {
		return ErrInvalidClientID
	}
	if !IsValidDisplayName(d.DisplayName) {
		return ErrInvalidDisplayName
	}
	return nil
}

// JoinSessionData asks the server to add the caller to a session as
// player.
type JoinSessionData struct {
	SessionID   string `json:"sessionId"`
	ClientID    string `json:"clientId"`
	DisplayName string `json:"userName,omitempty"`
}

func (d *JoinSessionData) Validate() error {
	if !IsValidSessionID(d.SessionID) {
		return ErrInvalidSessionID
	}
	if !IsValidClientID(d.ClientID) {
		return ErrInvalidClientID
	}
	if !IsValidDisplayName(d.DisplayName) {
		return ErrInvalidDisplayName
	}
	return nil
}

// RejoinData re-confirms existing membership after a reconnect. It never
// creates membership.
type RejoinData struct {
	SessionID string `json:"sessionId"`
	ClientID  string `json:"clientId"`
}

func (d *RejoinData) Validate() error {
	if !IsValidSessionID(d.SessionID) {
		return ErrInvalidSessionID
	}
	if !IsValidClientID(d.ClientID) {
		return ErrInvalidClientID
	}
	return nil
}

// KillSessionData terminates a session and removes all membership.
type KillSessionData struct {
	SessionID string `json:"sessionId"`
}

func (d *KillSessionData) Validate() error {
	if !IsValidSessionID(d.SessionID) {
		return ErrInvalidSessionID
	}
	return nil
}

// DisconnectData is a manual disconnect announcement for a client.
type DisconnectData struct {
	ClientID string `json:"clientId"`
}

func (d *DisconnectData) Validate() error {
	if !IsValidClientID(d.ClientID) {
		return ErrInvalidClientID
	}
	return nil
}

// SessionEventData is the payload of session-started and session-killed
// broadcasts.
type SessionEventData struct {
	SessionID string `json:"sessionId"`
}

// UserEventData is the payload of user-joined and user-disconnected
// broadcasts. It carries the ephemeral connection id, not the durable
// client id, matching what peers can observe about the transport.
type UserEventData struct {
	ConnectionID string `json:"connectionId"`
}

// DecodeRequestData unmarshals and validates the payload for a request
// type. Unknown types and malformed payloads are rejected here so nothing
// past the boundary ever sees a partially-populated variant.
func DecodeRequestData(reqType string, data json.RawMessage) (any, error) {
	var payload interface{ Validate() error }

	switch reqType {
	case RequestStartSession:
		payload = &StartSessionData{}
	case RequestJoinSession:
		payload = &JoinSessionData{}
	case RequestRejoin:
		payload = &RejoinData{}
	case RequestKillSession:
		payload = &KillSessionData{}
	case RequestDisconnect:
		payload = &DisconnectData{}
	case RequestFetchState:
		return nil, nil // no payload
	default:
		return nil, fmt.Errorf("unknown request type %q", reqType)
	}

	if err := json.Unmarshal(data, payload); err != nil {
		return nil, fmt.Errorf("malformed %s payload: %w", reqType, err)
	}
	if err := payload.Validate(); err != nil {
		return nil, err
	}
	return payload, nil
}
