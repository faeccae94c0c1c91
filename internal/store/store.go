// Package store owns the collection of active sessions and their
// membership. It is the single authority for session lifecycle: create,
// join, rejoin, kill, purge. All cross-references to clients are by id
// value; the store never holds a registry reference.
package store

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"quizhub/internal/metrics"
	"quizhub/pkg/types"
)

// Store holds every active session. One mutex guards all mutations so
// each operation is atomic with respect to the others; there is no
// partial-kill or partial-create state observable from outside.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*types.Session
	order    []string // session ids in creation order, for listing

	log zerolog.Logger
}

// NewStore creates an empty session store.
func NewStore(log zerolog.Logger) *Store {
	return &Store{
		sessions: make(map[string]*types.Session),
		log:      log.With().Str("component", "store").Logger(),
	}
}

// CreateSession creates a session with adminClientID as its sole admin
// member. Session ids are caller-supplied, so uniqueness is enforced here
// by rejecting duplicates: if sessionID already denotes an active session
// the call returns ErrSessionExists and the existing session is untouched.
func (s *Store) CreateSession(sessionID, adminClientID, displayName string) (*types.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.sessions[sessionID]; exists {
		return nil, types.ErrSessionExists
	}

	session := &types.Session{
		ID: sessionID,
		Members: []types.SessionMember{{
			ClientID:    adminClientID,
			Role:        types.RoleAdmin,
			DisplayName: displayName,
			Present:     true,
		}},
		CreatedAt: time.Now(),
	}
	s.sessions[sessionID] = session
	s.order = append(s.order, sessionID)

	metrics.ActiveSessions.Set(float64(len(s.sessions)))
	metrics.SessionEvents.WithLabelValues("created").Inc()
	s.log.Info().Str("session_id", sessionID).Str("admin", adminClientID).Msg("session created")
	return session.Clone(), nil
}

// JoinSession appends clientID as a player member of an active session.
// A second join by the same client never duplicates the member: the
// existing record is updated in place (display name refreshed, marked
// present, role kept).
func (s *Store) JoinSession(sessionID, clientID, displayName string) (*types.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, exists := s.sessions[sessionID]
	if !exists {
		return nil, types.ErrSessionNotFound
	}

	if member, ok := session.Member(clientID); ok {
		member.DisplayName = displayName
		member.Present = true
	} else {
		session.Members = append(session.Members, types.SessionMember{
			ClientID:    clientID,
			Role:        types.RolePlayer,
			DisplayName: displayName,
			Present:     true,
		})
	}

	metrics.SessionEvents.WithLabelValues("joined").Inc()
	s.log.Info().Str("session_id", sessionID).Str("client_id", clientID).Msg("client joined session")
	return session.Clone(), nil
}

// RejoinSession re-confirms existing membership after a reconnect. It
// succeeds only if the session is active and clientID already appears in
// its membership; it never mutates membership beyond marking the member
// present again. The role comes from the existing record.
func (s *Store) RejoinSession(sessionID, clientID string) (*types.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, exists := s.sessions[sessionID]
	if !exists {
		return nil, types.ErrSessionNotFound
	}
	member, ok := session.Member(clientID)
	if !ok {
		return nil, types.ErrMemberNotFound
	}
	member.Present = true

	metrics.SessionEvents.WithLabelValues("rejoined").Inc()
	s.log.Info().Str("session_id", sessionID).Str("client_id", clientID).Msg("client rejoined session")
	return session.Clone(), nil
}

// KillSession removes the session and all its members atomically and
// returns the session as it existed immediately before removal, for
// notification purposes.
func (s *Store) KillSession(sessionID string) (*types.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, exists := s.sessions[sessionID]
	if !exists {
		return nil, types.ErrSessionNotFound
	}
	delete(s.sessions, sessionID)
	for i, id := range s.order {
		if id == sessionID {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}

	metrics.ActiveSessions.Set(float64(len(s.sessions)))
	metrics.SessionEvents.WithLabelValues("killed").Inc()
	s.log.Info().Str("session_id", sessionID).Msg("session killed")
	return session, nil
}

// SessionExists reports whether sessionID denotes an active session.
// Callers use it to pre-check before creating a session under an id they
// already own.
func (s *Store) SessionExists(sessionID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, exists := s.sessions[sessionID]
	return exists
}

// SetPresence flips the Present flag on every membership record for
// clientID. Disconnects never remove members (so a later rejoin finds the
// record); presence is how peers learn a member is currently away.
func (s *Store) SetPresence(clientID string, present bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, session := range s.sessions {
		if member, ok := session.Member(clientID); ok {
			member.Present = present
		}
	}
}

// ListActive returns a snapshot of all active sessions in creation order.
func (s *Store) ListActive() []types.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]types.Session, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, *s.sessions[id].Clone())
	}
	return out
}

// PurgeAll unconditionally empties the session collection.
func (s *Store) PurgeAll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions = make(map[string]*types.Session)
	s.order = nil
	metrics.ActiveSessions.Set(0)

	s.log.Info().Msg("session store purged")
}

// Stats returns counts for monitoring.
func (s *Store) Stats() map[string]int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	members := 0
	for _, session := range s.sessions {
		members += len(session.Members)
	}
	return map[string]int{
		"active_sessions": len(s.sessions),
		"total_members":   members,
	}
}
