package store

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quizhub/pkg/types"
)

func newTestStore() *Store {
	return NewStore(zerolog.Nop())
}

func TestCreateSession(t *testing.T) {
	s := newTestStore()

	session, err := s.CreateSession("A1", "c1", "Ada")
	require.NoError(t, err)
	require.Len(t, session.Members, 1)
	assert.Equal(t, types.RoleAdmin, session.Members[0].Role)
	assert.Equal(t, "c1", session.Members[0].ClientID)
	assert.True(t, session.Members[0].Present)
	assert.True(t, s.SessionExists("A1"))
}

func TestCreateSessionConflict(t *testing.T) {
	s := newTestStore()

	_, err := s.CreateSession("A1", "c1", "Ada")
	require.NoError(t, err)
	_, err = s.JoinSession("A1", "c2", "Bob")
	require.NoError(t, err)

	_, err = s.CreateSession("A1", "c3", "Eve")
	assert.ErrorIs(t, err, types.ErrSessionExists)

	// The losing create must not alter the existing session's membership.
	session, err := s.RejoinSession("A1", "c1")
	require.NoError(t, err)
	assert.Len(t, session.Members, 2)
	admin, ok := session.Admin()
	require.True(t, ok)
	assert.Equal(t, "c1", admin.ClientID)
}

func TestJoinSessionNotFound(t *testing.T) {
	s := newTestStore()

	_, err := s.JoinSession("missing", "c1", "Ada")
	assert.ErrorIs(t, err, types.ErrSessionNotFound)
}

func TestJoinTwiceDoesNotDuplicate(t *testing.T) {
	s := newTestStore()

	_, err := s.CreateSession("A1", "c1", "Ada")
	require.NoError(t, err)

	_, err = s.JoinSession("A1", "c2", "Bob")
	require.NoError(t, err)
	session, err := s.JoinSession("A1", "c2", "Bobby")
	require.NoError(t, err)

	require.Len(t, session.Members, 2)
	member, ok := session.Member("c2")
	require.True(t, ok)
	assert.Equal(t, "Bobby", member.DisplayName)
	assert.Equal(t, types.RolePlayer, member.Role)
}

func TestRejoinKeepsRole(t *testing.T) {
	s := newTestStore()

	_, err := s.CreateSession("A1", "c1", "Ada")
	require.NoError(t, err)
	_, err = s.JoinSession("A1", "c2", "Bob")
	require.NoError(t, err)

	// Simulated disconnect: rejoin must find the record with its role.
	s.SetPresence("c2", false)
	session, err := s.RejoinSession("A1", "c2")
	require.NoError(t, err)
	require.Len(t, session.Members, 2)

	member, ok := session.Member("c2")
	require.True(t, ok)
	assert.Equal(t, types.RolePlayer, member.Role)
	assert.True(t, member.Present)
}

func TestRejoinNeverCreatesMembership(t *testing.T) {
	s := newTestStore()

	_, err := s.CreateSession("A1", "c1", "Ada")
	require.NoError(t, err)

	_, err = s.RejoinSession("A1", "stranger")
	assert.ErrorIs(t, err, types.ErrMemberNotFound)

	_, err = s.RejoinSession("missing", "c1")
	assert.ErrorIs(t, err, types.ErrSessionNotFound)

	session, err := s.RejoinSession("A1", "c1")
	require.NoError(t, err)
	assert.Len(t, session.Members, 1)
}

func TestKillSessionAtomicity(t *testing.T) {
	s := newTestStore()

	_, err := s.CreateSession("A1", "c1", "Ada")
	require.NoError(t, err)
	_, err = s.JoinSession("A1", "c2", "Bob")
	require.NoError(t, err)

	killed, err := s.KillSession("A1")
	require.NoError(t, err)
	assert.Len(t, killed.Members, 2, "pre-kill snapshot returned for notification")

	// No partial membership survives a kill.
	_, err = s.RejoinSession("A1", "c1")
	assert.ErrorIs(t, err, types.ErrSessionNotFound)
	_, err = s.RejoinSession("A1", "c2")
	assert.ErrorIs(t, err, types.ErrSessionNotFound)
	_, err = s.JoinSession("A1", "c3", "Eve")
	assert.ErrorIs(t, err, types.ErrSessionNotFound)
	assert.False(t, s.SessionExists("A1"))
}

func TestKillSessionNotFound(t *testing.T) {
	s := newTestStore()

	_, err := s.KillSession("missing")
	assert.ErrorIs(t, err, types.ErrSessionNotFound)
}

func TestListActiveInsertionOrder(t *testing.T) {
	s := newTestStore()

	for _, id := range []string{"B2", "A1", "C3"} {
		_, err := s.CreateSession(id, "admin-"+id, "")
		require.NoError(t, err)
	}
	_, err := s.KillSession("A1")
	require.NoError(t, err)

	sessions := s.ListActive()
	require.Len(t, sessions, 2)
	assert.Equal(t, "B2", sessions[0].ID)
	assert.Equal(t, "C3", sessions[1].ID)
}

func TestPurgeAll(t *testing.T) {
	s := newTestStore()

	_, err := s.CreateSession("A1", "c1", "Ada")
	require.NoError(t, err)
	_, err = s.CreateSession("B2", "c2", "Bob")
	require.NoError(t, err)

	s.PurgeAll()

	assert.Empty(t, s.ListActive())
	_, err = s.RejoinSession("A1", "c1")
	assert.ErrorIs(t, err, types.ErrSessionNotFound)
}

func TestSnapshotsDoNotAliasStoreState(t *testing.T) {
	s := newTestStore()

	session, err := s.CreateSession("A1", "c1", "Ada")
	require.NoError(t, err)
	session.Members[0].Role = types.RolePlayer

	stored, err := s.RejoinSession("A1", "c1")
	require.NoError(t, err)
	assert.Equal(t, types.RoleAdmin, stored.Members[0].Role)
}

func TestScenarioCreateJoinRejoinKill(t *testing.T) {
	s := newTestStore()

	created, err := s.CreateSession("A1", "c1", "Ada")
	require.NoError(t, err)
	require.Len(t, created.Members, 1)
	assert.Equal(t, types.RoleAdmin, created.Members[0].Role)

	joined, err := s.JoinSession("A1", "c2", "Bob")
	require.NoError(t, err)
	require.Len(t, joined.Members, 2)

	// c2 disconnects and reconnects.
	s.SetPresence("c2", false)
	rejoined, err := s.RejoinSession("A1", "c2")
	require.NoError(t, err)
	require.Len(t, rejoined.Members, 2)
	member, ok := rejoined.Member("c2")
	require.True(t, ok)
	assert.Equal(t, types.RolePlayer, member.Role)

	_, err = s.KillSession("A1")
	require.NoError(t, err)
	_, err = s.RejoinSession("A1", "c2")
	assert.ErrorIs(t, err, types.ErrSessionNotFound)
}
