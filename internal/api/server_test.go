package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quizhub/internal/quiz"
	"quizhub/internal/registry"
	"quizhub/internal/store"
	"quizhub/pkg/types"
)

type testServer struct {
	registry *registry.Registry
	store    *store.Store
	catalog  *quiz.SQLiteCatalog
	http     *httptest.Server
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	reg := registry.NewRegistry(zerolog.Nop())
	st := store.NewStore(zerolog.Nop())
	catalog, err := quiz.OpenSQLite(":memory:", zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, catalog.Seed(context.Background(), quiz.SampleQuizzes()))
	t.Cleanup(func() { _ = catalog.Close() })

	server := httptest.NewServer(NewServer(reg, st, catalog, zerolog.Nop()))
	t.Cleanup(server.Close)

	return &testServer{registry: reg, store: st, catalog: catalog, http: server}
}

func (ts *testServer) post(t *testing.T, path string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(ts.http.URL+path, "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func (ts *testServer) get(t *testing.T, path string, headers map[string]string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, ts.http.URL+path, nil)
	require.NoError(t, err)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestRegister(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.post(t, "/api/register", map[string]string{
		"clientId": "c1", "connectionId": "conn-1",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	client := decodeBody[types.Client](t, resp)
	assert.Equal(t, "c1", client.ID)

	resolved, ok := ts.registry.Resolve("conn-1")
	require.True(t, ok)
	assert.Equal(t, "c1", resolved.ID)
}

func TestRegisterMissingField(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.post(t, "/api/register", map[string]string{"clientId": "c1"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = ts.post(t, "/api/register", map[string]string{"connectionId": "conn-1"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRegisterRevivesPresence(t *testing.T) {
	ts := newTestServer(t)

	_, err := ts.store.CreateSession("A1", "c1", "Ada")
	require.NoError(t, err)
	ts.store.SetPresence("c1", false)

	resp := ts.post(t, "/api/register", map[string]string{
		"clientId": "c1", "connectionId": "conn-2",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	sessions := ts.store.ListActive()
	require.Len(t, sessions, 1)
	member, ok := sessions[0].Member("c1")
	require.True(t, ok)
	assert.True(t, member.Present)
}

func TestUsername(t *testing.T) {
	ts := newTestServer(t)
	ts.registry.Register("conn-1", "c1")

	resp := ts.post(t, "/api/username", map[string]string{
		"clientId": "c1", "username": "Ada",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	client := decodeBody[types.Client](t, resp)
	assert.Equal(t, "Ada", client.DisplayName)
}

func TestUsernameUnknownClient(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.post(t, "/api/username", map[string]string{
		"clientId": "ghost", "username": "Boo",
	})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestUsernameMissingField(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.post(t, "/api/username", map[string]string{"clientId": "c1"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestListSessions(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.get(t, "/api/sessions", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, decodeBody[[]types.Session](t, resp))

	_, err := ts.store.CreateSession("A1", "c1", "Ada")
	require.NoError(t, err)
	_, err = ts.store.CreateSession("B2", "c2", "Bob")
	require.NoError(t, err)

	resp = ts.get(t, "/api/sessions", nil)
	sessions := decodeBody[[]types.Session](t, resp)
	require.Len(t, sessions, 2)
	assert.Equal(t, "A1", sessions[0].ID)
	assert.Equal(t, "B2", sessions[1].ID)
}

func TestListQuizzes(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.get(t, "/api/quizzes", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	quizzes := decodeBody[[]types.QuizSummary](t, resp)
	require.Len(t, quizzes, 2)
	assert.Equal(t, "General Knowledge Quiz", quizzes[0].Name)
}

func TestGetQuiz(t *testing.T) {
	ts := newTestServer(t)
	_, err := ts.store.CreateSession("A1", "c1", "Ada")
	require.NoError(t, err)

	headers := map[string]string{HeaderClient: "c1", HeaderSession: "A1"}

	resp := ts.get(t, "/api/quiz/0", headers)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	q := decodeBody[types.Quiz](t, resp)
	assert.Equal(t, "General Knowledge Quiz", q.Name)
	assert.Len(t, q.Questions, 3)
}

func TestGetQuizRequiresHeaders(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.get(t, "/api/quiz/0", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = ts.get(t, "/api/quiz/0", map[string]string{HeaderClient: "c1"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGetQuizMissingSessionOrQuiz(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.get(t, "/api/quiz/0", map[string]string{HeaderClient: "c1", HeaderSession: "A1"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode, "session absent")

	_, err := ts.store.CreateSession("A1", "c1", "Ada")
	require.NoError(t, err)
	resp = ts.get(t, "/api/quiz/99", map[string]string{HeaderClient: "c1", HeaderSession: "A1"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode, "quiz absent")
}

func TestPurge(t *testing.T) {
	ts := newTestServer(t)
	ts.registry.Register("conn-1", "c1")
	_, err := ts.store.CreateSession("A1", "c1", "Ada")
	require.NoError(t, err)

	resp := ts.post(t, "/api/admin/purge", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	assert.Empty(t, ts.store.ListActive())
	assert.Empty(t, ts.registry.Clients())
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.get(t, "/health", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody[map[string]any](t, resp)
	assert.Equal(t, "healthy", body["status"])
}
