package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"quizhub/pkg/types"
)

// HTTP half of the client: registration, display names, listings and the
// quiz catalog.

func (c *Controller) apiURL(path string) string {
	return strings.TrimRight(c.baseURL.String(), "/") + path
}

func (c *Controller) doJSON(ctx context.Context, method, path string, body any, headers map[string]string, out any) error {
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.apiURL(path), reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode >= 400:
		return fmt.Errorf("%w: HTTP %d", ErrRejected, resp.StatusCode)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("malformed response body: %w", err)
		}
	}
	return nil
}

// Register binds the durable client id to the current connection id. Safe
// to call repeatedly with the same pair.
func (c *Controller) Register(ctx context.Context) error {
	c.mu.Lock()
	connID := c.connID
	c.mu.Unlock()
	if connID == "" {
		return ErrNotConnected
	}

	return c.doJSON(ctx, http.MethodPost, "/api/register", map[string]string{
		"clientId":     c.identity.ClientID,
		"connectionId": connID,
	}, nil, nil)
}

// SetUsername stores the display name server-side and persists it in the
// local identity file.
func (c *Controller) SetUsername(ctx context.Context, name string) error {
	err := c.doJSON(ctx, http.MethodPost, "/api/username", map[string]string{
		"clientId": c.identity.ClientID,
		"username": name,
	}, nil, nil)
	if err != nil {
		return err
	}

	c.identity.DisplayName = name
	if err := c.identity.Save(c.idPath); err != nil {
		c.log.Warn().Err(err).Msg("could not persist display name")
	}
	return nil
}

// ListSessions returns all active sessions from the HTTP listing.
func (c *Controller) ListSessions(ctx context.Context) ([]types.Session, error) {
	var sessions []types.Session
	if err := c.doJSON(ctx, http.MethodGet, "/api/sessions", nil, nil, &sessions); err != nil {
		return nil, err
	}
	return sessions, nil
}

// ListQuizzes returns the quiz catalog summaries.
func (c *Controller) ListQuizzes(ctx context.Context) ([]types.QuizSummary, error) {
	var quizzes []types.QuizSummary
	if err := c.doJSON(ctx, http.MethodGet, "/api/quizzes", nil, nil, &quizzes); err != nil {
		return nil, err
	}
	return quizzes, nil
}

// GetQuiz fetches one quiz, scoped to the remembered session.
func (c *Controller) GetQuiz(ctx context.Context, quizID string) (*types.Quiz, error) {
	c.mu.Lock()
	sessionID := c.sessionID
	c.mu.Unlock()
	if sessionID == "" {
		return nil, ErrNotFound
	}

	var quiz types.Quiz
	headers := map[string]string{
		"X-Client":  c.identity.ClientID,
		"X-Session": sessionID,
	}
	if err := c.doJSON(ctx, http.MethodGet, "/api/quiz/"+quizID, nil, headers, &quiz); err != nil {
		return nil, err
	}
	return &quiz, nil
}

// PurgeServerState clears all sessions and registrations server-side.
func (c *Controller) PurgeServerState(ctx context.Context) error {
	return c.doJSON(ctx, http.MethodPost, "/api/admin/purge", nil, nil, nil)
}
