// Package client is the Go client for a quizhub server. Its centerpiece
// is the reconciliation controller: a local belief about connection and
// session state that is repaired on every reconnect by a fixed sequence
// of resolve identity, register, and one rejoin attempt.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"quizhub/pkg/types"
)

// State is the controller's local belief about its own standing.
type State string

const (
	StateUnregistered State = "unregistered"
	StateRegistered   State = "registered"
	StateJoined       State = "joined"
	StateIdle         State = "idle"
)

// Config configures a Controller.
type Config struct {
	// ServerURL is the http(s) base of the server, e.g. http://localhost:5000.
	ServerURL string
	// IdentityPath overrides the identity file location. Empty means the
	// per-user default.
	IdentityPath string
	// RequestTimeout bounds every push-channel request. A timed-out
	// request is a failure; the server may still have applied it.
	RequestTimeout time.Duration
	HTTPClient     *http.Client
	Log            zerolog.Logger
}

// Controller owns the client's websocket attachment and local state.
// Lifecycle broadcasts feed an advisory View only; the controller's own
// membership and role change solely on direct call responses.
type Controller struct {
	cfg      Config
	baseURL  *url.URL
	http     *http.Client
	identity *Identity
	idPath   string
	log      zerolog.Logger

	mu        sync.Mutex
	state     State
	connID    string
	sessionID string // remembered from a successful join/create this run
	role      types.Role
	conn      *websocket.Conn
	writeMu   sync.Mutex
	pending   map[string]chan types.Frame
	connLost  chan struct{}

	view *View
}

// New creates a controller and resolves the durable identity (generating
// and persisting one on first use).
func New(cfg Config) (*Controller, error) {
	if cfg.ServerURL == "" {
		return nil, fmt.Errorf("server URL is required")
	}
	base, err := url.Parse(cfg.ServerURL)
	if err != nil {
		return nil, fmt.Errorf("invalid server URL: %w", err)
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 3 * time.Second
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: cfg.RequestTimeout}
	}

	idPath := cfg.IdentityPath
	if idPath == "" {
		if idPath, err = DefaultIdentityPath(); err != nil {
			return nil, err
		}
	}
	identity, err := LoadOrCreateIdentity(idPath)
	if err != nil {
		return nil, err
	}

	return &Controller{
		cfg:      cfg,
		baseURL:  base,
		http:     cfg.HTTPClient,
		identity: identity,
		idPath:   idPath,
		log:      cfg.Log.With().Str("component", "client").Logger(),
		state:    StateUnregistered,
		pending:  make(map[string]chan types.Frame),
		view:     NewView(),
	}, nil
}

// ClientID returns the durable identity.
func (c *Controller) ClientID() string { return c.identity.ClientID }

// ConnectionID returns the current ephemeral connection id, if attached.
func (c *Controller) ConnectionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connID
}

// State returns the current local belief.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// SessionID returns the remembered session id, if any.
func (c *Controller) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

// Role returns the role confirmed by the last direct response.
func (c *Controller) Role() types.Role {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.role
}

// View returns the advisory local view fed by broadcasts.
func (c *Controller) View() *View { return c.view }

func (c *Controller) wsURL() string {
	scheme := "ws"
	if c.baseURL.Scheme == "https" {
		scheme = "wss"
	}
	u := *c.baseURL
	u.Scheme = scheme
	u.Path = strings.TrimRight(u.Path, "/") + "/ws"
	return u.String()
}

// Connect performs one attach-and-reconcile pass: dial, receive the
// assigned connection id, register, and attempt a single rejoin of any
// remembered session. It is called once per transport connect event.
func (c *Controller) Connect(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: c.cfg.RequestTimeout}
	conn, _, err := dialer.DialContext(ctx, c.wsURL(), nil)
	if err != nil {
		return fmt.Errorf("dial failed: %w", err)
	}

	// The first frame hands us our connection id.
	_ = conn.SetReadDeadline(time.Now().Add(c.cfg.RequestTimeout))
	var welcome types.Frame
	if err := conn.ReadJSON(&welcome); err != nil || welcome.Type != types.EventConnected {
		_ = conn.Close()
		return fmt.Errorf("no welcome frame: %w", err)
	}
	var connected types.UserEventData
	if err := json.Unmarshal(welcome.Data, &connected); err != nil {
		_ = conn.Close()
		return fmt.Errorf("malformed welcome frame: %w", err)
	}
	_ = conn.SetReadDeadline(time.Time{})

	c.mu.Lock()
	if c.conn != nil {
		_ = c.conn.Close()
	}
	c.conn = conn
	c.connID = connected.ConnectionID
	c.connLost = make(chan struct{})
	lost := c.connLost
	c.mu.Unlock()

	go c.readLoop(conn, lost)
	c.log.Info().Str("connection_id", connected.ConnectionID).Msg("connected")

	c.reconcile(ctx)
	return nil
}

// Run keeps the controller attached until ctx is cancelled, redialing
// with exponential backoff after every connection loss and running the
// reconciliation sequence on each successful reconnect.
func (c *Controller) Run(ctx context.Context) error {
	policy := backoff.NewExponentialBackOff()
	policy.MaxElapsedTime = 0 // retry for as long as ctx lives

	for {
		err := backoff.Retry(func() error {
			if err := ctx.Err(); err != nil {
				return backoff.Permanent(err)
			}
			return c.Connect(ctx)
		}, backoff.WithContext(policy, ctx))
		if err != nil {
			return err
		}
		policy.Reset()

		c.mu.Lock()
		lost := c.connLost
		c.mu.Unlock()

		select {
		case <-ctx.Done():
			_ = c.Close()
			return ctx.Err()
		case <-lost:
			c.log.Warn().Msg("connection lost, reconnecting")
		}
	}
}

// reconcile is the fixed repair sequence run after every connect. Its
// steps are ordered: registration failure leaves the controller
// Unregistered and skips the rejoin (retried on the next connect event);
// a rejoin NotFound clears the remembered session and settles on Idle.
func (c *Controller) reconcile(ctx context.Context) {
	if err := c.Register(ctx); err != nil {
		c.log.Warn().Err(err).Msg("registration failed; staying unregistered")
		c.setState(StateUnregistered)
		return
	}
	c.setState(StateRegistered)

	c.mu.Lock()
	remembered := c.sessionID
	c.mu.Unlock()
	if remembered == "" {
		c.setState(StateIdle)
		return
	}

	session, err := c.rejoin(ctx, remembered)
	switch {
	case err == nil:
		c.applyMembership(session)
		c.log.Info().Str("session_id", remembered).Msg("rejoined session")
	case errors.Is(err, ErrNotFound):
		// Session expired while we were away. Expected; forget it.
		c.mu.Lock()
		c.sessionID = ""
		c.mu.Unlock()
		c.setState(StateIdle)
		c.log.Info().Str("session_id", remembered).Msg("remembered session is gone")
	default:
		// Transport failure: keep the memory for the next reconnect, do
		// not retry now.
		c.log.Warn().Err(err).Str("session_id", remembered).Msg("rejoin attempt failed")
	}
}

func (c *Controller) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// applyMembership updates the belief from an authoritative session
// snapshot returned by a direct call.
func (c *Controller) applyMembership(session *types.Session) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sessionID = session.ID
	if member, ok := session.Member(c.identity.ClientID); ok {
		c.role = member.Role
	}
	c.state = StateJoined
}

func (c *Controller) readLoop(conn *websocket.Conn, lost chan struct{}) {
	defer close(lost)

	for {
		var frame types.Frame
		if err := conn.ReadJSON(&frame); err != nil {
			c.failPending()
			return
		}
		if frame.IsBroadcast() {
			c.view.Apply(&frame)
			continue
		}

		c.mu.Lock()
		ch, ok := c.pending[frame.ID]
		if ok {
			delete(c.pending, frame.ID)
		}
		c.mu.Unlock()
		if ok {
			ch <- frame
		}
	}
}

// failPending unblocks every in-flight request when the connection dies.
func (c *Controller) failPending() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id := range c.pending {
		delete(c.pending, id)
	}
}

// request sends one push-channel request and waits for its response. A
// missing response within the timeout is ErrRequestTimeout, surfaced to
// the caller; it is never silently treated as success.
func (c *Controller) request(ctx context.Context, reqType string, payload any) (*types.Frame, error) {
	c.mu.Lock()
	conn := c.conn
	lost := c.connLost
	c.mu.Unlock()
	if conn == nil {
		return nil, ErrNotConnected
	}

	req := types.Request{ID: uuid.New().String(), Type: reqType}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		req.Data = data
	}

	ch := make(chan types.Frame, 1)
	c.mu.Lock()
	c.pending[req.ID] = ch
	c.mu.Unlock()

	c.writeMu.Lock()
	err := conn.WriteJSON(req)
	c.writeMu.Unlock()
	if err != nil {
		c.dropPending(req.ID)
		return nil, fmt.Errorf("write failed: %w", err)
	}

	select {
	case frame := <-ch:
		return &frame, nil
	case <-time.After(c.cfg.RequestTimeout):
		c.dropPending(req.ID)
		return nil, ErrRequestTimeout
	case <-lost:
		c.dropPending(req.ID)
		return nil, ErrNotConnected
	case <-ctx.Done():
		c.dropPending(req.ID)
		return nil, ctx.Err()
	}
}

func (c *Controller) dropPending(id string) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

func frameError(frame *types.Frame) error {
	if frame.OK {
		return nil
	}
	switch frame.Error {
	case types.ErrCodeConflict:
		return ErrConflict
	case types.ErrCodeNotFound:
		return ErrNotFound
	default:
		return fmt.Errorf("%w: %s", ErrRejected, frame.Error)
	}
}

func decodeSessionFrame(frame *types.Frame) (*types.Session, error) {
	if err := frameError(frame); err != nil {
		return nil, err
	}
	var session types.Session
	if err := json.Unmarshal(frame.Data, &session); err != nil {
		return nil, fmt.Errorf("malformed session payload: %w", err)
	}
	return &session, nil
}

// StartSession creates a session with this client as admin. The session
// id is derived from the creating connection's identity; the caller may
// pre-check with the session listing or simply handle ErrConflict.
func (c *Controller) StartSession(ctx context.Context) (*types.Session, error) {
	c.mu.Lock()
	connID := c.connID
	c.mu.Unlock()
	if connID == "" {
		return nil, ErrNotConnected
	}

	frame, err := c.request(ctx, types.RequestStartSession, types.StartSessionData{
		SessionID:   connID,
		ClientID:    c.identity.ClientID,
		DisplayName: c.identity.DisplayName,
	})
	if err != nil {
		return nil, err
	}
	session, err := decodeSessionFrame(frame)
	if err != nil {
		return nil, err
	}
	c.applyMembership(session)
	return session, nil
}

// JoinSession joins an existing session as player.
func (c *Controller) JoinSession(ctx context.Context, sessionID string) (*types.Session, error) {
	frame, err := c.request(ctx, types.RequestJoinSession, types.JoinSessionData{
		SessionID:   sessionID,
		ClientID:    c.identity.ClientID,
		DisplayName: c.identity.DisplayName,
	})
	if err != nil {
		return nil, err
	}
	session, err := decodeSessionFrame(frame)
	if err != nil {
		return nil, err
	}
	c.applyMembership(session)
	return session, nil
}

// Rejoin re-confirms membership in the remembered session and refreshes
// the recorded role. It never creates membership; with nothing remembered
// it returns ErrNotFound.
func (c *Controller) Rejoin(ctx context.Context) (*types.Session, error) {
	c.mu.Lock()
	remembered := c.sessionID
	c.mu.Unlock()
	if remembered == "" {
		return nil, ErrNotFound
	}

	session, err := c.rejoin(ctx, remembered)
	if err != nil {
		return nil, err
	}
	c.applyMembership(session)
	return session, nil
}

func (c *Controller) rejoin(ctx context.Context, sessionID string) (*types.Session, error) {
	frame, err := c.request(ctx, types.RequestRejoin, types.RejoinData{
		SessionID: sessionID,
		ClientID:  c.identity.ClientID,
	})
	if err != nil {
		return nil, err
	}
	return decodeSessionFrame(frame)
}

// KillSession terminates a session. Killing the remembered session
// settles the controller back on Idle.
func (c *Controller) KillSession(ctx context.Context, sessionID string) error {
	frame, err := c.request(ctx, types.RequestKillSession, types.KillSessionData{SessionID: sessionID})
	if err != nil {
		return err
	}
	if err := frameError(frame); err != nil {
		return err
	}

	c.mu.Lock()
	if c.sessionID == sessionID {
		c.sessionID = ""
		c.role = ""
		c.state = StateIdle
	}
	c.mu.Unlock()
	return nil
}

// FetchServerState retrieves the full coordination snapshot.
func (c *Controller) FetchServerState(ctx context.Context) (*types.ServerState, error) {
	frame, err := c.request(ctx, types.RequestFetchState, nil)
	if err != nil {
		return nil, err
	}
	if err := frameError(frame); err != nil {
		return nil, err
	}
	var state types.ServerState
	if err := json.Unmarshal(frame.Data, &state); err != nil {
		return nil, fmt.Errorf("malformed state payload: %w", err)
	}
	return &state, nil
}

// Disconnect announces a manual disconnect for this client. The
// transport stays up; the server marks the member absent.
func (c *Controller) Disconnect(ctx context.Context) error {
	frame, err := c.request(ctx, types.RequestDisconnect, types.DisconnectData{
		ClientID: c.identity.ClientID,
	})
	if err != nil {
		return err
	}
	return frameError(frame)
}

// Close tears down the websocket attachment.
func (c *Controller) Close() error {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.connID = ""
	c.mu.Unlock()
	if conn != nil {
		return conn.Close()
	}
	return nil
}
