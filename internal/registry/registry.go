// Package registry maps ephemeral connection ids to durable client
// identities. It owns nothing about sessions; the session store resolves
// connections through it by value at call time.
package registry

import (
	"sync"

	"github.com/rs/zerolog"

	"quizhub/internal/metrics"
	"quizhub/pkg/types"
)

// Registry binds connection ids to client ids and keeps basic profile
// data per client. Bindings are lost on disconnect; profiles survive
// until a purge. At most one live binding per connection id, and at most
// one live connection per client id: a later registration supersedes an
// earlier one on either key.
type Registry struct {
	mu       sync.RWMutex
	byConn   map[string]string        // connectionID -> clientID
	byClient map[string]string        // clientID -> connectionID
	clients  map[string]*types.Client // clientID -> profile

	log zerolog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(log zerolog.Logger) *Registry {
	return &Registry{
		byConn:   make(map[string]string),
		byClient: make(map[string]string),
		clients:  make(map[string]*types.Client),
		log:      log.With().Str("component", "registry").Logger(),
	}
}

// Register binds clientID to connID, replacing any prior binding for
// either value, and returns the client profile. Calling twice with the
// same pair is a no-op beyond refreshing the binding, which makes the
// HTTP registration call safe to race with the transport's connect event.
func (r *Registry) Register(connID, clientID string) types.Client {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Drop whatever either key was previously bound to.
	if prevClient, ok := r.byConn[connID]; ok && prevClient != clientID {
		delete(r.byClient, prevClient)
	}
	if prevConn, ok := r.byClient[clientID]; ok && prevConn != connID {
		delete(r.byConn, prevConn)
	}

	r.byConn[connID] = clientID
	r.byClient[clientID] = connID

	client, ok := r.clients[clientID]
	if !ok {
		client = &types.Client{ID: clientID}
		r.clients[clientID] = client
		metrics.RegisteredClients.Set(float64(len(r.clients)))
	}

	r.log.Debug().Str("connection_id", connID).Str("client_id", clientID).Msg("client registered")
	return *client
}

// Unbind removes the binding for connID. It does not cascade into session
// membership and it keeps the client profile, so a rejoin after reconnect
// still resolves the same identity.
func (r *Registry) Unbind(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	clientID, ok := r.byConn[connID]
	if !ok {
		return
	}
	delete(r.byConn, connID)
	if r.byClient[clientID] == connID {
		delete(r.byClient, clientID)
	}

	r.log.Debug().Str("connection_id", connID).Str("client_id", clientID).Msg("connection unbound")
}

// Resolve returns the client bound to connID.
func (r *Registry) Resolve(connID string) (types.Client, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	clientID, ok := r.byConn[connID]
	if !ok {
		return types.Client{}, false
	}
	client, ok := r.clients[clientID]
	if !ok {
		return types.Client{}, false
	}
	return *client, true
}

// ConnectionFor returns the live connection id for a client, if any.
func (r *Registry) ConnectionFor(clientID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	connID, ok := r.byClient[clientID]
	return connID, ok
}

// SetDisplayName updates the stored display name for a client that has
// registered at least once. Returns ErrClientNotFound otherwise.
func (r *Registry) SetDisplayName(clientID, name string) (types.Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	client, ok := r.clients[clientID]
	if !ok {
		return types.Client{}, types.ErrClientNotFound
	}
	client.DisplayName = name

	r.log.Debug().Str("client_id", clientID).Str("display_name", name).Msg("display name updated")
	return *client, nil
}

// Clients returns a snapshot of all known client profiles.
func (r *Registry) Clients() []types.Client {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]types.Client, 0, len(r.clients))
	for _, c := range r.clients {
		out = append(out, *c)
	}
	return out
}

// PurgeAll drops every binding and every client profile.
func (r *Registry) PurgeAll() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.byConn = make(map[string]string)
	r.byClient = make(map[string]string)
	r.clients = make(map[string]*types.Client)
	metrics.RegisteredClients.Set(0)

	r.log.Info().Msg("registry purged")
}

// Stats returns counts for monitoring.
func (r *Registry) Stats() map[string]int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return map[string]int{
		"bound_connections": len(r.byConn),
		"known_clients":     len(r.clients),
	}
}
