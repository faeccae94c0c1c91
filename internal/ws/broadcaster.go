package ws

import (
	"encoding/json"
	"sync"

	"github.com/rs/zerolog"

	"quizhub/internal/metrics"
	"quizhub/pkg/types"
)

// Broadcaster fans an event out to every live connection, optionally
// excluding the originator. Delivery is best-effort and at-most-once per
// currently live connection: no acknowledgement, no retry, no queueing
// for connections that are mid-disconnect.
type Broadcaster struct {
	mu    sync.RWMutex
	conns map[string]*Connection

	log zerolog.Logger
}

// NewBroadcaster creates an empty broadcaster.
func NewBroadcaster(log zerolog.Logger) *Broadcaster {
	return &Broadcaster{
		conns: make(map[string]*Connection),
		log:   log.With().Str("component", "broadcaster").Logger(),
	}
}

// Add tracks a live connection.
func (b *Broadcaster) Add(conn *Connection) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.conns[conn.ID()] = conn
}

// Remove stops tracking a connection. Idempotent, and instance-aware: a
// stale connection object cannot remove a newer one registered under the
// same id.
func (b *Broadcaster) Remove(conn *Connection) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if current, ok := b.conns[conn.ID()]; ok && current == conn {
		delete(b.conns, conn.ID())
	}
}

// Get returns the live connection with the given id.
func (b *Broadcaster) Get(connID string) (*Connection, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	conn, ok := b.conns[connID]
	return conn, ok
}

// Count returns the number of live connections.
func (b *Broadcaster) Count() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.conns)
}

// Broadcast delivers event with payload to every live connection except
// excludeConnID (empty string excludes nobody). Failures are logged and
// otherwise ignored; a peer mid-disconnect simply misses the event.
func (b *Broadcaster) Broadcast(event string, payload any, excludeConnID string) {
	data, err := json.Marshal(payload)
	if err != nil {
		b.log.Error().Err(err).Str("event", event).Msg("unencodable broadcast payload")
		return
	}
	frame := &types.Frame{Type: event, OK: true, Data: data}

	b.mu.RLock()
	targets := make([]*Connection, 0, len(b.conns))
	for id, conn := range b.conns {
		if id == excludeConnID {
			continue
		}
		targets = append(targets, conn)
	}
	b.mu.RUnlock()

	for _, conn := range targets {
		if err := conn.WriteFrame(frame); err != nil {
			b.log.Debug().Err(err).Str("event", event).Str("connection_id", conn.ID()).
				Msg("broadcast delivery skipped")
			continue
		}
		metrics.BroadcastsSent.WithLabelValues(event).Inc()
	}
}
