package client

import (
	"encoding/json"
	"sort"
	"sync"

	"quizhub/pkg/types"
)

// View is the advisory local picture assembled from lifecycle broadcasts:
// which sessions peers have announced and which connections are around.
// It is display-only and never authoritative for the controller's own
// membership or role, which change solely on direct call responses.
type View struct {
	mu       sync.RWMutex
	sessions map[string]struct{}
	peers    map[string]struct{}
}

// NewView creates an empty view.
func NewView() *View {
	return &View{
		sessions: make(map[string]struct{}),
		peers:    make(map[string]struct{}),
	}
}

// Apply folds one broadcast frame into the view. Unknown events are
// ignored; a peer that stays forward-compatible loses nothing.
func (v *View) Apply(frame *types.Frame) {
	switch frame.Type {
	case types.EventSessionStarted:
		var data types.SessionEventData
		if json.Unmarshal(frame.Data, &data) == nil && data.SessionID != "" {
			v.mu.Lock()
			v.sessions[data.SessionID] = struct{}{}
			v.mu.Unlock()
		}
	case types.EventSessionKilled:
		var data types.SessionEventData
		if json.Unmarshal(frame.Data, &data) == nil {
			v.mu.Lock()
			delete(v.sessions, data.SessionID)
			v.mu.Unlock()
		}
	case types.EventUserJoined:
		var data types.UserEventData
		if json.Unmarshal(frame.Data, &data) == nil && data.ConnectionID != "" {
			v.mu.Lock()
			v.peers[data.ConnectionID] = struct{}{}
			v.mu.Unlock()
		}
	case types.EventUserDisconnected:
		var data types.UserEventData
		if json.Unmarshal(frame.Data, &data) == nil {
			v.mu.Lock()
			delete(v.peers, data.ConnectionID)
			v.mu.Unlock()
		}
	}
}

// Sessions returns announced session ids, sorted for stable display.
func (v *View) Sessions() []string {
	v.mu.RLock()
	defer v.mu.RUnlock()
	out := make([]string, 0, len(v.sessions))
	for id := range v.sessions {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Peers returns known peer connection ids, sorted.
func (v *View) Peers() []string {
	v.mu.RLock()
	defer v.mu.RUnlock()
	out := make([]string, 0, len(v.peers))
	for id := range v.peers {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
