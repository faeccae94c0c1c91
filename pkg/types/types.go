package types

import "time"

// Role is a member's role within one session.
type Role string

const (
	RoleAdmin  Role = "admin"
	RolePlayer Role = "player"
)

// Client is a durable participant identity. The id is generated client-side
// on first visit and survives reconnects; it is independent of any
// connection id.
type Client struct {
	ID          string `json:"clientId"`
	DisplayName string `json:"displayName,omitempty"`
}

// SessionMember is one client's participation record inside a session.
// Membership is keyed by clientId, not connection id, so a member survives
// a reconnect. Present tracks whether the member currently has a live
// connection; a disconnect never removes the record.
type SessionMember struct {
	ClientID    string `json:"clientId"`
	Role        Role   `json:"role"`
	DisplayName string `json:"displayName,omitempty"`
	Present     bool   `json:"present"`
}

// Session is a named group of members coordinating one quiz run. Members
// are kept in join order. A session always has at least one member (the
// creating admin) until it is killed.
type Session struct {
	ID        string          `json:"sessionId"`
	Members   []SessionMember `json:"members"`
	CreatedAt time.Time       `json:"createdAt"`
}

// Member returns the membership record for clientID, if any.
func (s *Session) Member(clientID string) (*SessionMember, bool) {
	for i := range s.Members {
		if s.Members[i].ClientID == clientID {
			return &s.Members[i], true
		}
	}
	return nil, false
}

// Admin returns the member holding the admin role.
func (s *Session) Admin() (*SessionMember, bool) {
	for i := range s.Members {
		if s.Members[i].Role == RoleAdmin {
			return &s.Members[i], true
		}
	}
	return nil, false
}

// Clone returns a deep copy. The store hands out clones so callers can
// never alias its internal membership slices.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	cp := *s
	cp.Members = make([]SessionMember, len(s.Members))
	copy(cp.Members, s.Members)
	return &cp
}

// ServerState is the full coordination state snapshot returned to
// super-admin tooling by the fetch-server-state operation.
type ServerState struct {
	Clients  []Client  `json:"clients"`
	Sessions []Session `json:"sessions"`
}

// Question is a single quiz question.
type Question struct {
	ID                 string   `json:"id"`
	Question           string   `json:"question"`
	Options            []string `json:"options"`
	CorrectOptionIndex int      `json:"correctOptionIndex"`
	Explanation        string   `json:"explanation,omitempty"`
}

// Quiz is a named, ordered set of questions.
type Quiz struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Questions []Question `json:"questions"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

// QuizSummary is the listing form of a quiz, without question bodies.
type QuizSummary struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	QuestionCount int    `json:"questionCount"`
}
