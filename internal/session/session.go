// Package session holds the authoritative conversation records: Session,
// the Execution state machine, and a Store that persists sessions as JSONL
// files, one per session.
package session

import (
	"sync"
	"time"
)

// Status is the lifecycle state of a Session.
type Status string

const (
	StatusActive  Status = "ACTIVE"
	StatusExpired Status = "EXPIRED"
	StatusClosed  Status = "CLOSED"
)

// Turn is one entry of the session context: a message plus what was made
// of it.
type Turn struct {
	Role      string         `json:"role"` // "user" | "assistant"
	Message   string         `json:"message"`
	Intent    string         `json:"intent,omitempty"`
	Entities  map[string]any `json:"entities,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Session is one conversation. All fields are guarded by the session lock;
// the orchestrator and the expiry sweeper both acquire it before mutating.
type Session struct {
	ID             string
	UserID         string
	AuthToken      string
	Status         Status
	CreatedAt      time.Time
	LastActivityAt time.Time
	Context        []Turn
	Pending        *Execution

	mu sync.Mutex
}

// New creates an ACTIVE session. Only the bridge calls this; no other
// component mints session identifiers.
func New(id, userID, authToken string) *Session {
	now := time.Now()
	return &Session{
		ID:             id,
		UserID:         userID,
		AuthToken:      authToken,
		Status:         StatusActive,
		CreatedAt:      now,
		LastActivityAt: now,
	}
}

func (s *Session) Lock()   { s.mu.Lock() }
func (s *Session) Unlock() { s.mu.Unlock() }

// Touch records activity. Caller must hold the session lock.
func (s *Session) Touch() { s.LastActivityAt = time.Now() }

// AddTurn appends a context turn and touches the session.
// Caller must hold the session lock.
func (s *Session) AddTurn(t Turn) {
	t.Timestamp = time.Now()
	s.Context = append(s.Context, t)
	s.LastActivityAt = t.Timestamp
}

// IdleSince reports whether the session has been inactive for at least d.
// Caller must hold the session lock.
func (s *Session) IdleSince(d time.Duration) bool {
	return time.Since(s.LastActivityAt) >= d
}

// Summary is the read-only view handed to callers of getSession.
type Summary struct {
	SessionID      string    `json:"sessionId"`
	UserID         string    `json:"userId"`
	Status         Status    `json:"status"`
	CreatedAt      time.Time `json:"createdAt"`
	LastActivityAt time.Time `json:"lastActivityAt"`
	Turns          int       `json:"turns"`
	PendingTool    string    `json:"pendingTool,omitempty"`
}

// Summarize builds a Summary snapshot. Caller must hold the session lock.
func (s *Session) Summarize() Summary {
	sum := Summary{
		SessionID:      s.ID,
		UserID:         s.UserID,
		Status:         s.Status,
		CreatedAt:      s.CreatedAt,
		LastActivityAt: s.LastActivityAt,
		Turns:          len(s.Context),
	}
	if s.Pending != nil {
		sum.PendingTool = s.Pending.ToolName
	}
	return sum
}
