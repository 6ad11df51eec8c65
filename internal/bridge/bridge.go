// Package bridge guarantees the single authoritative session identifier.
// Every component that needs a session for a conversation goes through
// EnsureSession; nothing else mints ids, and externally-owned conversation
// stores are told the canonical id instead of inventing their own.
package bridge

import (
	"log/slog"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/tellergate/tellergate/internal/session"
)

// ExternalStore is an externally-owned conversation store (for example a
// chat transport's session table). It records the authoritative id; it is
// never asked to produce one.
type ExternalStore interface {
	BindSession(userID, sessionID string) error
}

// Bridge is the sole writer of canonical session ids.
type Bridge struct {
	store    *session.Store
	tokenFor func(userID string) string
	external []ExternalStore

	group singleflight.Group
}

// New creates a Bridge over store. tokenFor resolves a user's auth token at
// session creation time.
func New(store *session.Store, tokenFor func(userID string) string) *Bridge {
	if tokenFor == nil {
		tokenFor = func(string) string { return "" }
	}
	return &Bridge{store: store, tokenFor: tokenFor}
}

// Register adds an external store that must stay referentially consistent
// with the session store.
func (b *Bridge) Register(ext ExternalStore) {
	b.external = append(b.external, ext)
}

// Store returns the underlying session store.
func (b *Bridge) Store() *session.Store { return b.store }

// EnsureSession returns the authoritative session for (userID, requested).
//
// A requested id that resolves to a live session owned by userID is reused
// unchanged. Otherwise exactly one new session is minted, even under
// concurrent calls for the same user: duplicate creations collapse through
// singleflight, so the second caller joins the first instead of creating a
// competing record.
func (b *Bridge) EnsureSession(userID, requested string) (*session.Session, error) {
	if requested != "" {
		if s := b.store.Get(requested); s != nil {
			s.Lock()
			live := s.Status == session.StatusActive && s.UserID == userID
			s.Unlock()
			if live {
				return s, nil
			}
		}
	}

	v, err, _ := b.group.Do("user:"+userID, func() (any, error) {
		// A concurrent or earlier caller may already have a live session.
		if s := b.store.ActiveForUser(userID); s != nil {
			return s, nil
		}
		return b.mint(userID)
	})
	if err != nil {
		return nil, err
	}
	return v.(*session.Session), nil
}

// mint creates, persists, and announces exactly one new session.
func (b *Bridge) mint(userID string) (*session.Session, error) {
	s := session.New(uuid.NewString(), userID, b.tokenFor(userID))
	s = b.store.Put(s)

	s.Lock()
	err := b.store.Save(s)
	s.Unlock()
	if err != nil {
		return nil, err
	}

	for _, ext := range b.external {
		if err := ext.BindSession(userID, s.ID); err != nil {
			slog.Warn("bridge: external store bind failed", "session", s.ID, "err", err)
		}
	}

	slog.Info("bridge: session created", "session", s.ID, "user", userID)
	return s, nil
}
