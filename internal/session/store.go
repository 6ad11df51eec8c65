package session

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// Store persists sessions as JSONL files, one per session:
//
//	Line 1:  {"_type":"metadata","sessionId":"…","userId":"…","status":"…",
//	           "createdAt":"…","lastActivityAt":"…","pending":{…}}
//	Line 2+: one Turn object per line
//
// Turns are append-only; metadata is rewritten on every save.
type Store struct {
	dir   string
	cache sync.Map // sessionID → *Session

	mu     sync.Mutex
	byUser map[string][]string // userID → session ids, oldest first
}

// NewStore creates a Store rooted at dir, creating it if necessary.
// Session files persisted by a previous run are indexed so user listings
// and the expiry sweep see them.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create sessions dir: %w", err)
	}
	st := &Store{dir: dir, byUser: make(map[string][]string)}
	st.hydrate()
	return st, nil
}

// hydrate rebuilds the per-user index from the metadata line of every
// session file in dir. Session bodies stay on disk until first Get.
func (st *Store) hydrate() {
	entries, err := os.ReadDir(st.dir)
	if err != nil {
		slog.Warn("session index scan failed", "dir", st.dir, "err", err)
		return
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".jsonl") {
			continue
		}
		meta := readMetadata(filepath.Join(st.dir, e.Name()))
		if meta == nil {
			slog.Warn("skipping session file without metadata", "file", e.Name())
			continue
		}
		st.index(meta.UserID, meta.ID)
	}
}

// Put registers a freshly minted session. If another goroutine registered
// the same id first, that session wins and is returned.
func (st *Store) Put(s *Session) *Session {
	actual, loaded := st.cache.LoadOrStore(s.ID, s)
	if !loaded {
		st.index(s.UserID, s.ID)
	}
	return actual.(*Session)
}

// Get returns the session with id, loading it from disk on a cache miss.
// Returns nil when the session does not exist.
func (st *Store) Get(id string) *Session {
	if v, ok := st.cache.Load(id); ok {
		return v.(*Session)
	}
	s := st.load(id)
	if s == nil {
		return nil
	}
	actual, loaded := st.cache.LoadOrStore(id, s)
	if !loaded {
		st.index(s.UserID, s.ID)
	}
	return actual.(*Session)
}

// Save writes the session to disk. Caller must hold the session lock.
func (st *Store) Save(s *Session) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	meta := map[string]any{
		"_type":          "metadata",
		"sessionId":      s.ID,
		"userId":         s.UserID,
		"authToken":      s.AuthToken,
		"status":         s.Status,
		"createdAt":      s.CreatedAt.UTC().Format(time.RFC3339Nano),
		"lastActivityAt": s.LastActivityAt.UTC().Format(time.RFC3339Nano),
	}
	if s.Pending != nil {
		meta["pending"] = s.Pending
	}
	if err := enc.Encode(meta); err != nil {
		return fmt.Errorf("encode session metadata: %w", err)
	}
	for _, turn := range s.Context {
		if err := enc.Encode(turn); err != nil {
			return fmt.Errorf("encode turn: %w", err)
		}
	}

	path := st.path(s.ID)
	if err := os.WriteFile(path, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("write session %s: %w", path, err)
	}
	return nil
}

// Each calls fn for every known session, loading persisted ones from disk
// as needed. fn must do its own locking.
func (st *Store) Each(fn func(*Session)) {
	st.mu.Lock()
	var ids []string
	for _, list := range st.byUser {
		ids = append(ids, list...)
	}
	st.mu.Unlock()

	for _, id := range ids {
		if s := st.Get(id); s != nil {
			fn(s)
		}
	}
}

// ByUser returns summaries of the user's sessions, newest activity first.
func (st *Store) ByUser(userID string) []Summary {
	st.mu.Lock()
	ids := append([]string(nil), st.byUser[userID]...)
	st.mu.Unlock()

	var out []Summary
	for _, id := range ids {
		s := st.Get(id)
		if s == nil {
			continue
		}
		s.Lock()
		out = append(out, s.Summarize())
		s.Unlock()
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].LastActivityAt.After(out[j].LastActivityAt)
	})
	return out
}

// ActiveForUser returns the user's most recently active ACTIVE session,
// or nil. Used by the bridge to rejoin conversations.
func (st *Store) ActiveForUser(userID string) *Session {
	st.mu.Lock()
	ids := append([]string(nil), st.byUser[userID]...)
	st.mu.Unlock()

	var best *Session
	var bestAt time.Time
	for _, id := range ids {
		s := st.Get(id)
		if s == nil {
			continue
		}
		s.Lock()
		if s.Status == StatusActive && s.LastActivityAt.After(bestAt) {
			best = s
			bestAt = s.LastActivityAt
		}
		s.Unlock()
	}
	return best
}

// Invalidate drops a session from the cache (the file stays on disk).
func (st *Store) Invalidate(id string) {
	st.cache.Delete(id)
}

func (st *Store) index(userID, sessionID string) {
	st.mu.Lock()
	defer st.mu.Unlock()
	for _, id := range st.byUser[userID] {
		if id == sessionID {
			return
		}
	}
	st.byUser[userID] = append(st.byUser[userID], sessionID)
}

func (st *Store) path(id string) string {
	name := strings.Map(func(r rune) rune {
		if strings.ContainsRune(`<>:"/\|?*`, r) {
			return '_'
		}
		return r
	}, id)
	return filepath.Join(st.dir, name+".jsonl")
}

// load reads one session file from disk.
func (st *Store) load(id string) *Session {
	f, err := os.Open(st.path(id))
	if err != nil {
		return nil
	}
	defer f.Close()

	var s *Session
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 1<<20), 1<<20)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var probe struct {
			Type string `json:"_type"`
		}
		if err := json.Unmarshal(line, &probe); err != nil {
			slog.Warn("skipping malformed session line", "session", id, "err", err)
			continue
		}

		if probe.Type == "metadata" {
			s = decodeMetadata(line)
			continue
		}
		if s == nil {
			continue // turns before metadata mean a corrupt file
		}
		var turn Turn
		if err := json.Unmarshal(line, &turn); err != nil {
			slog.Warn("skipping malformed turn", "session", id, "err", err)
			continue
		}
		s.Context = append(s.Context, turn)
	}
	if err := scanner.Err(); err != nil {
		slog.Warn("error reading session file", "session", id, "err", err)
		return nil
	}
	return s
}

// readMetadata decodes only the metadata line of a session file.
func readMetadata(path string) *Session {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 1<<20), 1<<20)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var probe struct {
			Type string `json:"_type"`
		}
		if err := json.Unmarshal(line, &probe); err != nil || probe.Type != "metadata" {
			return nil // metadata must come first
		}
		return decodeMetadata(line)
	}
	return nil
}

func decodeMetadata(line []byte) *Session {
	var meta struct {
		SessionID      string     `json:"sessionId"`
		UserID         string     `json:"userId"`
		AuthToken      string     `json:"authToken"`
		Status         Status     `json:"status"`
		CreatedAt      time.Time  `json:"createdAt"`
		LastActivityAt time.Time  `json:"lastActivityAt"`
		Pending        *Execution `json:"pending"`
	}
	if err := json.Unmarshal(line, &meta); err != nil || meta.SessionID == "" {
		return nil
	}
	return &Session{
		ID:             meta.SessionID,
		UserID:         meta.UserID,
		AuthToken:      meta.AuthToken,
		Status:         meta.Status,
		CreatedAt:      meta.CreatedAt,
		LastActivityAt: meta.LastActivityAt,
		Pending:        meta.Pending,
	}
}
