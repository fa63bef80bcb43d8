// CLAUDE:SUMMARY Per-browser session state (table snapshot, loaded flag, last run) keyed by a NanoID cookie, with idle eviction.
package domfinder

import (
	"net/http"
	"sync"
	"time"

	"github.com/hazyhaar/domfinder/idgen"
)

// SessionCookie is the name of the cookie carrying the session ID.
const SessionCookie = "domfinder_sid"

// Session is the state of one user. Actions on a session run one at a time.
type Session struct {
	ID string

	mu             sync.Mutex
	table          Table
	existingLoaded bool
	last           *Run
	lastSeen       time.Time
}

// ExistingLoaded reports whether the storage file was loaded into this
// session's snapshot.
func (s *Session) ExistingLoaded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.existingLoaded
}

// LastRun returns the last completed run, or nil.
func (s *Session) LastRun() *Run {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// Snapshot returns a copy of the session's table.
func (s *Session) Snapshot() Table {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append(Table(nil), s.table...)
}

// SessionStore keeps sessions in memory.
type SessionStore struct {
	mu       sync.Mutex
	sessions map[string]*Session
	newID    idgen.Generator
	ttl      time.Duration
	now      func() time.Time
}

// NewSessionStore creates a store that forgets sessions idle for longer than ttl.
func NewSessionStore(ttl time.Duration) *SessionStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &SessionStore{
		sessions: make(map[string]*Session),
		newID:    idgen.NanoID(21),
		ttl:      ttl,
		now:      time.Now,
	}
}

// Get returns the session with the given ID, creating a fresh one when the
// ID is unknown or empty.
func (st *SessionStore) Get(id string) *Session {
	st.mu.Lock()
	defer st.mu.Unlock()

	now := st.now()
	if s, ok := st.sessions[id]; ok && id != "" {
		s.lastSeen = now
		return s
	}
	st.evict(now)
	s := &Session{ID: st.newID(), lastSeen: now}
	st.sessions[s.ID] = s
	return s
}

// FromRequest resolves the session of r and (re)sets its cookie on w.
func (st *SessionStore) FromRequest(w http.ResponseWriter, r *http.Request) *Session {
	var id string
	if c, err := r.Cookie(SessionCookie); err == nil {
		id = c.Value
	}
	s := st.Get(id)
	if s.ID != id {
		http.SetCookie(w, &http.Cookie{
			Name:     SessionCookie,
			Value:    s.ID,
			Path:     "/",
			MaxAge:   int(st.ttl / time.Second),
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})
	}
	return s
}

// Len returns the number of live sessions.
func (st *SessionStore) Len() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.sessions)
}

// evict drops idle sessions. Caller holds st.mu.
func (st *SessionStore) evict(now time.Time) {
	for id, s := range st.sessions {
		if now.Sub(s.lastSeen) > st.ttl {
			delete(st.sessions, id)
		}
	}
}
