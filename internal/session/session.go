// Package session is the opaque session store and cookie jar the
// orchestrator consults. Deliberately minimal: the core only ever
// addresses a session by id, never reaches into its own protocol.
package session

import (
	"crypto/rand"
	"encoding/hex"
	"sync"
)

// Session is one user's server-side state: the translation-assigned
// realm/language/user identity plus a per-host cookie jar (scenario A) and arbitrary widget
// state blobs.
type Session struct {
	ID       string
	Realm    string
	Language string
	User     string

	mu         sync.Mutex
	jars       map[string]*CookieJar // keyed by host:port
	widgetPath map[string]WidgetState
}

// WidgetState is the path-info/query-string pair persisted per widget id
// path.
type WidgetState struct {
	PathInfo    string
	QueryString string
}

func newSession(id string) *Session {
	return &Session{
		ID:         id,
		jars:       make(map[string]*CookieJar),
		widgetPath: make(map[string]WidgetState),
	}
}

// Jar returns the cookie jar scoped to hostAndPort, creating one on
// first use.
func (s *Session) Jar(hostAndPort string) *CookieJar {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jars[hostAndPort]
	if !ok {
		j = newCookieJar()
		s.jars[hostAndPort] = j
	}
	return j
}

// WidgetState returns the persisted state for idPath, if any.
func (s *Session) WidgetState(idPath string) (WidgetState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.widgetPath[idPath]
	return st, ok
}

// SetWidgetState persists state for idPath.
func (s *Session) SetWidgetState(idPath string, st WidgetState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.widgetPath[idPath] = st
}

// Store is the in-process session table, opaque to the rest of the core.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

func NewStore() *Store {
	return &Store{sessions: make(map[string]*Session)}
}

// New allocates a fresh session with a random id.
func (st *Store) New() *Session {
	id := newSessionID()
	s := newSession(id)
	st.mu.Lock()
	st.sessions[id] = s
	st.mu.Unlock()
	return s
}

// Get returns the session for id, or nil if none exists.
func (st *Store) Get(id string) *Session {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.sessions[id]
}

// GetOrCreate returns the existing session for id, or a new one bound to
// that id if it's unknown (e.g. a SESSION id replayed from a translation
// response, spec §4.5 "Stateful sessions").
func (st *Store) GetOrCreate(id string) *Session {
	st.mu.Lock()
	defer st.mu.Unlock()
	if s, ok := st.sessions[id]; ok {
		return s
	}
	s := newSession(id)
	st.sessions[id] = s
	return s
}

func newSessionID() string {
	var b [16]byte
	_, _ = rand.Read(b[:])
	return hex.EncodeToString(b[:])
}
