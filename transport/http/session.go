package http

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// SessionManager tracks MCP sessions and their optional SSE streams.
type SessionManager struct {
	sessions map[string]*Session
	mu       sync.RWMutex
	now      func() time.Time
}

// Session is one client conversation, keyed by the MCP-Session-Id header.
type Session struct {
	ID              string
	Created         time.Time
	LastSeen        time.Time
	ProtocolVersion string
	Initialized     bool
	Stream          *Stream
}

func NewSessionManager() *SessionManager {
	return &SessionManager{
		sessions: make(map[string]*Session),
		now:      time.Now,
	}
}

// Create registers a session under a fresh UUID and returns the ID.
func (sm *SessionManager) Create(protocolVersion string) string {
	id := uuid.NewString()
	now := sm.now()

	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.sessions[id] = &Session{
		ID:              id,
		Created:         now,
		LastSeen:        now,
		ProtocolVersion: protocolVersion,
	}
	return id
}

// Touch refreshes the session's idle timer. It reports false for unknown IDs.
func (sm *SessionManager) Touch(id string) bool {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	session, ok := sm.sessions[id]
	if ok {
		session.LastSeen = sm.now()
	}
	return ok
}

func (sm *SessionManager) Has(id string) bool {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	_, ok := sm.sessions[id]
	return ok
}

// ProtocolVersion returns the revision negotiated at initialize.
func (sm *SessionManager) ProtocolVersion(id string) (string, bool) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	session, ok := sm.sessions[id]
	if !ok {
		return "", false
	}
	return session.ProtocolVersion, true
}

func (sm *SessionManager) MarkInitialized(id string) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	if session, ok := sm.sessions[id]; ok {
		session.Initialized = true
	}
}

// SetStream binds stream to the session, closing any stream it replaces.
func (sm *SessionManager) SetStream(id string, stream *Stream) bool {
	sm.mu.Lock()
	session, ok := sm.sessions[id]
	var previous *Stream
	if ok {
		previous = session.Stream
		session.Stream = stream
		session.LastSeen = sm.now()
	}
	sm.mu.Unlock()

	if previous != nil && previous != stream {
		previous.Close()
	}
	return ok
}

// ClearStreamIfMatch unbinds stream unless a newer one replaced it.
func (sm *SessionManager) ClearStreamIfMatch(id string, stream *Stream) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	if session, ok := sm.sessions[id]; ok && session.Stream == stream {
		session.Stream = nil
	}
}

// Streams returns the open streams of every session.
func (sm *SessionManager) Streams() []*Stream {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	streams := make([]*Stream, 0, len(sm.sessions))
	for _, session := range sm.sessions {
		if session.Stream != nil {
			streams = append(streams, session.Stream)
		}
	}
	return streams
}

func (sm *SessionManager) Len() int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return len(sm.sessions)
}

func (sm *SessionManager) Remove(id string) {
	sm.mu.Lock()
	session, ok := sm.sessions[id]
	delete(sm.sessions, id)
	sm.mu.Unlock()

	if ok && session.Stream != nil {
		session.Stream.Close()
	}
}

// Cleanup removes sessions idle for longer than timeout. Sessions with an
// open stream are kept.
func (sm *SessionManager) Cleanup(timeout time.Duration) int {
	now := sm.now()

	sm.mu.Lock()
	defer sm.mu.Unlock()
	removed := 0
	for id, session := range sm.sessions {
		if session.Stream != nil && !session.Stream.IsClosed() {
			continue
		}
		if now.Sub(session.LastSeen) > timeout {
			delete(sm.sessions, id)
			removed++
		}
	}
	return removed
}

// CloseAll drops every session and closes their streams.
func (sm *SessionManager) CloseAll() {
	sm.mu.Lock()
	sessions := sm.sessions
	sm.sessions = make(map[string]*Session)
	sm.mu.Unlock()

	for _, session := range sessions {
		if session.Stream != nil {
			session.Stream.Close()
		}
	}
}
