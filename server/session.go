package server

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrSessionNotFound is returned for any operation referencing a session id
// that was never created or has already been reclaimed.
var ErrSessionNotFound = errors.New("session not found")

// Role identifies one side of a session. The protocol only ever has two.
type Role string

const (
	RoleSharer Role = "sharer"
	RoleViewer Role = "viewer"
)

func (r Role) Valid() bool {
	return r == RoleSharer || r == RoleViewer
}

// Opposite returns the peer role.
func (r Role) Opposite() Role {
	if r == RoleSharer {
		return RoleViewer
	}
	return RoleSharer
}

// Location is a single GPS fix as reported by a client.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Accuracy  float64 `json:"accuracy,omitempty"`
	Timestamp int64   `json:"timestamp,omitempty"`
}

// Session pairs one sharer and one viewer. The connection fields hold ids
// into the server's connection registry, never the connections themselves.
type Session struct {
	// A unique id
	ID string
	// Last known location per role
	SharerLocation *Location
	ViewerLocation *Location
	// Currently bound connection per role
	SharerConn string
	ViewerConn string
	// Set once at creation
	Created time.Time
}

// LocationOf returns the stored location for a role.
func (s *Session) LocationOf(role Role) *Location {
	if role == RoleSharer {
		return s.SharerLocation
	}
	return s.ViewerLocation
}

func (s *Session) setLocation(role Role, loc *Location) {
	if role == RoleSharer {
		s.SharerLocation = loc
	} else {
		s.ViewerLocation = loc
	}
}

func (s *Session) setConn(role Role, id string) {
	if role == RoleSharer {
		s.SharerConn = id
	} else {
		s.ViewerConn = id
	}
}

// Sessions is the in-memory session registry and the sole owner of session
// state. One lock covers the whole map; at the expected scale of single-digit
// concurrent sessions that is plenty.
type Sessions struct {
	mtx      sync.RWMutex
	sessions map[string]*Session

	// injected so aging can be tested without sleeping
	now func() time.Time
}

func NewSessions() *Sessions {
	return &Sessions{
		sessions: make(map[string]*Session),
		now:      time.Now,
	}
}

// Now returns the store's current time.
func (s *Sessions) Now() time.Time {
	return s.now()
}

// Create inserts a fresh session with no locations and no bound connections
// and returns its id.
func (s *Sessions) Create() string {
	id := uuid.New().String()

	s.mtx.Lock()
	s.sessions[id] = &Session{
		ID:      id,
		Created: s.now(),
	}
	s.mtx.Unlock()

	return id
}

// Get returns a copy of the session, or false if it doesn't exist.
func (s *Sessions) Get(id string) (Session, bool) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	sess, ok := s.sessions[id]
	if !ok {
		return Session{}, false
	}
	return *sess, true
}

// Bind associates a connection with a role in the session. An existing
// binding for the role is silently superseded; the old connection is left
// open and simply stops receiving updates.
func (s *Sessions) Bind(id string, role Role, connID string) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return ErrSessionNotFound
	}

	sess.setConn(role, connID)
	return nil
}

// SetLocation overwrites the stored location for a role.
func (s *Sessions) SetLocation(id string, role Role, loc *Location) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return ErrSessionNotFound
	}

	sess.setLocation(role, loc)
	return nil
}

// Unbind clears every binding held by the given connection along with that
// role's location, deleting any session left with neither role bound. It
// returns the ids of deleted sessions and is a no-op for unknown connections.
func (s *Sessions) Unbind(connID string) []string {
	var deleted []string

	s.mtx.Lock()
	defer s.mtx.Unlock()

	for id, sess := range s.sessions {
		if sess.SharerConn == connID {
			sess.SharerConn = ""
			sess.SharerLocation = nil
		} else if sess.ViewerConn == connID {
			sess.ViewerConn = ""
			sess.ViewerLocation = nil
		} else {
			continue
		}

		if sess.SharerConn == "" && sess.ViewerConn == "" {
			delete(s.sessions, id)
			deleted = append(deleted, id)
		}
	}

	return deleted
}

// PurgeOlderThan deletes every session older than the retention window,
// bound or not, and returns how many it removed.
func (s *Sessions) PurgeOlderThan(window time.Duration, now time.Time) int {
	var purged int

	s.mtx.Lock()
	defer s.mtx.Unlock()

	for id, sess := range s.sessions {
		if now.Sub(sess.Created) > window {
			delete(s.sessions, id)
			purged++
		}
	}

	return purged
}

// Len returns the number of live sessions.
func (s *Sessions) Len() int {
	s.mtx.RLock()
	defer s.mtx.RUnlock()
	return len(s.sessions)
}
