// Package server implements the Pinpoint relay.
//
// A session pairs exactly two roles, a sharer and a viewer. Each role binds
// one live websocket connection; every location update from one side is
// stored and forwarded to the other. Sessions are reclaimed when both sides
// disconnect or when the sweeper finds them past the retention window.
package server

import (
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// Wire event names, shared by both directions.
const (
	EventJoin     = "join-session"
	EventUpdate   = "update-location"
	EventLocation = "location-update"
	EventError    = "error"
)

const (
	errSessionNotFound = "Session not found"
	errMalformed       = "Malformed message"
)

// Envelope is the single frame format on the websocket.
type Envelope struct {
	Event     string    `json:"event"`
	SessionID string    `json:"sessionId,omitempty"`
	Role      Role      `json:"role,omitempty"`
	Location  *Location `json:"location,omitempty"`
	Error     string    `json:"error,omitempty"`
}

// conn is one live transport connection. Events is drained by the socket
// writer loop; Kill tears the loops down.
type conn struct {
	ID     string
	Events chan *Envelope
	Kill   chan bool
}

func newConn() *conn {
	return &conn{
		ID:     uuid.New().String(),
		Events: make(chan *Envelope, 16),
		Kill:   make(chan bool),
	}
}

// Server brokers location events between the two connections of a session.
type Server struct {
	Sessions *Sessions

	// origin allowed to connect, "*" for any
	origin string

	mtx   sync.RWMutex
	conns map[string]*conn
}

func New(origin string) *Server {
	return &Server{
		Sessions: NewSessions(),
		origin:   origin,
		conns:    make(map[string]*conn),
	}
}

// Register adds a connection to the registry. Until it joins a session it
// receives nothing.
func (s *Server) Register(c *conn) {
	s.mtx.Lock()
	s.conns[c.ID] = c
	s.mtx.Unlock()

	connectionsActive.Inc()
}

// Deregister removes a connection and unbinds it from any session it joined,
// deleting sessions left with no bound roles. Safe to call more than once.
func (s *Server) Deregister(c *conn) {
	s.mtx.Lock()
	_, ok := s.conns[c.ID]
	delete(s.conns, c.ID)
	s.mtx.Unlock()

	if ok {
		connectionsActive.Dec()
	}

	for _, id := range s.Sessions.Unbind(c.ID) {
		log.WithField("session", id).Info("session removed, both parties gone")
	}
	sessionsActive.Set(float64(s.Sessions.Len()))
}

// Dispatch decodes a raw client frame and routes it. Anything that doesn't
// parse into a known, fully populated event is rejected without touching
// state.
func (s *Server) Dispatch(c *conn, raw []byte) {
	var e Envelope
	if err := json.Unmarshal(raw, &e); err != nil {
		s.emitError(c, errMalformed)
		return
	}

	switch e.Event {
	case EventJoin:
		if e.SessionID == "" || !e.Role.Valid() {
			s.emitError(c, errMalformed)
			return
		}
		s.Join(c, e.SessionID, e.Role)
	case EventUpdate:
		if e.SessionID == "" || !e.Role.Valid() || e.Location == nil {
			s.emitError(c, errMalformed)
			return
		}
		s.Update(c, e.SessionID, e.Role, e.Location)
	default:
		s.emitError(c, errMalformed)
	}
}

// Join binds the connection to a role in the session. A late joiner is
// immediately sent the opposing role's last known location so it doesn't
// wait for the peer's next move.
func (s *Server) Join(c *conn, sessionID string, role Role) {
	if err := s.Sessions.Bind(sessionID, role, c.ID); err != nil {
		s.emitError(c, errSessionNotFound)
		return
	}

	joinsTotal.WithLabelValues(string(role)).Inc()
	log.WithFields(log.Fields{
		"session": sessionID,
		"role":    role,
	}).Info("joined session")

	sess, ok := s.Sessions.Get(sessionID)
	if !ok {
		return
	}

	peer := role.Opposite()
	if loc := sess.LocationOf(peer); loc != nil {
		s.send(c, &Envelope{
			Event:    EventLocation,
			Location: loc,
			Role:     peer,
		})
	}
}

// Update stores the new location and forwards it to every other connection
// bound in the session - at most one peer in the two-party model. The sender
// never receives its own update.
func (s *Server) Update(c *conn, sessionID string, role Role, loc *Location) {
	if err := s.Sessions.SetLocation(sessionID, role, loc); err != nil {
		s.emitError(c, errSessionNotFound)
		return
	}

	updatesTotal.Inc()

	sess, ok := s.Sessions.Get(sessionID)
	if !ok {
		return
	}

	out := &Envelope{
		Event:    EventLocation,
		Location: loc,
		Role:     role,
	}

	s.mtx.RLock()
	for _, ref := range []string{sess.SharerConn, sess.ViewerConn} {
		if ref == "" || ref == c.ID {
			continue
		}
		if peer, ok := s.conns[ref]; ok {
			s.deliver(peer, out)
		}
	}
	s.mtx.RUnlock()
}

func (s *Server) send(c *conn, e *Envelope) {
	s.mtx.RLock()
	_, ok := s.conns[c.ID]
	s.mtx.RUnlock()
	if !ok {
		return
	}
	s.deliver(c, e)
}

// deliver never blocks; a connection with a full buffer loses the frame.
// At-most-once is the contract.
func (s *Server) deliver(c *conn, e *Envelope) {
	select {
	case c.Events <- e:
	default:
	}
}

func (s *Server) emitError(c *conn, msg string) {
	relayErrors.Inc()
	s.send(c, &Envelope{Event: EventError, Error: msg})
}
