package core

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/dkeye/roomrelay/internal/domain"
)

var ErrSessionClosed = errors.New("session closed")

type SessionState int32

const (
	StateConnected SessionState = iota
	StateJoined
	StateClosed
)

func (s SessionState) String() string {
	switch s {
	case StateConnected:
		return "connected"
	case StateJoined:
		return "joined"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

// Session is the server side state of one live connection. It belongs to
// at most one room for its whole lifetime.
type Session struct {
	id    SessionID
	token string
	ch    Channel
	alive atomic.Bool

	mu     sync.Mutex
	state  SessionState
	roomID domain.RoomID
}

func NewSession(id SessionID, token string, ch Channel) *Session {
	s := &Session{id: id, token: token, ch: ch}
	s.alive.Store(true)
	return s
}

func (s *Session) ID() SessionID { return s.id }

// Token is the opaque client token of the HTTP request that opened the
// connection. It is never sent to peers.
func (s *Session) Token() string { return s.token }

func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// RoomID returns the joined room, if any.
func (s *Session) RoomID() (domain.RoomID, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.roomID, s.state == StateJoined
}

// BindRoom moves a connected session to joined. It fails when the session
// already joined a room or was closed meanwhile.
func (s *Session) BindRoom(id domain.RoomID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateConnected {
		return false
	}
	s.state = StateJoined
	s.roomID = id
	return true
}

// Close closes the channel and moves the session to closed. Only the first
// call on a joined session reports its room, so cleanup runs once.
func (s *Session) Close() (domain.RoomID, bool) {
	s.mu.Lock()
	prev := s.state
	s.state = StateClosed
	roomID := s.roomID
	s.mu.Unlock()

	s.ch.Close()
	return roomID, prev == StateJoined
}

// Send queues a frame. A closed session drops it.
func (s *Session) Send(f Frame) error {
	if s.State() == StateClosed {
		return ErrSessionClosed
	}
	return s.ch.TrySend(f)
}

// MarkAlive records a probe acknowledgment.
func (s *Session) MarkAlive() { s.alive.Store(true) }

func (s *Session) Alive() bool { return s.alive.Load() }

// Probe clears the liveness flag and reports whether it was set, i.e.
// whether the peer answered since the previous probe.
func (s *Session) Probe() bool {
	return s.alive.Swap(false)
}

func (s *Session) Ping() error {
	if s.State() == StateClosed {
		return ErrSessionClosed
	}
	return s.ch.Ping()
}
