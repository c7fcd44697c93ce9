package app

import (
	"errors"
	"sync"

	"github.com/dkeye/roomrelay/internal/core"
	nanoid "github.com/jaevor/go-nanoid"
	"github.com/rs/zerolog/log"
)

const (
	SessionIDLength = 10
	maxIDAttempts   = 8
)

var (
	ErrSessionIDExhausted = errors.New("could not allocate a unique session id")
	ErrRegistryClosed     = errors.New("relay is shutting down")
)

// IDGenerator returns a fresh random id on each call.
type IDGenerator func() string

// NewIDGenerator returns a url-safe nanoid generator of the given length.
func NewIDGenerator(length int) (IDGenerator, error) {
	gen, err := nanoid.Standard(length)
	if err != nil {
		return nil, err
	}
	return IDGenerator(gen), nil
}

// Registry tracks the live sessions of one relay instance. Ids are unique
// among live sessions.
type Registry struct {
	mu       sync.RWMutex
	sessions map[core.SessionID]*core.Session
	newID    IDGenerator
	closed   bool
}

func NewRegistry(newID IDGenerator) *Registry {
	return &Registry{
		sessions: make(map[core.SessionID]*core.Session),
		newID:    newID,
	}
}

// Bind creates a session for ch under a fresh id.
func (r *Registry) Bind(token string, ch core.Channel) (*core.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, ErrRegistryClosed
	}
	for attempt := 0; attempt < maxIDAttempts; attempt++ {
		sid := core.SessionID(r.newID())
		if _, taken := r.sessions[sid]; taken {
			continue
		}
		sess := core.NewSession(sid, token, ch)
		r.sessions[sid] = sess
		log.Debug().Str("module", "app.registry").Str("sid", string(sid)).Msg("bound session")
		return sess, nil
	}
	return nil, ErrSessionIDExhausted
}

// Unbind forgets sid and reports whether it was tracked.
func (r *Registry) Unbind(sid core.SessionID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[sid]; !ok {
		return false
	}
	delete(r.sessions, sid)
	log.Debug().Str("module", "app.registry").Str("sid", string(sid)).Msg("unbind session")
	return true
}

// Snapshot returns the tracked sessions in no particular order.
func (r *Registry) Snapshot() []*core.Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*core.Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	return out
}

// Close refuses further Binds and returns the sessions tracked at that
// moment. No session can be bound after the returned snapshot.
func (r *Registry) Close() []*core.Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	out := make([]*core.Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	return out
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
