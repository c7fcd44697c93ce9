package app

import (
	"context"
	"fmt"
	"time"

	"github.com/dkeye/roomrelay/internal/core"
	"github.com/dkeye/roomrelay/internal/domain"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	DefaultHeartbeatInterval = 30 * time.Second
	DefaultAuthTimeout       = 5 * time.Second
)

// Authorizer answers whether a room may be joined. It is consulted on every
// join and may block on I/O.
type Authorizer interface {
	Exists(ctx context.Context, id domain.RoomID) (bool, error)
}

type Options struct {
	// MaxRoomSize caps membership per room; zero means unlimited.
	MaxRoomSize       int
	HeartbeatInterval time.Duration
	AuthTimeout       time.Duration
	Policy            Policy
	JoinLimiter       *JoinLimiter
	NewID             IDGenerator
}

func (o Options) withDefaults() (Options, error) {
	if o.HeartbeatInterval <= 0 {
		o.HeartbeatInterval = DefaultHeartbeatInterval
	}
	if o.AuthTimeout <= 0 {
		o.AuthTimeout = DefaultAuthTimeout
	}
	if o.Policy == nil {
		o.Policy = DropPolicy{}
	}
	if o.NewID == nil {
		gen, err := NewIDGenerator(SessionIDLength)
		if err != nil {
			return o, fmt.Errorf("session id generator: %w", err)
		}
		o.NewID = gen
	}
	return o, nil
}

// Relay is one independent relay instance: its own sessions, rooms and
// heartbeat, bound to one namespace. Rooms of two instances never mix even
// when they share an id.
type Relay struct {
	ns        core.Namespace
	auth      Authorizer
	opts      Options
	sessions  *Registry
	rooms     *RoomManager
	heartbeat *Heartbeat
	logger    zerolog.Logger
}

func NewRelay(ns core.Namespace, auth Authorizer, opts Options) (*Relay, error) {
	opts, err := opts.withDefaults()
	if err != nil {
		return nil, err
	}
	r := &Relay{
		ns:       ns,
		auth:     auth,
		opts:     opts,
		sessions: NewRegistry(opts.NewID),
		rooms:    NewRoomManager(),
		logger:   log.With().Str("module", "app.relay").Str("ns", ns.Name).Logger(),
	}
	r.heartbeat = NewHeartbeat(opts.HeartbeatInterval, r.sessions, r.Disconnect)
	r.heartbeat.onTick = opts.JoinLimiter.Sweep
	return r, nil
}

func (r *Relay) Namespace() core.Namespace { return r.ns }

func (r *Relay) Rooms() *RoomManager { return r.rooms }

func (r *Relay) Sessions() *Registry { return r.sessions }

// Heartbeat exposes the liveness monitor, mainly so tests can tick it.
func (r *Relay) Heartbeat() *Heartbeat { return r.heartbeat }

// Connect registers a freshly accepted channel. The session starts alive
// and unjoined.
func (r *Relay) Connect(token string, ch core.Channel) (*core.Session, error) {
	s, err := r.sessions.Bind(token, ch)
	if err != nil {
		return nil, err
	}
	r.logger.Info().Str("sid", string(s.ID())).Msg("session connected")
	return s, nil
}

// Disconnect closes s and removes it from its room. It is safe to call
// any number of times, from the transport or the heartbeat.
func (r *Relay) Disconnect(s *core.Session) {
	roomID, joined := s.Close()
	if !r.sessions.Unbind(s.ID()) && !joined {
		return
	}
	if joined {
		r.leave(roomID, s.ID())
	}
	r.logger.Info().Str("sid", string(s.ID())).Bool("joined", joined).Bool("alive", s.Alive()).Msg("session closed")
}

func (r *Relay) leave(roomID domain.RoomID, sid core.SessionID) {
	frame, err := core.Encode(core.TypePeerLeft, core.PeerPayload{ClientID: sid})
	if err != nil {
		r.logger.Error().Err(err).Msg("encode peer-left")
		return
	}
	var dropped []*core.Session
	left := r.rooms.Leave(roomID, sid, func(rest []*core.Session) {
		dropped = fanout(rest, frame)
	})
	if left {
		r.logger.Info().Str("sid", string(sid)).Str("room_id", string(roomID)).Msg("left room")
	}
	r.applyPolicy(dropped)
}

func fanout(members []*core.Session, f core.Frame) []*core.Session {
	res := PublishResult{}
	for _, m := range members {
		publish(&res, m, f)
	}
	return res.Dropped
}

func (r *Relay) applyPolicy(dropped []*core.Session) {
	for _, slow := range dropped {
		switch r.opts.Policy.OnBackPressure(slow) {
		case KickMember:
			r.logger.Warn().Str("sid", string(slow.ID())).Msg("kicking slow member")
			r.Disconnect(slow)
		case DropFrame:
			r.logger.Debug().Str("sid", string(slow.ID())).Msg("frame dropped")
		}
	}
}

// Run drives the heartbeat until ctx is done, then closes every session.
// Connect fails once Run has returned.
func (r *Relay) Run(ctx context.Context) error {
	r.logger.Info().Str("path", r.ns.Path).Dur("heartbeat", r.opts.HeartbeatInterval).Msg("relay started")
	r.heartbeat.Run(ctx)
	for _, s := range r.sessions.Close() {
		r.Disconnect(s)
	}
	r.logger.Info().Msg("relay stopped")
	return nil
}

// EvictRoom disconnects every member of the room, e.g. after the room was
// archived. Members see each other leave as usual.
func (r *Relay) EvictRoom(id domain.RoomID) int {
	members := r.rooms.Members(id)
	for _, m := range members {
		r.Disconnect(m)
	}
	if len(members) > 0 {
		r.logger.Info().Str("room_id", string(id)).Int("members", len(members)).Msg("room evicted")
	}
	return len(members)
}
