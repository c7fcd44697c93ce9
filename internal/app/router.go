package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/dkeye/roomrelay/internal/core"
	"github.com/dkeye/roomrelay/internal/domain"
)

const (
	msgInvalidJSON     = "Invalid JSON"
	msgNotObject       = "Invalid JSON payload"
	msgMissingType     = "Missing message type"
	msgMissingRoomID   = "Missing roomId"
	msgRoomUnavailable = "Room not available. Create it from landing."
	msgCheckFailed     = "Server error while checking room"
	msgRoomFull        = "Room is full"
	msgAlreadyJoined   = "Already joined"
	msgJoinRateLimited = "Too many join attempts"
	msgInvalidPayload  = "Invalid payload"
)

// HandleFrame routes one inbound frame of s. Frames of one session must be
// handed in transport order from a single goroutine.
func (r *Relay) HandleFrame(ctx context.Context, s *core.Session, data []byte) {
	msg, err := core.Decode(data)
	if err != nil {
		r.sendError(s, decodeErrorMessage(err))
		return
	}
	switch m := msg.(type) {
	case core.JoinMessage:
		r.handleJoin(ctx, s, m)
	case core.RelayMessage:
		r.handleRelay(s, m)
	}
}

func decodeErrorMessage(err error) string {
	switch {
	case errors.Is(err, core.ErrInvalidJSON):
		return msgInvalidJSON
	case errors.Is(err, core.ErrNotObject):
		return msgNotObject
	case errors.Is(err, core.ErrMissingType):
		return msgMissingType
	case errors.Is(err, core.ErrMissingRoomID):
		return msgMissingRoomID
	}
	return msgInvalidJSON
}

func (r *Relay) handleJoin(ctx context.Context, s *core.Session, m core.JoinMessage) {
	switch s.State() {
	case core.StateJoined:
		r.sendError(s, msgAlreadyJoined)
		return
	case core.StateClosed:
		return
	}

	key := s.Token()
	if key == "" {
		key = string(s.ID())
	}
	if !r.opts.JoinLimiter.Allow(key) {
		r.logger.Warn().Str("sid", string(s.ID())).Msg("join rate limited")
		r.sendError(s, msgJoinRateLimited)
		return
	}

	usable, err := r.authorize(ctx, m.RoomID)
	if err != nil {
		r.logger.Error().Err(err).Str("sid", string(s.ID())).Str("room_id", string(m.RoomID)).Msg("room check failed")
		r.sendError(s, msgCheckFailed)
		return
	}
	if !usable {
		r.logger.Info().Str("sid", string(s.ID())).Str("room_id", string(m.RoomID)).Msg("join refused, room not available")
		r.sendError(s, msgRoomUnavailable)
		return
	}

	var dropped []*core.Session
	_, err = r.rooms.Join(m.RoomID, s, r.opts.MaxRoomSize, func(peers []*core.Session, size int) {
		ids := make([]core.SessionID, 0, len(peers))
		for _, p := range peers {
			ids = append(ids, p.ID())
		}
		r.send(s, core.TypeJoined, core.JoinedPayload{ClientID: s.ID(), RoomSize: size, Peers: ids})

		announce, err := core.Encode(core.TypePeerJoined, core.PeerPayload{ClientID: s.ID()})
		if err != nil {
			r.logger.Error().Err(err).Msg("encode peer-joined")
			return
		}
		dropped = fanout(peers, announce)
	})
	if errors.Is(err, ErrRoomFull) {
		r.sendError(s, msgRoomFull)
		return
	}
	if err != nil {
		r.logger.Error().Err(err).Str("sid", string(s.ID())).Msg("join failed")
		r.sendError(s, msgCheckFailed)
		return
	}

	if !s.BindRoom(m.RoomID) {
		// Closed while joining; undo the membership.
		r.leave(m.RoomID, s.ID())
		return
	}
	r.logger.Info().Str("sid", string(s.ID())).Str("room_id", string(m.RoomID)).Msg("joined room")
	r.applyPolicy(dropped)
	r.confirm(ctx, s, m.RoomID)
}

// confirm repeats the room check once the session is a member. A room
// archived while the join was in flight would otherwise keep a member that
// EvictRoom never saw, so such a session is disconnected like an evicted one.
func (r *Relay) confirm(ctx context.Context, s *core.Session, id domain.RoomID) {
	usable, err := r.authorize(ctx, id)
	if err != nil {
		r.logger.Warn().Err(err).Str("sid", string(s.ID())).Str("room_id", string(id)).Msg("room recheck failed")
		return
	}
	if !usable {
		r.logger.Info().Str("sid", string(s.ID())).Str("room_id", string(id)).Msg("room archived during join")
		r.Disconnect(s)
	}
}

func (r *Relay) authorize(ctx context.Context, id domain.RoomID) (bool, error) {
	if err := id.Validate(); err != nil {
		return false, nil
	}
	if r.auth == nil {
		return false, errors.New("no room authorizer configured")
	}
	ctx, cancel := context.WithTimeout(ctx, r.opts.AuthTimeout)
	defer cancel()
	return r.auth.Exists(ctx, id)
}

// handleRelay forwards an opaque message. Delivery is at most once: a
// target that is not in the room is silently skipped and the sender gets
// no acknowledgment either way.
func (r *Relay) handleRelay(s *core.Session, m core.RelayMessage) {
	roomID, joined := s.RoomID()
	if !joined {
		return
	}
	if !r.ns.Relays(m.Type) {
		r.sendError(s, fmt.Sprintf("Unsupported type on %s: %s", r.ns.Path, m.Type))
		return
	}

	target, frame, err := m.Stamp(s.ID())
	if err != nil {
		r.sendError(s, msgInvalidPayload)
		return
	}

	var res PublishResult
	if target.Broadcast {
		res = r.rooms.Broadcast(roomID, s.ID(), frame)
	} else {
		res = r.rooms.SendTo(roomID, target.To, frame)
	}
	r.logger.Debug().
		Str("sid", string(s.ID())).
		Str("type", string(m.Type)).
		Bool("broadcast", target.Broadcast).
		Int("sent_to", res.SendTo).
		Msg("relayed")
	r.applyPolicy(res.Dropped)
}

func (r *Relay) send(s *core.Session, t core.MessageType, payload any) {
	frame, err := core.Encode(t, payload)
	if err != nil {
		r.logger.Error().Err(err).Str("type", string(t)).Msg("encode")
		return
	}
	_ = s.Send(frame)
}

func (r *Relay) sendError(s *core.Session, message string) {
	r.send(s, core.TypeError, core.ErrorPayload{Message: message})
}
