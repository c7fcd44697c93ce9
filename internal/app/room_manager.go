package app

import (
	"errors"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/dkeye/roomrelay/internal/core"
	"github.com/dkeye/roomrelay/internal/domain"
	"github.com/rs/zerolog/log"
)

var ErrRoomFull = errors.New("room is full")

// Room is a live group of sessions. Members are kept in join order.
type Room struct {
	id domain.RoomID

	mu      sync.RWMutex
	order   []core.SessionID
	members map[core.SessionID]*core.Session

	// retired is set when the last member leaves; a retired room is never
	// joined again and a fresh one replaces it in the manager.
	retired atomic.Bool
}

func newRoom(id domain.RoomID) *Room {
	return &Room{id: id, members: make(map[core.SessionID]*core.Session)}
}

func (r *Room) ID() domain.RoomID { return r.id }

func (r *Room) Size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

func (r *Room) snapshotLocked() []*core.Session {
	out := make([]*core.Session, 0, len(r.order))
	for _, sid := range r.order {
		out = append(out, r.members[sid])
	}
	return out
}

// PublishResult reports delivery stats and backpressure to the router.
type PublishResult struct {
	SendTo  int
	Dropped []*core.Session
}

type RoomInfo struct {
	ID          domain.RoomID `json:"roomId"`
	MemberCount int           `json:"memberCount"`
}

// RoomManager maps room ids to live rooms. A room is present iff it has at
// least one member. Operations on different rooms only share the map lock.
type RoomManager struct {
	mu    sync.RWMutex
	rooms map[domain.RoomID]*Room
}

func NewRoomManager() *RoomManager {
	return &RoomManager{rooms: make(map[domain.RoomID]*Room)}
}

// ensure returns the live room for id, creating an empty one if needed.
// A room without members is never reported by Size, Members or List.
func (m *RoomManager) ensure(id domain.RoomID) *Room {
	m.mu.RLock()
	room, ok := m.rooms[id]
	m.mu.RUnlock()
	if ok && !room.retired.Load() {
		return room
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if room, ok = m.rooms[id]; ok && !room.retired.Load() {
		return room
	}
	room = newRoom(id)
	m.rooms[id] = room
	return room
}

func (m *RoomManager) get(id domain.RoomID) (*Room, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	room, ok := m.rooms[id]
	if !ok || room.retired.Load() {
		return nil, false
	}
	return room, true
}

// Join adds s to the room and returns the ids that were present before it,
// in join order. limit <= 0 means unlimited. announce runs under the room
// lock with the members present before the add, so notifications about
// this join cannot interleave with other joins or leaves of the room.
func (m *RoomManager) Join(
	id domain.RoomID,
	s *core.Session,
	limit int,
	announce func(peers []*core.Session, size int),
) ([]core.SessionID, error) {
	for {
		room := m.ensure(id)
		room.mu.Lock()
		if room.retired.Load() {
			// Lost a race with the last leave; the next Ensure replaces it.
			room.mu.Unlock()
			continue
		}
		if limit > 0 && len(room.order) >= limit {
			room.mu.Unlock()
			return nil, ErrRoomFull
		}

		peers := room.snapshotLocked()
		ids := slices.Clone(room.order)
		if _, dup := room.members[s.ID()]; !dup {
			room.order = append(room.order, s.ID())
		}
		room.members[s.ID()] = s
		if announce != nil {
			announce(peers, len(room.order))
		}
		room.mu.Unlock()

		log.Info().Str("module", "app.rooms").Str("room_id", string(id)).Str("sid", string(s.ID())).Int("size", len(ids)+1).Msg("member added")
		return ids, nil
	}
}

// Leave removes sid from the room. announce runs under the room lock with
// the remaining members and is skipped when none remain. Leave on an absent
// room or member is a no-op and reports false.
func (m *RoomManager) Leave(id domain.RoomID, sid core.SessionID, announce func(rest []*core.Session)) bool {
	room, ok := m.get(id)
	if !ok {
		return false
	}

	room.mu.Lock()
	if _, ok := room.members[sid]; !ok {
		room.mu.Unlock()
		return false
	}
	delete(room.members, sid)
	room.order = slices.DeleteFunc(room.order, func(x core.SessionID) bool { return x == sid })
	empty := len(room.order) == 0
	if empty {
		room.retired.Store(true)
	} else if announce != nil {
		announce(room.snapshotLocked())
	}
	room.mu.Unlock()

	log.Info().Str("module", "app.rooms").Str("room_id", string(id)).Str("sid", string(sid)).Msg("member removed")
	if empty {
		m.drop(room)
	}
	return true
}

// drop removes a retired room unless a fresh room already replaced it.
func (m *RoomManager) drop(room *Room) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cur, ok := m.rooms[room.id]; ok && cur == room {
		delete(m.rooms, room.id)
		log.Info().Str("module", "app.rooms").Str("room_id", string(room.id)).Msg("room deleted")
	}
}

// Members returns the room's sessions in join order, or nil when absent.
func (m *RoomManager) Members(id domain.RoomID) []*core.Session {
	room, ok := m.get(id)
	if !ok {
		return nil
	}
	room.mu.RLock()
	defer room.mu.RUnlock()
	return room.snapshotLocked()
}

// Size returns the number of members, zero when absent.
func (m *RoomManager) Size(id domain.RoomID) int {
	room, ok := m.get(id)
	if !ok {
		return 0
	}
	return room.Size()
}

// Broadcast queues f to every member except from.
func (m *RoomManager) Broadcast(id domain.RoomID, from core.SessionID, f core.Frame) PublishResult {
	res := PublishResult{}
	room, ok := m.get(id)
	if !ok {
		return res
	}
	room.mu.RLock()
	defer room.mu.RUnlock()
	for _, sid := range room.order {
		if sid == from {
			continue
		}
		publish(&res, room.members[sid], f)
	}
	log.Debug().Str("module", "app.rooms").Str("from", string(from)).Int("sent_to", res.SendTo).Int("dropped", len(res.Dropped)).Msg("broadcast result")
	return res
}

// SendTo queues f to one member. An unknown member yields an empty result.
func (m *RoomManager) SendTo(id domain.RoomID, to core.SessionID, f core.Frame) PublishResult {
	res := PublishResult{}
	room, ok := m.get(id)
	if !ok {
		return res
	}
	room.mu.RLock()
	defer room.mu.RUnlock()
	if s, ok := room.members[to]; ok {
		publish(&res, s, f)
	}
	return res
}

func publish(res *PublishResult, s *core.Session, f core.Frame) {
	if err := s.Send(f); err != nil {
		if !errors.Is(err, core.ErrSessionClosed) {
			res.Dropped = append(res.Dropped, s)
		}
		return
	}
	res.SendTo++
}

// List returns the rooms that currently have members, in no particular
// order.
func (m *RoomManager) List() []RoomInfo {
	m.mu.RLock()
	rooms := make([]*Room, 0, len(m.rooms))
	for _, r := range m.rooms {
		rooms = append(rooms, r)
	}
	m.mu.RUnlock()

	out := make([]RoomInfo, 0, len(rooms))
	for _, r := range rooms {
		if n := r.Size(); n > 0 {
			out = append(out, RoomInfo{ID: r.id, MemberCount: n})
		}
	}
	return out
}
