package app

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/dkeye/roomrelay/internal/core"
	"github.com/dkeye/roomrelay/internal/domain"
	"github.com/stretchr/testify/require"
)

var errQueueFull = errors.New("queue full")

type fakeChannel struct {
	mu     sync.Mutex
	frames []core.Frame
	pings  int
	closed bool
	full   bool
}

func (c *fakeChannel) TrySend(f core.Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errors.New("closed")
	}
	if c.full {
		return errQueueFull
	}
	c.frames = append(c.frames, f)
	return nil
}

func (c *fakeChannel) Ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pings++
	return nil
}

func (c *fakeChannel) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

func (c *fakeChannel) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *fakeChannel) setFull(full bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.full = full
}

type wireMsg struct {
	Type    string         `json:"type"`
	Payload map[string]any `json:"payload"`
}

// drain returns and forgets everything received so far.
func (c *fakeChannel) drain(t *testing.T) []wireMsg {
	t.Helper()
	c.mu.Lock()
	frames := c.frames
	c.frames = nil
	c.mu.Unlock()

	out := make([]wireMsg, 0, len(frames))
	for _, f := range frames {
		var m wireMsg
		require.NoError(t, json.Unmarshal(f, &m))
		out = append(out, m)
	}
	return out
}

func ofType(msgs []wireMsg, typ string) []wireMsg {
	var out []wireMsg
	for _, m := range msgs {
		if m.Type == typ {
			out = append(out, m)
		}
	}
	return out
}

type fakeAuth struct {
	mu     sync.Mutex
	rooms  map[domain.RoomID]bool
	err    error
	calls  int
	before func()
}

func newFakeAuth(rooms ...domain.RoomID) *fakeAuth {
	a := &fakeAuth{rooms: make(map[domain.RoomID]bool)}
	for _, id := range rooms {
		a.rooms[id] = true
	}
	return a
}

func (a *fakeAuth) Exists(_ context.Context, id domain.RoomID) (bool, error) {
	a.mu.Lock()
	a.calls++
	before := a.before
	ok, err := a.rooms[id], a.err
	a.mu.Unlock()
	if before != nil {
		before()
	}
	return ok, err
}

func (a *fakeAuth) callCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls
}

type peer struct {
	sess *core.Session
	ch   *fakeChannel
}

func (p peer) id() string { return string(p.sess.ID()) }

func newTestRelay(t *testing.T, auth Authorizer, opts Options) *Relay {
	t.Helper()
	r, err := NewRelay(core.AudioVideo("/ws"), auth, opts)
	require.NoError(t, err)
	return r
}

func connect(t *testing.T, r *Relay) peer {
	t.Helper()
	ch := &fakeChannel{}
	s, err := r.Connect("", ch)
	require.NoError(t, err)
	return peer{sess: s, ch: ch}
}

func send(r *Relay, p peer, raw string) {
	r.HandleFrame(context.Background(), p.sess, []byte(raw))
}

// joinRoom joins p and discards the replies it received.
func joinRoom(t *testing.T, r *Relay, p peer, room string) {
	t.Helper()
	send(r, p, `{"type":"join","roomId":"`+room+`"}`)
	msgs := p.ch.drain(t)
	require.Len(t, ofType(msgs, "joined"), 1, "join of %s failed: %+v", p.id(), msgs)
}
