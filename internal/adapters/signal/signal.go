package signal

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/dkeye/roomrelay/internal/app"
	"github.com/dkeye/roomrelay/internal/core"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

var (
	ErrBackpressure = errors.New("backpressure")
	ErrConnClosed   = errors.New("connection closed")
)

type Options struct {
	ReadLimit  int64
	WriteWait  time.Duration
	SendBuffer int
}

func (o Options) withDefaults() Options {
	if o.ReadLimit <= 0 {
		o.ReadLimit = 64 << 10
	}
	if o.WriteWait <= 0 {
		o.WriteWait = 5 * time.Second
	}
	if o.SendBuffer <= 0 {
		o.SendBuffer = 64
	}
	return o
}

// SignalWSController binds WebSocket connections to one relay instance.
type SignalWSController struct {
	Relay    *app.Relay
	opts     Options
	upgrader websocket.Upgrader
}

func NewSignalWSController(relay *app.Relay, opts Options) *SignalWSController {
	return &SignalWSController{
		Relay: relay,
		opts:  opts.withDefaults(),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// wsSignalConn implements core.Channel over a gorilla connection. Frames
// and pings go through queues drained by a single writer goroutine.
type wsSignalConn struct {
	conn      *websocket.Conn
	send      chan core.Frame
	ping      chan struct{}
	writeWait time.Duration

	mu     sync.RWMutex
	closed bool
}

func newWSSignalConn(conn *websocket.Conn, opts Options) *wsSignalConn {
	return &wsSignalConn{
		conn:      conn,
		send:      make(chan core.Frame, opts.SendBuffer),
		ping:      make(chan struct{}, 1),
		writeWait: opts.WriteWait,
	}
}

func (c *wsSignalConn) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return ErrConnClosed
	}
	select {
	case c.send <- f:
	default:
		return ErrBackpressure
	}
	return nil
}

// Ping asks the writer goroutine to send a ping and never blocks. A ping
// still pending from an earlier call is not queued twice.
func (c *wsSignalConn) Ping() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return ErrConnClosed
	}
	select {
	case c.ping <- struct{}{}:
	default:
	}
	return nil
}

func (c *wsSignalConn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
	c.mu.Unlock()
}

// HandleSignal upgrades the request and serves the connection until it
// closes. token identifies the browser for logging and rate limiting.
func (ctl *SignalWSController) HandleSignal(ctx context.Context, w http.ResponseWriter, r *http.Request, token string) {
	ns := ctl.Relay.Namespace()
	ws, err := ctl.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "adapters.signal").Str("ns", ns.Name).Msg("ws upgrade")
		return
	}
	ws.SetReadLimit(ctl.opts.ReadLimit)

	conn := newWSSignalConn(ws, ctl.opts)
	sess, err := ctl.Relay.Connect(token, conn)
	if err != nil {
		log.Error().Err(err).Str("module", "adapters.signal").Str("ns", ns.Name).Msg("session bind")
		writeClose(ws, websocket.CloseTryAgainLater, "server busy", ctl.opts.WriteWait)
		conn.Close()
		return
	}
	ws.SetPongHandler(func(string) error {
		sess.MarkAlive()
		return nil
	})

	ctx, cancel := context.WithCancel(ctx)
	go ctl.writePump(ctx, conn)
	go func() {
		defer cancel()
		ctl.readPump(ctx, sess, conn)
	}()
}

func writeClose(ws *websocket.Conn, code int, reason string, wait time.Duration) {
	_ = ws.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), time.Now().Add(wait))
}
