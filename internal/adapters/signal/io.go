package signal

import (
	"context"
	"time"

	"github.com/dkeye/roomrelay/internal/core"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

func (ctl *SignalWSController) writePump(ctx context.Context, c *wsSignalConn) {
	defer c.Close()
	for {
		select {
		case <-ctx.Done():
			return
		case data, ok := <-c.send:
			if !ok {
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeWait)); err != nil {
				log.Warn().Err(err).Str("module", "adapters.signal").Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Warn().Err(err).Str("module", "adapters.signal").Msg("writePump write error")
				return
			}
		case <-c.ping:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.writeWait)); err != nil {
				log.Warn().Err(err).Str("module", "adapters.signal").Msg("writePump ping error")
				return
			}
		}
	}
}

// readPump feeds frames to the relay in arrival order. Any exit, graceful
// or not, is an implicit leave.
func (ctl *SignalWSController) readPump(ctx context.Context, sess *core.Session, c *wsSignalConn) {
	sid := string(sess.ID())
	defer func() {
		log.Debug().Str("module", "adapters.signal").Str("sid", sid).Msg("readPump closing")
		ctl.Relay.Disconnect(sess)
	}()

	for {
		if ctx.Err() != nil {
			return
		}
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Warn().Err(err).Str("module", "adapters.signal").Str("sid", sid).Msg("readPump read error")
			}
			return
		}
		ctl.Relay.HandleFrame(ctx, sess, data)
	}
}
