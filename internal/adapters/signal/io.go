package signal

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/arena/internal/app"
	"github.com/dkeye/arena/internal/domain"
)

const writeWait = 5 * time.Second

func (ctl *Controller) writePump(ctx context.Context, c *WsConn) {
	ping := time.NewTicker(ctl.pingPeriod)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ping.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case data, ok := <-c.send:
			if !ok {
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump write error")
				return
			}
		}
	}
}

// readPump processes inbound messages strictly in receipt order. Every frame
// refreshes presence; malformed JSON and unknown types get an error reply
// and the connection stays open.
func (ctl *Controller) readPump(ctx context.Context, from app.Sender, c *WsConn, cleanup func()) {
	defer func() {
		log.Info().Str("module", "signal").Str("conn", string(from.Conn)).Msg("readPump closing")
		cleanup()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		default:
			_, data, err := c.conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					log.Warn().Err(err).Str("module", "signal").Str("conn", string(from.Conn)).Msg("readPump read error")
				}
				return
			}
			ctl.handleFrame(ctx, from, c, data)
		}
	}
}

func (ctl *Controller) handleFrame(ctx context.Context, from app.Sender, c *WsConn, data []byte) {
	if err := ctl.presence.Touch(ctx, from.Conn); err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("conn", string(from.Conn)).Msg("presence touch failed")
	}

	var env domain.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("conn", string(from.Conn)).Msg("bad json")
		ctl.sendEnvelope(c, domain.ErrorEnvelope("bad_payload"))
		return
	}
	if err := ctl.router.Dispatch(ctx, from, env); err != nil {
		// The router already told the peer; the connection stays open.
		log.Warn().Err(err).Str("module", "signal").Str("conn", string(from.Conn)).Msg("dispatch rejected")
	}
}

func (ctl *Controller) sendEnvelope(c *WsConn, env domain.Envelope) {
	b, err := json.Marshal(env)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("sendEnvelope marshal")
		return
	}
	_ = c.TrySend(b)
}
