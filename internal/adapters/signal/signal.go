// Package signal is the connection gateway: it authenticates the websocket
// handshake, joins the room, wires group subscriptions, and unwinds all of
// it exactly once when the connection dies, whichever way it dies.
package signal

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/arena/internal/app"
	"github.com/dkeye/arena/internal/core"
	"github.com/dkeye/arena/internal/domain"
)

// Close codes delivered to the peer. Both are terminal: the client must
// reconnect with different parameters.
const (
	CloseUnauthenticated = 4001
	CloseRoomFull        = 4002
)

const sendBuffer = 32

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type Controller struct {
	coordinator core.Coordinator
	broadcaster core.Broadcaster
	presence    core.Presence
	verifier    core.Verifier
	router      *app.Router
	registry    *app.Registry
	namer       app.GroupNamer
	limiter     *JoinRateLimiter

	authTimeout time.Duration
	readLimit   int64
	pingPeriod  time.Duration
}

func NewController(
	coordinator core.Coordinator,
	broadcaster core.Broadcaster,
	presence core.Presence,
	verifier core.Verifier,
	router *app.Router,
	registry *app.Registry,
	namer app.GroupNamer,
	authTimeout time.Duration,
	readLimit int64,
	pingPeriod time.Duration,
) *Controller {
	return &Controller{
		coordinator: coordinator,
		broadcaster: broadcaster,
		presence:    presence,
		verifier:    verifier,
		router:      router,
		registry:    registry,
		namer:       namer,
		limiter:     NewJoinRateLimiter(10, time.Minute),
		authTimeout: authTimeout,
		readLimit:   readLimit,
		pingPeriod:  pingPeriod,
	}
}

// HandleArena runs the per-connection state machine:
// connecting -> authenticating -> joining -> active -> closed.
func (ctl *Controller) HandleArena(ctx context.Context, c *gin.Context) {
	roomKey := domain.RoomKey(c.Param("room"))
	token := c.Query("token")

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("ws upgrade")
		return
	}
	ws.SetReadLimit(ctl.readLimit)

	// Authenticating. A hung resolver counts as a failed authentication,
	// it must not hold the gateway open.
	authCtx, authCancel := context.WithTimeout(ctx, ctl.authTimeout)
	identity, err := ctl.verifier.Verify(authCtx, token)
	authCancel()
	if err != nil || identity.Anonymous() {
		if err != nil {
			log.Warn().Err(err).Str("module", "signal").Msg("token verification failed")
		}
		closeWith(ws, CloseUnauthenticated, "unauthenticated")
		return
	}

	if !ctl.limiter.Allow(identity.ID) {
		closeWith(ws, websocket.ClosePolicyViolation, "too many join attempts")
		return
	}

	// Joining. Capacity enforcement happens inside the coordinator; a full
	// room leaves no player row behind.
	connID := domain.ConnectionID(uuid.NewString())
	if _, err := ctl.coordinator.Join(ctx, roomKey, connID, identity); err != nil {
		switch {
		case errors.Is(err, domain.ErrRoomFull):
			closeWith(ws, CloseRoomFull, "room full")
		case errors.Is(err, domain.ErrRoomKeyInvalid):
			closeWith(ws, websocket.ClosePolicyViolation, "invalid room key")
		default:
			log.Error().Err(err).Str("module", "signal").Str("room", string(roomKey)).Msg("join failed")
			closeWith(ws, websocket.CloseInternalServerErr, "join failed")
		}
		return
	}

	conn := newWsConn(ws, sendBuffer)
	connCtx, cancel := context.WithCancel(ctx)
	ctl.registry.Bind(connID, cancel)

	roomGroup := ctl.namer.RoomGroup(roomKey)
	userGroup := ctl.namer.UserGroup(identity.ID)
	ctl.broadcaster.Subscribe(roomGroup, connID, conn)
	ctl.broadcaster.Subscribe(userGroup, connID, conn)

	// The single cleanup path. Runs exactly once for every way out:
	// peer close, protocol error, prune cancel, server shutdown.
	var once sync.Once
	cleanup := func() {
		once.Do(func() {
			cancel()
			ctl.broadcaster.Unsubscribe(roomGroup, connID)
			ctl.broadcaster.Unsubscribe(userGroup, connID)

			// connCtx is already canceled here; the leave needs its own.
			leaveCtx, leaveCancel := context.WithTimeout(context.Background(), 5*time.Second)
			if err := ctl.coordinator.Leave(leaveCtx, connID); err != nil {
				log.Error().Err(err).Str("module", "signal").Str("conn", string(connID)).Msg("leave failed")
			}
			leaveCancel()

			ctl.registry.Unbind(connID)
			conn.Close()
		})
	}

	from := app.Sender{Conn: connID, Identity: identity, Room: roomKey, Sink: conn}
	log.Info().Str("module", "signal").
		Str("conn", string(connID)).
		Str("room", string(roomKey)).
		Str("identity", string(identity.ID)).
		Msg("connection active")

	go ctl.writePump(connCtx, conn)
	go ctl.readPump(connCtx, from, conn, cleanup)

	// Context cancellation (prune, shutdown) must unwind even while the
	// read is blocked on the socket.
	go func() {
		<-connCtx.Done()
		cleanup()
	}()
}

func closeWith(ws *websocket.Conn, code int, reason string) {
	deadline := time.Now().Add(writeWait)
	msg := websocket.FormatCloseMessage(code, reason)
	if err := ws.WriteControl(websocket.CloseMessage, msg, deadline); err != nil {
		log.Warn().Err(err).Str("module", "signal").Int("code", code).Msg("write close frame")
	}
	_ = ws.Close()
}
