package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/jorabeknazarmatov/test-platform/internal/response"
	"github.com/jorabeknazarmatov/test-platform/internal/session"
	ws "github.com/jorabeknazarmatov/test-platform/internal/websocket"
)

// buildUpgrader creates a WebSocket upgrader with origin validation.
// allowedOrigins comes from config.Config.AllowedOrigins.
// An empty slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// WSHandler streams the kiosk session to the presentation layer and accepts
// its actions.
type WSHandler struct {
	ctrl     *session.Controller
	log      zerolog.Logger
	upgrader websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(ctrl *session.Controller, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		ctrl:     ctrl,
		log:      log.With().Str("component", "ws_handler").Logger(),
		upgrader: buildUpgrader(allowedOrigins),
	}
}

// SessionStream godoc
// WS /ws/v1/session/stream
// Pushes a state event on connect and after every change; accepts
// answer, navigation, finish and ping actions.
func (h *WSHandler) SessionStream(c *gin.Context) {
	raw, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	conn := ws.NewConn(raw)
	defer conn.Close()

	updates, unsubscribe := h.ctrl.Subscribe()
	defer unsubscribe()

	h.log.Info().Str("remote", c.ClientIP()).Msg("Presentation client connected")
	go h.push(conn, updates)

	for {
		var msg ws.Request
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Warn().Err(err).Msg("Unexpected close")
			} else {
				h.log.Debug().Msg("Connection closed")
			}
			return
		}

		switch msg.Action {
		case ws.ActionAnswer:
			if err := h.ctrl.SelectAnswer(msg.QuestionID, msg.Answer); err != nil {
				h.writeError(conn, err)
			}
		case ws.ActionNext:
			h.ctrl.Next()
		case ws.ActionPrevious:
			h.ctrl.Previous()
		case ws.ActionGoTo:
			h.ctrl.GoTo(msg.Index)
		case ws.ActionFinish:
			// Finalizing waits on the network; keep reading meanwhile. The
			// outcome arrives as a state or finished event.
			go func() {
				if _, err := h.ctrl.Finish(context.Background()); err != nil {
					h.writeError(conn, err)
				}
			}()
		case ws.ActionPing:
			if err := conn.WriteTyped(ws.PongResponse{Event: ws.EventPong}); err != nil {
				h.log.Debug().Err(err).Msg("Pong failed")
			}
		default:
			h.log.Warn().Str("action", string(msg.Action)).Msg("Unknown action")
			if err := conn.WriteError(string(response.ErrInvalidPayload), "unknown action: "+string(msg.Action)); err != nil {
				h.log.Debug().Err(err).Msg("Error reply failed")
			}
		}
	}
}

// push forwards snapshots until the subscription is closed. The finished event
// is sent once per attempt.
func (h *WSHandler) push(conn *ws.Conn, updates <-chan session.Snapshot) {
	announced := false
	for snap := range updates {
		if err := conn.WriteTyped(ws.StateResponse{Event: ws.EventState, Session: snap}); err != nil {
			h.log.Debug().Err(err).Msg("State push failed")
			continue
		}
		switch {
		case snap.State == session.StateFinished && !announced:
			announced = true
			conn.WriteTyped(ws.FinishedResponse{
				Event:   ws.EventFinished,
				Expired: snap.Expired,
				Result:  snap.Result,
			})
		case snap.State != session.StateFinished:
			announced = false
		}
	}
}

// writeError reports err to the client. A finish running in its own goroutine
// may get here after the stream closed, so a failed write is only logged.
func (h *WSHandler) writeError(conn *ws.Conn, err error) {
	_, code, msg := classify(err)
	if msg == "" {
		msg = response.GetMessage(code)
	}
	if werr := conn.WriteError(string(code), msg); werr != nil {
		h.log.Debug().Err(werr).Str("code", string(code)).Msg("Error reply failed")
	}
}
