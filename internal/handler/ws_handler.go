package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/shilo-maker/solupresenter-sub012/internal/config"
	"github.com/shilo-maker/solupresenter-sub012/internal/domain"
	"github.com/shilo-maker/solupresenter-sub012/internal/hub"
	"github.com/shilo-maker/solupresenter-sub012/internal/service"
	"github.com/shilo-maker/solupresenter-sub012/pkg/log"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WSHandler upgrades connections and dispatches inbound events by kind.
type WSHandler struct {
	service service.SyncService
	wsCfg   config.WebSocketConfig
}

// NewWSHandler creates a new WebSocket handler.
func NewWSHandler(svc service.SyncService, wsCfg config.WebSocketConfig) *WSHandler {
	return &WSHandler{service: svc, wsCfg: wsCfg}
}

// RegisterRoutes registers the socket endpoint.
func (h *WSHandler) RegisterRoutes(r *gin.Engine) {
	r.GET("/ws", h.HandleWebSocket)
}

// HandleWebSocket upgrades the request and starts the connection's pumps.
func (h *WSHandler) HandleWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Ctx(c.Request.Context()).Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := hub.NewClient(uuid.New().String(), conn, h.wsCfg)

	go client.WritePump()
	client.ReadPump(h.handleMessage)

	// Transport-level close: run the same cleanup as an explicit leave.
	h.service.HandleDisconnect(c.Request.Context(), client)
}

// handleMessage decodes the envelope and routes by event kind. A panic in
// one connection's handler must not take down the rest: it is recovered and
// reported to the originating connection only.
func (h *WSHandler) handleMessage(client *hub.Client, message []byte) {
	defer func() {
		if r := recover(); r != nil {
			log.L().Error().Interface("panic", r).Str(log.FieldConnID, client.ID()).Msg("event handler panicked")
			client.SendEvent(domain.NewErrorEvent(domain.ErrCodeInternalError, "internal error"))
		}
	}()

	var evt domain.InboundEvent
	if err := json.Unmarshal(message, &evt); err != nil {
		client.SendEvent(domain.NewErrorEvent(domain.ErrCodeBadRequest, "invalid message format"))
		return
	}

	ctx := log.WithLogger(context.Background(), log.L().With().Str(log.FieldConnID, client.ID()).Logger())

	switch evt.Type {
	case domain.EventOperatorJoin:
		var p domain.OperatorJoinPayload
		if !decode(client, evt.Payload, &p) {
			return
		}
		h.logErr(client, evt.Type, h.service.HandleOperatorJoin(ctx, client, p))

	case domain.EventOperatorUpdateSlide:
		var p domain.UpdateSlidePayload
		if !decode(client, evt.Payload, &p) {
			return
		}
		h.logErr(client, evt.Type, h.service.HandleUpdateSlide(ctx, client, p))

	case domain.EventOperatorUpdateBg:
		var p domain.UpdateBackgroundPayload
		if !decode(client, evt.Payload, &p) {
			return
		}
		h.logErr(client, evt.Type, h.service.HandleUpdateBackground(ctx, client, p))

	case domain.EventOperatorApplyTheme:
		var p domain.ApplyThemePayload
		if !decode(client, evt.Payload, &p) {
			return
		}
		h.logErr(client, evt.Type, h.service.HandleApplyTheme(ctx, client, p))

	case domain.EventOperatorUpdateQuick:
		var p domain.UpdateQuickSlidePayload
		if !decode(client, evt.Payload, &p) {
			return
		}
		h.logErr(client, evt.Type, h.service.HandleUpdateQuickSlide(ctx, client, p))

	case domain.EventOperatorCloseRoom:
		var p domain.CloseRoomPayload
		if !decode(client, evt.Payload, &p) {
			return
		}
		h.logErr(client, evt.Type, h.service.HandleCloseRoom(ctx, client, p))

	case domain.EventViewerJoin:
		var p domain.ViewerJoinPayload
		if !decode(client, evt.Payload, &p) {
			return
		}
		h.logErr(client, evt.Type, h.service.HandleViewerJoin(ctx, client, p))

	case domain.EventPing:
		var p domain.PingPayload
		if !decode(client, evt.Payload, &p) {
			return
		}
		client.SendEvent(domain.Event{Type: domain.EventPong, Payload: p})

	default:
		client.SendEvent(domain.NewErrorEvent(domain.ErrCodeBadRequest, "unknown event type"))
	}
}

func (h *WSHandler) logErr(client *hub.Client, kind string, err error) {
	if err != nil {
		log.L().Debug().Err(err).Str(log.FieldConnID, client.ID()).Str(log.FieldEvent, kind).Msg("event rejected")
	}
}

func decode(client *hub.Client, raw json.RawMessage, dst interface{}) bool {
	if len(raw) == 0 {
		return true
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		client.SendEvent(domain.NewErrorEvent(domain.ErrCodeBadRequest, "invalid payload"))
		return false
	}
	return true
}
