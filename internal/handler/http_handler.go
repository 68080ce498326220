package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/shilo-maker/solupresenter-sub012/internal/service"
	"github.com/shilo-maker/solupresenter-sub012/pkg/response"
)

// HTTPHandler serves the REST surface next to the socket endpoint.
type HTTPHandler struct {
	service service.SyncService
}

func NewHTTPHandler(svc service.SyncService) *HTTPHandler {
	return &HTTPHandler{service: svc}
}

// RegisterRoutes registers the REST endpoints.
func (h *HTTPHandler) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", h.Health)

	v1 := r.Group("/api/v1")
	{
		v1.GET("/rooms/:pin", h.GetRoomByPIN)
	}
}

// GetRoomByPIN looks up an active room before the client opens a socket.
func (h *HTTPHandler) GetRoomByPIN(c *gin.Context) {
	pin := c.Param("pin")
	if pin == "" {
		response.BadRequest(c, "pin is required")
		return
	}

	room, err := h.service.RoomByPIN(c.Request.Context(), pin)
	if err != nil {
		if errors.Is(err, service.ErrRoomNotFound) {
			response.NotFound(c, "room not found")
			return
		}
		response.InternalError(c, "failed to look up room")
		return
	}

	response.Success(c, room)
}

// Health reports liveness.
func (h *HTTPHandler) Health(c *gin.Context) {
	response.Success(c, gin.H{"status": "ok"})
}
