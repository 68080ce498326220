package domain

import "encoding/json"

// WebSocket event kinds from client.
const (
	EventOperatorJoin        = "operator:join"
	EventOperatorUpdateSlide = "operator:updateSlide"
	EventOperatorUpdateBg    = "operator:updateBackground"
	EventOperatorApplyTheme  = "operator:applyTheme"
	EventOperatorUpdateQuick = "operator:updateQuickSlideText"
	EventOperatorCloseRoom   = "operator:closeRoom"
	EventViewerJoin          = "viewer:join"
	EventPing                = "ping"
)

// WebSocket event kinds to client.
const (
	EventOperatorJoined   = "operator:joined"
	EventViewerJoined     = "viewer:joined"
	EventSlideUpdate      = "slide:update"
	EventBackgroundUpdate = "background:update"
	EventThemeUpdate      = "theme:update"
	EventViewerCount      = "room:viewerCount"
	EventRoomClosed       = "room:closed"
	EventPong             = "pong"
	EventError            = "error"
)

// Error codes carried in error events.
const (
	ErrCodeBadRequest       = "BAD_REQUEST"
	ErrCodeRoomNotFound     = "ROOM_NOT_FOUND"
	ErrCodeThemeNotFound    = "THEME_NOT_FOUND"
	ErrCodeCapacityExceeded = "CAPACITY_EXCEEDED"
	ErrCodeInternalError    = "INTERNAL_ERROR"
)

// Event is the wire envelope: every message carries an event kind and a
// JSON-serializable payload.
type Event struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload,omitempty"`
}

// InboundEvent is the envelope as received, payload left raw for per-kind
// decoding.
type InboundEvent struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Client -> Server payloads

type OperatorJoinPayload struct {
	UserID string `json:"userId"`
	RoomID string `json:"roomId,omitempty"`
}

type UpdateSlidePayload struct {
	RoomID      string          `json:"roomId,omitempty"`
	RoomPIN     string          `json:"roomPin,omitempty"`
	SongID      string          `json:"songId,omitempty"`
	SlideIndex  *int            `json:"slideIndex,omitempty"`
	DisplayMode string          `json:"displayMode,omitempty"`
	IsBlank     bool            `json:"isBlank"`
	ImageURL    string          `json:"imageUrl,omitempty"`
	SlideData   json.RawMessage `json:"slideData,omitempty"`
	ToolsData   json.RawMessage `json:"toolsData,omitempty"`
}

type UpdateBackgroundPayload struct {
	RoomID          string `json:"roomId"`
	BackgroundImage string `json:"backgroundImage"`
}

type ApplyThemePayload struct {
	RoomID  string  `json:"roomId"`
	ThemeID *string `json:"themeId"` // null clears the theme
}

type UpdateQuickSlidePayload struct {
	RoomID         string `json:"roomId"`
	QuickSlideText string `json:"quickSlideText"`
}

type CloseRoomPayload struct {
	RoomID string `json:"roomId"`
}

type ViewerJoinPayload struct {
	PIN  string `json:"pin,omitempty"`
	Slug string `json:"slug,omitempty"`
}

type PingPayload struct {
	Timestamp int64 `json:"timestamp"`
}

// Server -> Client payloads

type OperatorJoinedPayload struct {
	RoomID         string `json:"roomId"`
	RoomPIN        string `json:"roomPin"`
	QuickSlideText string `json:"quickSlideText,omitempty"`
}

type ViewerJoinedPayload struct {
	RoomPIN         string          `json:"roomPin"`
	CurrentSlide    *SlideState     `json:"currentSlide"`
	SlideData       json.RawMessage `json:"slideData,omitempty"`
	BackgroundImage string          `json:"backgroundImage,omitempty"`
	ToolsData       json.RawMessage `json:"toolsData,omitempty"`
	Theme           *Theme          `json:"theme"`
	IsBlank         bool            `json:"isBlank"`
}

type SlideUpdatePayload struct {
	SlideState
	ToolsData json.RawMessage `json:"toolsData,omitempty"`
}

type BackgroundUpdatePayload struct {
	BackgroundImage string `json:"backgroundImage"`
}

type ThemeUpdatePayload struct {
	Theme *Theme `json:"theme"` // null when the theme was cleared
}

type ViewerCountPayload struct {
	Count int `json:"count"`
}

type RoomClosedPayload struct {
	Message string `json:"message"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewErrorEvent builds an error event for the originating connection.
func NewErrorEvent(code, message string) Event {
	return Event{
		Type:    EventError,
		Payload: ErrorPayload{Code: code, Message: message},
	}
}
