package domain

import (
	"encoding/json"
	"time"
)

// RoomStatus represents room status.
type RoomStatus string

const (
	RoomStatusActive RoomStatus = "active"
	RoomStatusClosed RoomStatus = "closed"
)

// SlideState is the fully resolved slide payload broadcast to viewers.
// It carries the rendered content, not just identifiers, so a late joiner
// needs no second lookup.
type SlideState struct {
	SongID      string          `json:"songId,omitempty"`
	SlideIndex  *int            `json:"slideIndex,omitempty"`
	DisplayMode string          `json:"displayMode,omitempty"`
	IsBlank     bool            `json:"isBlank"`
	ImageURL    string          `json:"imageUrl,omitempty"`
	SlideData   json.RawMessage `json:"slideData,omitempty"`
}

// Theme is the denormalized presentation theme applied to a room.
type Theme struct {
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Style json.RawMessage `json:"style,omitempty"`
}

// Room represents a presentation room: one operator, many viewers, one PIN.
type Room struct {
	ID              string          `json:"id"`
	PIN             string          `json:"pin"`
	Slug            string          `json:"slug,omitempty"`
	OwnerID         string          `json:"owner_id"`
	Status          RoomStatus      `json:"status"`
	CurrentSlide    *SlideState     `json:"current_slide,omitempty"`
	BackgroundImage string          `json:"background_image,omitempty"`
	ThemeID         string          `json:"theme_id,omitempty"`
	ToolsData       json.RawMessage `json:"tools_data,omitempty"`
	QuickSlideText  string          `json:"quick_slide_text,omitempty"`
	ViewerCount     int             `json:"viewer_count"`
	LastActiveAt    time.Time       `json:"last_active_at"`
	ExpiresAt       time.Time       `json:"expires_at"`
	CreatedAt       time.Time       `json:"created_at"`
	ClosedAt        *time.Time      `json:"closed_at,omitempty"`
}

// IsActive reports whether the room is open and not past its expiry window.
func (r *Room) IsActive(now time.Time) bool {
	return r.Status == RoomStatusActive && now.Before(r.ExpiresAt)
}

// RoomResponse represents a room in API responses.
type RoomResponse struct {
	ID          string     `json:"id"`
	PIN         string     `json:"pin"`
	Slug        string     `json:"slug,omitempty"`
	Status      RoomStatus `json:"status"`
	ViewerCount int        `json:"viewer_count"`
	CreatedAt   time.Time  `json:"created_at"`
}

// ToResponse converts Room to RoomResponse.
func (r *Room) ToResponse() RoomResponse {
	return RoomResponse{
		ID:          r.ID,
		PIN:         r.PIN,
		Slug:        r.Slug,
		Status:      r.Status,
		ViewerCount: r.ViewerCount,
		CreatedAt:   r.CreatedAt,
	}
}
