package domain

import (
	"encoding/json"
	"time"

	"github.com/shilo-maker/solupresenter-sub012/pkg/database"
)

// RoomModel is the GORM model for the rooms table.
type RoomModel struct {
	ID              string        `gorm:"type:varchar(36);primaryKey"`
	PIN             string        `gorm:"type:varchar(8);uniqueIndex;not null"`
	Slug            string        `gorm:"type:varchar(64);index"`
	OwnerID         string        `gorm:"type:varchar(36);index;not null"`
	Status          string        `gorm:"type:varchar(20);index;not null;default:'active'"`
	CurrentSlide    database.JSON `gorm:"type:text"`
	BackgroundImage string        `gorm:"type:text"`
	ThemeID         string        `gorm:"type:varchar(36)"`
	ToolsData       database.JSON `gorm:"type:text"`
	QuickSlideText  string        `gorm:"type:text"`
	ViewerCount     int           `gorm:"default:0"`
	LastActiveAt    time.Time
	ExpiresAt       time.Time `gorm:"index"`
	CreatedAt       time.Time `gorm:"autoCreateTime"`
	ClosedAt        *time.Time
}

// TableName specifies the table name for RoomModel.
func (RoomModel) TableName() string {
	return "rooms"
}

// ToDomain converts RoomModel to domain Room.
func (m *RoomModel) ToDomain() *Room {
	room := &Room{
		ID:              m.ID,
		PIN:             m.PIN,
		Slug:            m.Slug,
		OwnerID:         m.OwnerID,
		Status:          RoomStatus(m.Status),
		BackgroundImage: m.BackgroundImage,
		ThemeID:         m.ThemeID,
		ToolsData:       json.RawMessage(m.ToolsData),
		QuickSlideText:  m.QuickSlideText,
		ViewerCount:     m.ViewerCount,
		LastActiveAt:    m.LastActiveAt,
		ExpiresAt:       m.ExpiresAt,
		CreatedAt:       m.CreatedAt,
		ClosedAt:        m.ClosedAt,
	}
	if len(m.CurrentSlide) > 0 {
		var slide SlideState
		if err := json.Unmarshal(m.CurrentSlide, &slide); err == nil {
			room.CurrentSlide = &slide
		}
	}
	return room
}

// RoomToModel converts domain Room to RoomModel.
func RoomToModel(r *Room) *RoomModel {
	m := &RoomModel{
		ID:              r.ID,
		PIN:             r.PIN,
		Slug:            r.Slug,
		OwnerID:         r.OwnerID,
		Status:          string(r.Status),
		BackgroundImage: r.BackgroundImage,
		ThemeID:         r.ThemeID,
		ToolsData:       database.JSON(r.ToolsData),
		QuickSlideText:  r.QuickSlideText,
		ViewerCount:     r.ViewerCount,
		LastActiveAt:    r.LastActiveAt,
		ExpiresAt:       r.ExpiresAt,
		CreatedAt:       r.CreatedAt,
		ClosedAt:        r.ClosedAt,
	}
	if r.CurrentSlide != nil {
		if data, err := json.Marshal(r.CurrentSlide); err == nil {
			m.CurrentSlide = database.JSON(data)
		}
	}
	return m
}

// ThemeModel is the GORM model for the themes table. The sync engine only
// reads themes; authoring lives in the library service.
type ThemeModel struct {
	ID        string        `gorm:"type:varchar(36);primaryKey"`
	Name      string        `gorm:"type:varchar(100);not null"`
	Style     database.JSON `gorm:"type:text"`
	CreatedAt time.Time     `gorm:"autoCreateTime"`
}

// TableName specifies the table name for ThemeModel.
func (ThemeModel) TableName() string {
	return "themes"
}

// ToDomain converts ThemeModel to domain Theme.
func (m *ThemeModel) ToDomain() *Theme {
	return &Theme{
		ID:    m.ID,
		Name:  m.Name,
		Style: json.RawMessage(m.Style),
	}
}
