package repository

import (
	"context"
	"errors"
	"time"

	"github.com/shilo-maker/solupresenter-sub012/internal/domain"
)

var (
	ErrRoomNotFound  = errors.New("room not found")
	ErrThemeNotFound = errors.New("theme not found")
)

// RoomRepository defines the interface for room data persistence.
type RoomRepository interface {
	Create(ctx context.Context, room *domain.Room) error
	GetByID(ctx context.Context, id string) (*domain.Room, error)
	// GetActiveByPIN resolves an open, unexpired room by its join code.
	GetActiveByPIN(ctx context.Context, pin string, now time.Time) (*domain.Room, error)
	GetActiveBySlug(ctx context.Context, slug string, now time.Time) (*domain.Room, error)
	GetActiveByOwner(ctx context.Context, ownerID string) (*domain.Room, error)
	PINInUse(ctx context.Context, pin string) (bool, error)
	// UpdateState applies a partial field update to the room row.
	UpdateState(ctx context.Context, id string, fields map[string]interface{}) error
	Touch(ctx context.Context, id string, lastActive, expiresAt time.Time) error
	SetViewerCount(ctx context.Context, id string, count int) error
	Close(ctx context.Context, id string) error
	ListExpired(ctx context.Context, now time.Time, limit int) ([]domain.Room, error)
	// Purge removes a closed room row so its PIN becomes reusable.
	Purge(ctx context.Context, id string) error
}

// ThemeRepository is the read-only lookup used when an operator applies a
// theme. Theme authoring belongs to the library service.
type ThemeRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Theme, error)
}
