package service

import (
	"context"
	"errors"

	"github.com/shilo-maker/solupresenter-sub012/internal/domain"
	"github.com/shilo-maker/solupresenter-sub012/internal/hub"
)

var (
	ErrRoomNotFound  = errors.New("room not found")
	ErrThemeNotFound = errors.New("theme not found")
	ErrRoomFull      = errors.New("room is full")
	ErrValidation    = errors.New("invalid payload")
	ErrNotOperator   = errors.New("connection is not the room operator")
)

// CodeAllocator hands out unique short join codes. The engine depends on the
// capability, not the implementation.
type CodeAllocator interface {
	Allocate(ctx context.Context) (string, error)
}

// SyncService is the room synchronization engine: operator commands in,
// room-wide broadcasts out. Replies and error events go directly to the
// originating connection; the returned error is for logging only.
type SyncService interface {
	HandleOperatorJoin(ctx context.Context, c hub.Conn, p domain.OperatorJoinPayload) error
	HandleUpdateSlide(ctx context.Context, c hub.Conn, p domain.UpdateSlidePayload) error
	HandleUpdateBackground(ctx context.Context, c hub.Conn, p domain.UpdateBackgroundPayload) error
	HandleApplyTheme(ctx context.Context, c hub.Conn, p domain.ApplyThemePayload) error
	HandleUpdateQuickSlide(ctx context.Context, c hub.Conn, p domain.UpdateQuickSlidePayload) error
	HandleCloseRoom(ctx context.Context, c hub.Conn, p domain.CloseRoomPayload) error
	HandleViewerJoin(ctx context.Context, c hub.Conn, p domain.ViewerJoinPayload) error
	HandleDisconnect(ctx context.Context, c hub.Conn)

	// RoomByPIN is the REST lookup used by clients before opening a socket.
	RoomByPIN(ctx context.Context, pin string) (*domain.RoomResponse, error)
}
