package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/shilo-maker/solupresenter-sub012/internal/domain"
	"github.com/shilo-maker/solupresenter-sub012/pkg/log"
)

// GormRoomRepository implements RoomRepository using GORM.
type GormRoomRepository struct {
	db *gorm.DB
}

// NewGormRoomRepository creates a new GORM-based room repository.
func NewGormRoomRepository(db *gorm.DB) *GormRoomRepository {
	return &GormRoomRepository{db: db}
}

// Create creates a new room row.
func (r *GormRoomRepository) Create(ctx context.Context, room *domain.Room) error {
	l := log.Ctx(ctx)

	if room.ID == "" {
		room.ID = uuid.New().String()
	}
	room.Status = domain.RoomStatusActive

	model := domain.RoomToModel(room)
	result := r.db.WithContext(ctx).Create(model)
	if result.Error != nil {
		l.Error().Err(result.Error).Msg("failed to create room in db")
		return result.Error
	}

	room.CreatedAt = model.CreatedAt
	l.Debug().Str(log.FieldRoomID, room.ID).Str(log.FieldRoomPIN, room.PIN).Msg("room created in db")
	return nil
}

// GetByID retrieves a room by ID.
func (r *GormRoomRepository) GetByID(ctx context.Context, id string) (*domain.Room, error) {
	var model domain.RoomModel
	result := r.db.WithContext(ctx).First(&model, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrRoomNotFound
		}
		log.Ctx(ctx).Error().Err(result.Error).Str(log.FieldRoomID, id).Msg("failed to get room by id")
		return nil, result.Error
	}
	return model.ToDomain(), nil
}

// GetActiveByPIN resolves an open, unexpired room by its join code.
func (r *GormRoomRepository) GetActiveByPIN(ctx context.Context, pin string, now time.Time) (*domain.Room, error) {
	var model domain.RoomModel
	result := r.db.WithContext(ctx).
		Where("pin = ? AND status = ? AND expires_at > ?", pin, string(domain.RoomStatusActive), now).
		First(&model)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrRoomNotFound
		}
		log.Ctx(ctx).Error().Err(result.Error).Str(log.FieldRoomPIN, pin).Msg("failed to get room by pin")
		return nil, result.Error
	}
	return model.ToDomain(), nil
}

// GetActiveBySlug resolves an open, unexpired named room.
func (r *GormRoomRepository) GetActiveBySlug(ctx context.Context, slug string, now time.Time) (*domain.Room, error) {
	var model domain.RoomModel
	result := r.db.WithContext(ctx).
		Where("slug = ? AND status = ? AND expires_at > ?", slug, string(domain.RoomStatusActive), now).
		First(&model)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrRoomNotFound
		}
		log.Ctx(ctx).Error().Err(result.Error).Str("slug", slug).Msg("failed to get room by slug")
		return nil, result.Error
	}
	return model.ToDomain(), nil
}

// GetActiveByOwner returns the owner's current active room, if any.
// At most one active room exists per operator.
func (r *GormRoomRepository) GetActiveByOwner(ctx context.Context, ownerID string) (*domain.Room, error) {
	var model domain.RoomModel
	result := r.db.WithContext(ctx).
		Where("owner_id = ? AND status = ?", ownerID, string(domain.RoomStatusActive)).
		Order("created_at DESC").
		First(&model)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrRoomNotFound
		}
		log.Ctx(ctx).Error().Err(result.Error).Str(log.FieldUserID, ownerID).Msg("failed to get room by owner")
		return nil, result.Error
	}
	return model.ToDomain(), nil
}

// PINInUse reports whether a live row already holds the code.
func (r *GormRoomRepository) PINInUse(ctx context.Context, pin string) (bool, error) {
	var count int64
	result := r.db.WithContext(ctx).Model(&domain.RoomModel{}).
		Where("pin = ?", pin).
		Count(&count)
	if result.Error != nil {
		return false, result.Error
	}
	return count > 0, nil
}

// UpdateState applies a partial field update to the room row.
func (r *GormRoomRepository) UpdateState(ctx context.Context, id string, fields map[string]interface{}) error {
	result := r.db.WithContext(ctx).Model(&domain.RoomModel{}).
		Where("id = ?", id).
		Updates(fields)
	if result.Error != nil {
		log.Ctx(ctx).Error().Err(result.Error).Str(log.FieldRoomID, id).Msg("failed to update room state in db")
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrRoomNotFound
	}
	return nil
}

// Touch extends the room's rolling expiry window.
func (r *GormRoomRepository) Touch(ctx context.Context, id string, lastActive, expiresAt time.Time) error {
	result := r.db.WithContext(ctx).Model(&domain.RoomModel{}).
		Where("id = ? AND status = ?", id, string(domain.RoomStatusActive)).
		Updates(map[string]interface{}{
			"last_active_at": lastActive,
			"expires_at":     expiresAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrRoomNotFound
	}
	return nil
}

// SetViewerCount writes the best-effort durable mirror of the viewer count.
func (r *GormRoomRepository) SetViewerCount(ctx context.Context, id string, count int) error {
	if count < 0 {
		count = 0
	}
	return r.db.WithContext(ctx).Model(&domain.RoomModel{}).
		Where("id = ?", id).
		Update("viewer_count", count).Error
}

// Close deactivates a room.
func (r *GormRoomRepository) Close(ctx context.Context, id string) error {
	l := log.Ctx(ctx)

	now := time.Now()
	result := r.db.WithContext(ctx).Model(&domain.RoomModel{}).
		Where("id = ? AND status = ?", id, string(domain.RoomStatusActive)).
		Updates(map[string]interface{}{
			"status":    string(domain.RoomStatusClosed),
			"closed_at": now,
		})
	if result.Error != nil {
		l.Error().Err(result.Error).Str(log.FieldRoomID, id).Msg("failed to close room in db")
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrRoomNotFound
	}
	l.Debug().Str(log.FieldRoomID, id).Msg("room closed in db")
	return nil
}

// ListExpired returns active rooms whose expiry timestamp has passed.
func (r *GormRoomRepository) ListExpired(ctx context.Context, now time.Time, limit int) ([]domain.Room, error) {
	if limit < 1 {
		limit = 100
	}

	var models []domain.RoomModel
	result := r.db.WithContext(ctx).
		Where("status = ? AND expires_at <= ?", string(domain.RoomStatusActive), now).
		Limit(limit).
		Find(&models)
	if result.Error != nil {
		log.Ctx(ctx).Error().Err(result.Error).Msg("failed to list expired rooms")
		return nil, result.Error
	}

	rooms := make([]domain.Room, len(models))
	for i, model := range models {
		rooms[i] = *model.ToDomain()
	}
	return rooms, nil
}

// Purge removes a closed room row so its PIN becomes reusable.
func (r *GormRoomRepository) Purge(ctx context.Context, id string) error {
	// Hard delete: the unique PIN index must not be held by a dead row.
	result := r.db.WithContext(ctx).
		Where("id = ? AND status = ?", id, string(domain.RoomStatusClosed)).
		Delete(&domain.RoomModel{})
	if result.Error != nil {
		log.Ctx(ctx).Error().Err(result.Error).Str(log.FieldRoomID, id).Msg("failed to purge room row")
	}
	return result.Error
}
