package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/shilo-maker/solupresenter-sub012/internal/domain"
	"github.com/shilo-maker/solupresenter-sub012/pkg/log"
)

// GormThemeRepository implements ThemeRepository using GORM.
type GormThemeRepository struct {
	db *gorm.DB
}

// NewGormThemeRepository creates a new GORM-based theme repository.
func NewGormThemeRepository(db *gorm.DB) *GormThemeRepository {
	return &GormThemeRepository{db: db}
}

// GetByID retrieves a theme by ID.
func (r *GormThemeRepository) GetByID(ctx context.Context, id string) (*domain.Theme, error) {
	var model domain.ThemeModel
	result := r.db.WithContext(ctx).First(&model, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrThemeNotFound
		}
		log.Ctx(ctx).Error().Err(result.Error).Str("theme_id", id).Msg("failed to get theme by id")
		return nil, result.Error
	}
	return model.ToDomain(), nil
}
