package repository

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/shilo-maker/solupresenter-sub012/internal/domain"
	"github.com/shilo-maker/solupresenter-sub012/pkg/database"
)

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&domain.RoomModel{}, &domain.ThemeModel{}))
	return db
}

func activeRoom(pin string) *domain.Room {
	now := time.Now()
	return &domain.Room{
		PIN:          pin,
		OwnerID:      "user-1",
		LastActiveAt: now,
		ExpiresAt:    now.Add(4 * time.Hour),
	}
}

func TestGormRoomRepository_CreateAndGet(t *testing.T) {
	repo := NewGormRoomRepository(testDB(t))
	ctx := context.Background()

	room := activeRoom("SOCK")
	room.CurrentSlide = &domain.SlideState{SongID: "song-1"}
	room.ToolsData = json.RawMessage(`{"pointer":true}`)
	require.NoError(t, repo.Create(ctx, room))
	require.NotEmpty(t, room.ID)

	got, err := repo.GetByID(ctx, room.ID)
	require.NoError(t, err)
	assert.Equal(t, "SOCK", got.PIN)
	assert.Equal(t, domain.RoomStatusActive, got.Status)
	require.NotNil(t, got.CurrentSlide)
	assert.Equal(t, "song-1", got.CurrentSlide.SongID)
	assert.JSONEq(t, `{"pointer":true}`, string(got.ToolsData))
}

func TestGormRoomRepository_GetByIDNotFound(t *testing.T) {
	repo := NewGormRoomRepository(testDB(t))

	_, err := repo.GetByID(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrRoomNotFound)
}

func TestGormRoomRepository_GetActiveByPIN(t *testing.T) {
	repo := NewGormRoomRepository(testDB(t))
	ctx := context.Background()
	now := time.Now()

	room := activeRoom("SOCK")
	require.NoError(t, repo.Create(ctx, room))

	got, err := repo.GetActiveByPIN(ctx, "SOCK", now)
	require.NoError(t, err)
	assert.Equal(t, room.ID, got.ID)

	// Past the expiry timestamp the room no longer resolves.
	_, err = repo.GetActiveByPIN(ctx, "SOCK", now.Add(5*time.Hour))
	assert.ErrorIs(t, err, ErrRoomNotFound)

	// Closed rooms no longer resolve either.
	require.NoError(t, repo.Close(ctx, room.ID))
	_, err = repo.GetActiveByPIN(ctx, "SOCK", now)
	assert.ErrorIs(t, err, ErrRoomNotFound)
}

func TestGormRoomRepository_GetActiveBySlug(t *testing.T) {
	repo := NewGormRoomRepository(testDB(t))
	ctx := context.Background()

	room := activeRoom("SOCK")
	room.Slug = "sunday-service"
	require.NoError(t, repo.Create(ctx, room))

	got, err := repo.GetActiveBySlug(ctx, "sunday-service", time.Now())
	require.NoError(t, err)
	assert.Equal(t, room.ID, got.ID)

	_, err = repo.GetActiveBySlug(ctx, "unknown", time.Now())
	assert.ErrorIs(t, err, ErrRoomNotFound)
}

func TestGormRoomRepository_GetActiveByOwner(t *testing.T) {
	repo := NewGormRoomRepository(testDB(t))
	ctx := context.Background()

	room := activeRoom("SOCK")
	require.NoError(t, repo.Create(ctx, room))

	got, err := repo.GetActiveByOwner(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, room.ID, got.ID)

	require.NoError(t, repo.Close(ctx, room.ID))
	_, err = repo.GetActiveByOwner(ctx, "user-1")
	assert.ErrorIs(t, err, ErrRoomNotFound)
}

func TestGormRoomRepository_PINLifecycle(t *testing.T) {
	repo := NewGormRoomRepository(testDB(t))
	ctx := context.Background()

	room := activeRoom("SOCK")
	require.NoError(t, repo.Create(ctx, room))

	inUse, err := repo.PINInUse(ctx, "SOCK")
	require.NoError(t, err)
	assert.True(t, inUse)

	// Closing alone keeps the code reserved; purging frees it.
	require.NoError(t, repo.Close(ctx, room.ID))
	inUse, err = repo.PINInUse(ctx, "SOCK")
	require.NoError(t, err)
	assert.True(t, inUse)

	require.NoError(t, repo.Purge(ctx, room.ID))
	inUse, err = repo.PINInUse(ctx, "SOCK")
	require.NoError(t, err)
	assert.False(t, inUse)
}

func TestGormRoomRepository_UpdateState(t *testing.T) {
	repo := NewGormRoomRepository(testDB(t))
	ctx := context.Background()

	room := activeRoom("SOCK")
	require.NoError(t, repo.Create(ctx, room))

	slide, err := json.Marshal(&domain.SlideState{SongID: "song-2", IsBlank: true})
	require.NoError(t, err)
	require.NoError(t, repo.UpdateState(ctx, room.ID, map[string]interface{}{
		"current_slide":    database.JSON(slide),
		"background_image": "stage.jpg",
	}))

	got, err := repo.GetByID(ctx, room.ID)
	require.NoError(t, err)
	require.NotNil(t, got.CurrentSlide)
	assert.Equal(t, "song-2", got.CurrentSlide.SongID)
	assert.True(t, got.CurrentSlide.IsBlank)
	assert.Equal(t, "stage.jpg", got.BackgroundImage)

	err = repo.UpdateState(ctx, "missing", map[string]interface{}{"background_image": "x"})
	assert.ErrorIs(t, err, ErrRoomNotFound)
}

func TestGormRoomRepository_Touch(t *testing.T) {
	repo := NewGormRoomRepository(testDB(t))
	ctx := context.Background()

	room := activeRoom("SOCK")
	require.NoError(t, repo.Create(ctx, room))

	later := time.Now().Add(6 * time.Hour)
	require.NoError(t, repo.Touch(ctx, room.ID, time.Now(), later))

	got, err := repo.GetByID(ctx, room.ID)
	require.NoError(t, err)
	assert.WithinDuration(t, later, got.ExpiresAt, time.Second)

	// A closed room is not touchable.
	require.NoError(t, repo.Close(ctx, room.ID))
	err = repo.Touch(ctx, room.ID, time.Now(), later)
	assert.ErrorIs(t, err, ErrRoomNotFound)
}

func TestGormRoomRepository_SetViewerCount(t *testing.T) {
	repo := NewGormRoomRepository(testDB(t))
	ctx := context.Background()

	room := activeRoom("SOCK")
	require.NoError(t, repo.Create(ctx, room))

	require.NoError(t, repo.SetViewerCount(ctx, room.ID, 7))
	got, err := repo.GetByID(ctx, room.ID)
	require.NoError(t, err)
	assert.Equal(t, 7, got.ViewerCount)

	// Negative mirrors clamp to zero.
	require.NoError(t, repo.SetViewerCount(ctx, room.ID, -2))
	got, err = repo.GetByID(ctx, room.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.ViewerCount)
}

func TestGormRoomRepository_CloseIsIdempotentPerRow(t *testing.T) {
	repo := NewGormRoomRepository(testDB(t))
	ctx := context.Background()

	room := activeRoom("SOCK")
	require.NoError(t, repo.Create(ctx, room))

	require.NoError(t, repo.Close(ctx, room.ID))
	got, err := repo.GetByID(ctx, room.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RoomStatusClosed, got.Status)
	assert.NotNil(t, got.ClosedAt)

	// A second close finds no active row.
	err = repo.Close(ctx, room.ID)
	assert.ErrorIs(t, err, ErrRoomNotFound)
}

func TestGormRoomRepository_ListExpired(t *testing.T) {
	repo := NewGormRoomRepository(testDB(t))
	ctx := context.Background()
	now := time.Now()

	expired := activeRoom("AAAA")
	expired.ExpiresAt = now.Add(-time.Minute)
	live := activeRoom("BBBB")
	require.NoError(t, repo.Create(ctx, expired))
	require.NoError(t, repo.Create(ctx, live))

	rooms, err := repo.ListExpired(ctx, now, 100)
	require.NoError(t, err)
	require.Len(t, rooms, 1)
	assert.Equal(t, expired.ID, rooms[0].ID)
}

func TestGormRoomRepository_PurgeRequiresClosed(t *testing.T) {
	repo := NewGormRoomRepository(testDB(t))
	ctx := context.Background()

	room := activeRoom("SOCK")
	require.NoError(t, repo.Create(ctx, room))

	// Purging an active room is a no-op.
	require.NoError(t, repo.Purge(ctx, room.ID))
	_, err := repo.GetByID(ctx, room.ID)
	require.NoError(t, err)
}

func TestGormThemeRepository_GetByID(t *testing.T) {
	db := testDB(t)
	repo := NewGormThemeRepository(db)
	ctx := context.Background()

	model := &domain.ThemeModel{ID: "theme-1", Name: "dark", Style: database.JSON(`{"font":"serif"}`)}
	require.NoError(t, db.Create(model).Error)

	theme, err := repo.GetByID(ctx, "theme-1")
	require.NoError(t, err)
	assert.Equal(t, "dark", theme.Name)
	assert.JSONEq(t, `{"font":"serif"}`, string(theme.Style))

	_, err = repo.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, ErrThemeNotFound)
}
