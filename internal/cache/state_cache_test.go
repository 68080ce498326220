package cache

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shilo-maker/solupresenter-sub012/internal/domain"
)

func intPtr(v int) *int { return &v }

func strPtr(v string) *string { return &v }

func TestStateCache_PutCreatesEntry(t *testing.T) {
	c := NewStateCache()

	slide := &domain.SlideState{SongID: "song-1", SlideIndex: intPtr(0)}
	merged := c.Put("room-1", Delta{Slide: slide})

	require.NotNil(t, merged.Slide)
	assert.Equal(t, "song-1", merged.Slide.SongID)
	assert.Equal(t, 0, *merged.Slide.SlideIndex)
	assert.Equal(t, 1, c.Len())
}

func TestStateCache_FieldGroupReplace(t *testing.T) {
	c := NewStateCache()

	c.Put("room-1", Delta{Slide: &domain.SlideState{SongID: "song-1", SlideIndex: intPtr(2), DisplayMode: "lyrics"}})
	// A later slide delta replaces the whole slide group, it does not merge
	// into the previous slide.
	merged := c.Put("room-1", Delta{Slide: &domain.SlideState{IsBlank: true}})

	require.NotNil(t, merged.Slide)
	assert.True(t, merged.Slide.IsBlank)
	assert.Empty(t, merged.Slide.SongID)
	assert.Nil(t, merged.Slide.SlideIndex)
}

func TestStateCache_UnrelatedGroupsSurvive(t *testing.T) {
	c := NewStateCache()

	c.Put("room-1", Delta{Slide: &domain.SlideState{SongID: "song-1"}})
	c.Put("room-1", Delta{BackgroundImage: strPtr("bg.jpg")})
	merged := c.Put("room-1", Delta{Theme: &domain.Theme{ID: "t1", Name: "dark"}, ThemeSet: true})

	require.NotNil(t, merged.Slide)
	assert.Equal(t, "song-1", merged.Slide.SongID)
	assert.Equal(t, "bg.jpg", merged.BackgroundImage)
	require.NotNil(t, merged.Theme)
	assert.Equal(t, "dark", merged.Theme.Name)
}

func TestStateCache_ThemeClear(t *testing.T) {
	c := NewStateCache()

	c.Put("room-1", Delta{Theme: &domain.Theme{ID: "t1"}, ThemeSet: true})
	merged := c.Put("room-1", Delta{Theme: nil, ThemeSet: true})

	assert.Nil(t, merged.Theme)

	// Without ThemeSet a nil theme leaves the group alone.
	c.Put("room-1", Delta{Theme: &domain.Theme{ID: "t2"}, ThemeSet: true})
	merged = c.Put("room-1", Delta{BackgroundImage: strPtr("x.jpg")})
	require.NotNil(t, merged.Theme)
	assert.Equal(t, "t2", merged.Theme.ID)
}

func TestStateCache_GetAndEvict(t *testing.T) {
	c := NewStateCache()

	_, ok := c.Get("room-1")
	assert.False(t, ok)

	c.Put("room-1", Delta{ToolsData: json.RawMessage(`{"pointer":true}`), ToolsSet: true})
	entry, ok := c.Get("room-1")
	require.True(t, ok)
	assert.JSONEq(t, `{"pointer":true}`, string(entry.ToolsData))

	c.Evict("room-1")
	_, ok = c.Get("room-1")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())
}

func TestStateCache_PutReturnsCopy(t *testing.T) {
	c := NewStateCache()

	slide := &domain.SlideState{SongID: "song-1"}
	merged := c.Put("room-1", Delta{Slide: slide})

	// Mutating the caller's slide must not reach the cached entry.
	slide.SongID = "mutated"
	entry, ok := c.Get("room-1")
	require.True(t, ok)
	assert.Equal(t, "song-1", entry.Slide.SongID)
	assert.Equal(t, "song-1", merged.Slide.SongID)
}

func TestStateCache_SeedInstallsOnlyWhenAbsent(t *testing.T) {
	c := NewStateCache()

	entry := c.Seed("room-1", Delta{Slide: &domain.SlideState{SongID: "song-1"}})
	require.NotNil(t, entry.Slide)
	assert.Equal(t, "song-1", entry.Slide.SongID)
	assert.Equal(t, 1, c.Len())
}

func TestStateCache_SeedDoesNotClobberFresherPut(t *testing.T) {
	c := NewStateCache()

	// A dispatch landed between the caller's miss and its cold read of the
	// durable row. The stale seed must lose, even where its Set flags would
	// make a Put a total overwrite.
	c.Put("room-1", Delta{
		Slide:    &domain.SlideState{SongID: "song-2", SlideIndex: intPtr(5)},
		Theme:    &domain.Theme{ID: "t1", Name: "dark"},
		ThemeSet: true,
	})

	stale := &domain.Room{ID: "room-1", CurrentSlide: &domain.SlideState{SongID: "song-1"}}
	entry := c.Seed("room-1", EntryFromRoom(stale, nil))

	require.NotNil(t, entry.Slide)
	assert.Equal(t, "song-2", entry.Slide.SongID)
	assert.Equal(t, 5, *entry.Slide.SlideIndex)
	require.NotNil(t, entry.Theme)
	assert.Equal(t, "dark", entry.Theme.Name)

	cached, ok := c.Get("room-1")
	require.True(t, ok)
	assert.Equal(t, "song-2", cached.Slide.SongID)
}

func TestEntryFromRoom(t *testing.T) {
	room := &domain.Room{
		ID:              "room-1",
		CurrentSlide:    &domain.SlideState{SongID: "song-9", SlideIndex: intPtr(3)},
		BackgroundImage: "stage.jpg",
		ToolsData:       json.RawMessage(`{"timer":120}`),
	}
	theme := &domain.Theme{ID: "t1", Name: "light"}

	c := NewStateCache()
	entry := c.Put(room.ID, EntryFromRoom(room, theme))

	require.NotNil(t, entry.Slide)
	assert.Equal(t, "song-9", entry.Slide.SongID)
	assert.Equal(t, "stage.jpg", entry.BackgroundImage)
	assert.JSONEq(t, `{"timer":120}`, string(entry.ToolsData))
	require.NotNil(t, entry.Theme)
	assert.Equal(t, "light", entry.Theme.Name)
}

func TestEntryFromRoom_EmptyRoom(t *testing.T) {
	room := &domain.Room{ID: "room-1"}

	c := NewStateCache()
	entry := c.Put(room.ID, EntryFromRoom(room, nil))

	assert.Nil(t, entry.Slide)
	assert.Nil(t, entry.Theme)
	assert.Empty(t, entry.BackgroundImage)
	assert.Empty(t, entry.ToolsData)
}
