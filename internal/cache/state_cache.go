package cache

import (
	"encoding/json"
	"sync"

	"github.com/shilo-maker/solupresenter-sub012/internal/domain"
)

// Entry is the in-memory, authoritative-for-broadcast copy of a room's
// current displayable state. It reflects the last successfully dispatched
// broadcast and may briefly lead the durable row.
type Entry struct {
	Slide           *domain.SlideState
	Theme           *domain.Theme
	ToolsData       json.RawMessage
	BackgroundImage string
}

// Delta is a partial state update. Merge semantics are field-group replace:
// a set field supplies the complete replacement for that group, never a deep
// merge of its contents.
type Delta struct {
	Slide           *domain.SlideState
	Theme           *domain.Theme
	ThemeSet        bool // replace the theme even when Theme is nil (clear)
	ToolsData       json.RawMessage
	ToolsSet        bool
	BackgroundImage *string
}

// StateCache holds the latest broadcastable state per room. It is an owned,
// injectable object so independent engine instances can run side by side.
type StateCache struct {
	mu    sync.RWMutex
	rooms map[string]*Entry
}

// NewStateCache creates an empty state cache.
func NewStateCache() *StateCache {
	return &StateCache{rooms: make(map[string]*Entry)}
}

// Put merges a delta into the room's entry, creating it if absent, and
// returns a copy of the fully merged entry.
func (c *StateCache) Put(roomID string, d Delta) Entry {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.rooms[roomID]
	if !ok {
		entry = &Entry{}
		c.rooms[roomID] = entry
	}
	merge(entry, d)
	return *entry
}

// Seed installs an entry only while the room has none, and returns whatever
// entry is in place afterwards. A concurrent Put always wins over a seed:
// cold reads from the durable row must never clobber a fresher dispatch.
func (c *StateCache) Seed(roomID string, d Delta) Entry {
	c.mu.Lock()
	defer c.mu.Unlock()

	if entry, ok := c.rooms[roomID]; ok {
		return *entry
	}
	entry := &Entry{}
	merge(entry, d)
	c.rooms[roomID] = entry
	return *entry
}

func merge(entry *Entry, d Delta) {
	if d.Slide != nil {
		slide := *d.Slide
		entry.Slide = &slide
	}
	if d.ThemeSet {
		entry.Theme = d.Theme
	}
	if d.ToolsSet {
		entry.ToolsData = d.ToolsData
	}
	if d.BackgroundImage != nil {
		entry.BackgroundImage = *d.BackgroundImage
	}
}

// Get returns the room's entry, or false when no entry exists.
func (c *StateCache) Get(roomID string) (Entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.rooms[roomID]
	if !ok {
		return Entry{}, false
	}
	return *entry, true
}

// Evict removes the room's entry.
func (c *StateCache) Evict(roomID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.rooms, roomID)
}

// Keys returns a snapshot of the room IDs currently cached.
func (c *StateCache) Keys() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	keys := make([]string, 0, len(c.rooms))
	for id := range c.rooms {
		keys = append(keys, id)
	}
	return keys
}

// Len returns the number of cached rooms.
func (c *StateCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.rooms)
}

// EntryFromRoom seeds a cache entry from the durable room row. Used on cold
// reads so the next joiner is served from memory.
func EntryFromRoom(room *domain.Room, theme *domain.Theme) Delta {
	d := Delta{
		Theme:    theme,
		ThemeSet: true,
		ToolsSet: true,
	}
	if room.CurrentSlide != nil {
		d.Slide = room.CurrentSlide
	}
	if len(room.ToolsData) > 0 {
		d.ToolsData = room.ToolsData
	}
	bg := room.BackgroundImage
	d.BackgroundImage = &bg
	return d
}
