package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/shilo-maker/solupresenter-sub012/internal/audit"
	"github.com/shilo-maker/solupresenter-sub012/internal/cache"
	"github.com/shilo-maker/solupresenter-sub012/internal/dispatch"
	"github.com/shilo-maker/solupresenter-sub012/internal/domain"
	"github.com/shilo-maker/solupresenter-sub012/internal/hub"
	"github.com/shilo-maker/solupresenter-sub012/internal/lifecycle"
	"github.com/shilo-maker/solupresenter-sub012/internal/presence"
	"github.com/shilo-maker/solupresenter-sub012/internal/repository"
	"github.com/shilo-maker/solupresenter-sub012/internal/task"
	"github.com/shilo-maker/solupresenter-sub012/pkg/database"
	"github.com/shilo-maker/solupresenter-sub012/pkg/log"
)

type syncService struct {
	repo     repository.RoomRepository
	themes   repository.ThemeRepository
	hub      *hub.Hub
	cache    *cache.StateCache
	ledger   presence.Ledger
	disp     *dispatch.Dispatcher
	exec     task.Executor
	guard    *lifecycle.Guard
	pins     CodeAllocator
	capacity int
	window   time.Duration

	seed singleflight.Group
}

// NewSyncService wires the engine components together.
func NewSyncService(
	repo repository.RoomRepository,
	themes repository.ThemeRepository,
	h *hub.Hub,
	stateCache *cache.StateCache,
	ledger presence.Ledger,
	disp *dispatch.Dispatcher,
	exec task.Executor,
	guard *lifecycle.Guard,
	pins CodeAllocator,
	capacity int,
	window time.Duration,
) SyncService {
	return &syncService{
		repo:     repo,
		themes:   themes,
		hub:      h,
		cache:    stateCache,
		ledger:   ledger,
		disp:     disp,
		exec:     exec,
		guard:    guard,
		pins:     pins,
		capacity: capacity,
		window:   window,
	}
}

// send delivers an event to a single connection.
func send(c hub.Conn, evt domain.Event) {
	data, err := json.Marshal(evt)
	if err != nil {
		log.L().Warn().Err(err).Str(log.FieldEvent, evt.Type).Msg("failed to marshal reply")
		return
	}
	c.Enqueue(data)
}

func sendErr(c hub.Conn, code, message string) {
	send(c, domain.NewErrorEvent(code, message))
}

// HandleOperatorJoin binds the connection as the room's operator. With no
// room id the operator's active room is reused, or a fresh one is opened
// with a newly allocated PIN.
func (s *syncService) HandleOperatorJoin(ctx context.Context, c hub.Conn, p domain.OperatorJoinPayload) error {
	if p.UserID == "" {
		sendErr(c, domain.ErrCodeBadRequest, "missing userId")
		return ErrValidation
	}

	var (
		room *domain.Room
		err  error
	)
	if p.RoomID != "" {
		room, err = s.repo.GetByID(ctx, p.RoomID)
		if err != nil {
			sendErr(c, domain.ErrCodeRoomNotFound, "room not found")
			return ErrRoomNotFound
		}
		if room.Status != domain.RoomStatusActive {
			sendErr(c, domain.ErrCodeRoomNotFound, "room is closed")
			return ErrRoomNotFound
		}
	} else {
		room, err = s.repo.GetActiveByOwner(ctx, p.UserID)
		if errors.Is(err, repository.ErrRoomNotFound) {
			room, err = s.openRoom(ctx, p.UserID)
		}
		if err != nil {
			sendErr(c, domain.ErrCodeInternalError, "could not open room")
			return err
		}
	}

	s.hub.BindOperator(c, room.ID, p.UserID)
	s.guard.Touch(room.ID)

	send(c, domain.Event{
		Type: domain.EventOperatorJoined,
		Payload: domain.OperatorJoinedPayload{
			RoomID:         room.ID,
			RoomPIN:        room.PIN,
			QuickSlideText: room.QuickSlideText,
		},
	})
	return nil
}

func (s *syncService) openRoom(ctx context.Context, ownerID string) (*domain.Room, error) {
	pin, err := s.pins.Allocate(ctx)
	if err != nil {
		return nil, fmt.Errorf("allocate pin: %w", err)
	}

	now := time.Now()
	room := &domain.Room{
		PIN:          pin,
		OwnerID:      ownerID,
		LastActiveAt: now,
		ExpiresAt:    now.Add(s.window),
	}
	if err := s.repo.Create(ctx, room); err != nil {
		return nil, err
	}
	audit.Log(ctx, audit.ActionOpenRoom, room.ID, ownerID, "room opened")
	return room, nil
}

// HandleUpdateSlide merges the slide payload into the cache, fans it out,
// and schedules the durable write off the critical path.
func (s *syncService) HandleUpdateSlide(ctx context.Context, c hub.Conn, p domain.UpdateSlidePayload) error {
	roomID, err := s.resolveRoom(ctx, c, p.RoomID, p.RoomPIN)
	if err != nil {
		s.replyResolveErr(c, err)
		return err
	}

	slide := &domain.SlideState{
		SongID:      p.SongID,
		SlideIndex:  p.SlideIndex,
		DisplayMode: p.DisplayMode,
		IsBlank:     p.IsBlank,
		ImageURL:    p.ImageURL,
		SlideData:   p.SlideData,
	}

	delta := cache.Delta{Slide: slide}
	if len(p.ToolsData) > 0 {
		delta.ToolsData = p.ToolsData
		delta.ToolsSet = true
	}
	merged := s.cache.Put(roomID, delta)

	payload := domain.SlideUpdatePayload{SlideState: *slide, ToolsData: merged.ToolsData}
	s.disp.DispatchAndPersist(roomID, domain.EventSlideUpdate, payload, func(taskCtx context.Context) error {
		fields := map[string]interface{}{}
		if data, err := json.Marshal(slide); err == nil {
			fields["current_slide"] = database.JSON(data)
		}
		if delta.ToolsSet {
			fields["tools_data"] = database.JSON(p.ToolsData)
		}
		err := s.repo.UpdateState(taskCtx, roomID, fields)
		if errors.Is(err, repository.ErrRoomNotFound) {
			return nil
		}
		return err
	})

	s.guard.Touch(roomID)
	return nil
}

// HandleUpdateBackground writes the room row synchronously (background
// changes are rare and tolerate the latency) and then broadcasts.
func (s *syncService) HandleUpdateBackground(ctx context.Context, c hub.Conn, p domain.UpdateBackgroundPayload) error {
	roomID, err := s.resolveRoom(ctx, c, p.RoomID, "")
	if err != nil {
		s.replyResolveErr(c, err)
		return err
	}

	if err := s.repo.UpdateState(ctx, roomID, map[string]interface{}{
		"background_image": p.BackgroundImage,
	}); err != nil {
		if errors.Is(err, repository.ErrRoomNotFound) {
			sendErr(c, domain.ErrCodeRoomNotFound, "room not found")
			return ErrRoomNotFound
		}
		sendErr(c, domain.ErrCodeInternalError, "could not update background")
		return err
	}

	bg := p.BackgroundImage
	s.cache.Put(roomID, cache.Delta{BackgroundImage: &bg})
	s.disp.Dispatch(roomID, domain.EventBackgroundUpdate, domain.BackgroundUpdatePayload{
		BackgroundImage: p.BackgroundImage,
	})
	s.guard.Touch(roomID)
	return nil
}

// HandleApplyTheme resolves the theme, updates the cache and broadcasts. A
// null theme id clears the theme. An unknown theme changes nothing.
func (s *syncService) HandleApplyTheme(ctx context.Context, c hub.Conn, p domain.ApplyThemePayload) error {
	roomID, err := s.resolveRoom(ctx, c, p.RoomID, "")
	if err != nil {
		s.replyResolveErr(c, err)
		return err
	}

	var theme *domain.Theme
	themeID := ""
	if p.ThemeID != nil && *p.ThemeID != "" {
		theme, err = s.themes.GetByID(ctx, *p.ThemeID)
		if err != nil {
			if errors.Is(err, repository.ErrThemeNotFound) {
				sendErr(c, domain.ErrCodeThemeNotFound, "theme not found")
				return ErrThemeNotFound
			}
			sendErr(c, domain.ErrCodeInternalError, "could not resolve theme")
			return err
		}
		themeID = theme.ID
	}

	s.cache.Put(roomID, cache.Delta{Theme: theme, ThemeSet: true})

	s.disp.DispatchAndPersist(roomID, domain.EventThemeUpdate, domain.ThemeUpdatePayload{Theme: theme}, func(taskCtx context.Context) error {
		err := s.repo.UpdateState(taskCtx, roomID, map[string]interface{}{"theme_id": themeID})
		if errors.Is(err, repository.ErrRoomNotFound) {
			return nil
		}
		return err
	})

	s.guard.Touch(roomID)
	return nil
}

// HandleUpdateQuickSlide is a durable-only update: no broadcast.
func (s *syncService) HandleUpdateQuickSlide(ctx context.Context, c hub.Conn, p domain.UpdateQuickSlidePayload) error {
	roomID, err := s.resolveRoom(ctx, c, p.RoomID, "")
	if err != nil {
		s.replyResolveErr(c, err)
		return err
	}

	if err := s.repo.UpdateState(ctx, roomID, map[string]interface{}{
		"quick_slide_text": p.QuickSlideText,
	}); err != nil {
		if errors.Is(err, repository.ErrRoomNotFound) {
			sendErr(c, domain.ErrCodeRoomNotFound, "room not found")
			return ErrRoomNotFound
		}
		sendErr(c, domain.ErrCodeInternalError, "could not update quick slide")
		return err
	}

	s.guard.Touch(roomID)
	return nil
}

// HandleCloseRoom explicitly ends a room: every member receives room:closed
// before bindings are cleared, then the row and all ephemeral state go away.
func (s *syncService) HandleCloseRoom(ctx context.Context, c hub.Conn, p domain.CloseRoomPayload) error {
	roomID, err := s.resolveRoom(ctx, c, p.RoomID, "")
	if err != nil {
		s.replyResolveErr(c, err)
		return err
	}

	if err := s.repo.Close(ctx, roomID); err != nil {
		if errors.Is(err, repository.ErrRoomNotFound) {
			sendErr(c, domain.ErrCodeRoomNotFound, "room not found")
			return ErrRoomNotFound
		}
		sendErr(c, domain.ErrCodeInternalError, "could not close room")
		return err
	}

	s.disp.Dispatch(roomID, domain.EventRoomClosed, domain.RoomClosedPayload{
		Message: "room closed by operator",
	})
	s.hub.DropRoom(roomID)
	s.cache.Evict(roomID)
	if err := s.ledger.Reset(ctx, roomID); err != nil {
		log.Ctx(ctx).Debug().Err(err).Str(log.FieldRoomID, roomID).Msg("failed to reset presence on close")
	}
	s.exec.Submit("room:purge", func(taskCtx context.Context) error {
		return s.repo.Purge(taskCtx, roomID)
	})

	audit.Log(ctx, audit.ActionCloseRoom, roomID, "", "room closed by operator")
	return nil
}

// HandleViewerJoin enforces capacity, answers the joiner from the cache
// (cold-reading the room row at most once per room under concurrency), and
// broadcasts the post-increment viewer count.
func (s *syncService) HandleViewerJoin(ctx context.Context, c hub.Conn, p domain.ViewerJoinPayload) error {
	if p.PIN == "" && p.Slug == "" {
		sendErr(c, domain.ErrCodeBadRequest, "missing pin or slug")
		return ErrValidation
	}

	now := time.Now()
	var (
		room *domain.Room
		err  error
	)
	if p.PIN != "" {
		room, err = s.repo.GetActiveByPIN(ctx, p.PIN, now)
	} else {
		room, err = s.repo.GetActiveBySlug(ctx, p.Slug, now)
	}
	if err != nil {
		if errors.Is(err, repository.ErrRoomNotFound) {
			sendErr(c, domain.ErrCodeRoomNotFound, "room not found")
			return ErrRoomNotFound
		}
		sendErr(c, domain.ErrCodeInternalError, "could not resolve room")
		return err
	}

	// A connection already counted somewhere must be released first, or a
	// re-join (same room or a switch) inflates the old room's count forever.
	if prev, role, ok := s.hub.RoomOf(c.ID()); ok && role == hub.RoleViewer {
		s.hub.Unbind(c)
		s.leaveRoom(ctx, prev)
	}

	count, err := s.ledger.Join(ctx, room.ID, s.capacity)
	if err != nil {
		if errors.Is(err, presence.ErrCapacityExceeded) {
			sendErr(c, domain.ErrCodeCapacityExceeded, "room is full")
			return ErrRoomFull
		}
		sendErr(c, domain.ErrCodeInternalError, "could not join room")
		return err
	}

	s.hub.Bind(c, hub.RoleViewer, room.ID)

	entry := s.snapshot(ctx, room)
	joined := domain.ViewerJoinedPayload{
		RoomPIN:         room.PIN,
		CurrentSlide:    entry.Slide,
		BackgroundImage: entry.BackgroundImage,
		ToolsData:       entry.ToolsData,
		Theme:           entry.Theme,
	}
	if entry.Slide != nil {
		joined.SlideData = entry.Slide.SlideData
		joined.IsBlank = entry.Slide.IsBlank
	}
	send(c, domain.Event{Type: domain.EventViewerJoined, Payload: joined})

	s.disp.Dispatch(room.ID, domain.EventViewerCount, domain.ViewerCountPayload{Count: count})
	s.mirrorCount(room.ID, count)
	return nil
}

// snapshot returns the room's broadcastable state, seeding the cache from
// the durable row on a miss. Concurrent cold reads of the same room are
// collapsed into one.
func (s *syncService) snapshot(ctx context.Context, room *domain.Room) cache.Entry {
	if entry, ok := s.cache.Get(room.ID); ok {
		return entry
	}

	v, _, _ := s.seed.Do(room.ID, func() (interface{}, error) {
		if entry, ok := s.cache.Get(room.ID); ok {
			return entry, nil
		}
		var theme *domain.Theme
		if room.ThemeID != "" {
			t, err := s.themes.GetByID(ctx, room.ThemeID)
			if err == nil {
				theme = t
			} else if !errors.Is(err, repository.ErrThemeNotFound) {
				log.Ctx(ctx).Warn().Err(err).Str(log.FieldRoomID, room.ID).Msg("cold read could not resolve theme")
			}
		}
		return s.cache.Seed(room.ID, cache.EntryFromRoom(room, theme)), nil
	})
	return v.(cache.Entry)
}

// HandleDisconnect runs the same path as an explicit leave. If the room was
// deactivated concurrently the leave is a silent no-op.
func (s *syncService) HandleDisconnect(ctx context.Context, c hub.Conn) {
	roomID, role, ok := s.hub.Unbind(c)
	if !ok || role != hub.RoleViewer {
		return
	}
	s.leaveRoom(ctx, roomID)
}

// leaveRoom decrements the room's presence and broadcasts the new count. The
// caller has already removed the connection's binding.
func (s *syncService) leaveRoom(ctx context.Context, roomID string) {
	room, err := s.repo.GetByID(ctx, roomID)
	if err != nil || room.Status != domain.RoomStatusActive {
		return
	}

	count, err := s.ledger.Leave(ctx, roomID)
	if err != nil {
		log.Ctx(ctx).Debug().Err(err).Str(log.FieldRoomID, roomID).Msg("presence decrement failed")
		return
	}

	s.disp.Dispatch(roomID, domain.EventViewerCount, domain.ViewerCountPayload{Count: count})
	s.mirrorCount(roomID, count)
}

// RoomByPIN is the REST lookup used by clients before opening a socket.
func (s *syncService) RoomByPIN(ctx context.Context, pin string) (*domain.RoomResponse, error) {
	room, err := s.repo.GetActiveByPIN(ctx, pin, time.Now())
	if err != nil {
		if errors.Is(err, repository.ErrRoomNotFound) {
			return nil, ErrRoomNotFound
		}
		return nil, err
	}
	resp := room.ToResponse()
	return &resp, nil
}

// mirrorCount writes the best-effort durable mirror of the viewer count.
func (s *syncService) mirrorCount(roomID string, count int) {
	s.exec.Submit("room:viewer_count", func(taskCtx context.Context) error {
		return s.repo.SetViewerCount(taskCtx, roomID, count)
	})
}

// resolveRoom authorizes an operator command. The connection must already be
// bound as the operator of the target room; an explicit room id or pin only
// disambiguates, it never grants access to somebody else's room.
func (s *syncService) resolveRoom(ctx context.Context, c hub.Conn, roomID, roomPIN string) (string, error) {
	bound, role, ok := s.hub.RoomOf(c.ID())
	if !ok || role != hub.RoleOperator {
		return "", ErrNotOperator
	}
	if roomID != "" && roomID != bound {
		return "", ErrRoomNotFound
	}
	if roomPIN != "" {
		room, err := s.repo.GetActiveByPIN(ctx, roomPIN, time.Now())
		if err != nil || room.ID != bound {
			return "", ErrRoomNotFound
		}
	}
	return bound, nil
}

func (s *syncService) replyResolveErr(c hub.Conn, err error) {
	switch {
	case errors.Is(err, ErrNotOperator):
		sendErr(c, domain.ErrCodeBadRequest, "not the room operator")
	case errors.Is(err, ErrValidation):
		sendErr(c, domain.ErrCodeBadRequest, "missing room reference")
	case errors.Is(err, ErrRoomNotFound):
		sendErr(c, domain.ErrCodeRoomNotFound, "room not found")
	default:
		sendErr(c, domain.ErrCodeInternalError, "could not resolve room")
	}
}
