package lifecycle

import (
	"context"
	"errors"
	"time"

	"github.com/shilo-maker/solupresenter-sub012/internal/audit"
	"github.com/shilo-maker/solupresenter-sub012/internal/cache"
	"github.com/shilo-maker/solupresenter-sub012/internal/dispatch"
	"github.com/shilo-maker/solupresenter-sub012/internal/domain"
	"github.com/shilo-maker/solupresenter-sub012/internal/hub"
	"github.com/shilo-maker/solupresenter-sub012/internal/presence"
	"github.com/shilo-maker/solupresenter-sub012/internal/repository"
	"github.com/shilo-maker/solupresenter-sub012/internal/task"
	"github.com/shilo-maker/solupresenter-sub012/pkg/log"
)

const expiredSweepBatch = 200

// Guard enforces room expiry and evicts stale cache and registry entries.
// Rooms carry a rolling TTL: every operator-originated change extends the
// window via Touch.
type Guard struct {
	repo   repository.RoomRepository
	cache  *cache.StateCache
	ledger presence.Ledger
	disp   *dispatch.Dispatcher
	hub    *hub.Hub
	exec   task.Executor

	window      time.Duration
	expiryEvery time.Duration
	orphanEvery time.Duration
}

// NewGuard creates a lifecycle guard.
func NewGuard(
	repo repository.RoomRepository,
	stateCache *cache.StateCache,
	ledger presence.Ledger,
	disp *dispatch.Dispatcher,
	h *hub.Hub,
	exec task.Executor,
	window, expiryEvery, orphanEvery time.Duration,
) *Guard {
	return &Guard{
		repo:        repo,
		cache:       stateCache,
		ledger:      ledger,
		disp:        disp,
		hub:         h,
		exec:        exec,
		window:      window,
		expiryEvery: expiryEvery,
		orphanEvery: orphanEvery,
	}
}

// Touch extends the room's expiry window from now. Called on every
// operator-originated state change; runs detached so it never adds latency
// to the broadcast path.
func (g *Guard) Touch(roomID string) {
	g.exec.Submit("room:touch", func(ctx context.Context) error {
		now := time.Now()
		err := g.repo.Touch(ctx, roomID, now, now.Add(g.window))
		if errors.Is(err, repository.ErrRoomNotFound) {
			return nil
		}
		return err
	})
}

// Run starts the recurring sweeps and blocks until the context is done.
func (g *Guard) Run(ctx context.Context) {
	expiry := time.NewTicker(g.expiryEvery)
	orphan := time.NewTicker(g.orphanEvery)
	defer expiry.Stop()
	defer orphan.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-expiry.C:
			g.SweepExpired(ctx)
		case <-orphan.C:
			g.SweepOrphans(ctx)
		}
	}
}

// SweepExpired deactivates rooms whose expiry has passed, notifies their
// members, and removes every linked ephemeral resource. Returns how many
// rooms were expired.
func (g *Guard) SweepExpired(ctx context.Context) int {
	rooms, err := g.repo.ListExpired(ctx, time.Now(), expiredSweepBatch)
	if err != nil {
		log.Ctx(ctx).Warn().Err(err).Msg("expiry sweep failed to list rooms")
		return 0
	}

	for _, room := range rooms {
		g.disp.Dispatch(room.ID, domain.EventRoomClosed, domain.RoomClosedPayload{
			Message: "room expired",
		})
		g.hub.DropRoom(room.ID)

		if err := g.repo.Close(ctx, room.ID); err != nil && !errors.Is(err, repository.ErrRoomNotFound) {
			log.Ctx(ctx).Warn().Err(err).Str(log.FieldRoomID, room.ID).Msg("expiry sweep failed to close room")
			continue
		}
		g.cache.Evict(room.ID)
		if err := g.ledger.Reset(ctx, room.ID); err != nil {
			log.Ctx(ctx).Debug().Err(err).Str(log.FieldRoomID, room.ID).Msg("expiry sweep failed to reset presence")
		}
		if err := g.repo.Purge(ctx, room.ID); err != nil {
			log.Ctx(ctx).Debug().Err(err).Str(log.FieldRoomID, room.ID).Msg("expiry sweep failed to purge room row")
		}

		audit.Log(ctx, audit.ActionExpireRoom, room.ID, room.OwnerID, "room expired")
	}
	return len(rooms)
}

// SweepOrphans drops cache and presence entries whose room row is gone or
// closed, covering rooms deactivated by explicit operator action. Returns
// how many entries were evicted.
func (g *Guard) SweepOrphans(ctx context.Context) int {
	evicted := 0
	for _, roomID := range g.cache.Keys() {
		room, err := g.repo.GetByID(ctx, roomID)
		switch {
		case errors.Is(err, repository.ErrRoomNotFound):
			// fallthrough to evict
		case err != nil:
			continue
		case room.Status == domain.RoomStatusActive:
			continue
		}
		g.cache.Evict(roomID)
		if err := g.ledger.Reset(ctx, roomID); err != nil {
			log.Ctx(ctx).Debug().Err(err).Str(log.FieldRoomID, roomID).Msg("orphan sweep failed to reset presence")
		}
		evicted++
	}
	return evicted
}
