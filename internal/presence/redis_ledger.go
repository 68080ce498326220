package presence

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/shilo-maker/solupresenter-sub012/internal/config"
	"github.com/shilo-maker/solupresenter-sub012/pkg/log"
)

// joinScript checks capacity and increments in a single atomic step.
// Returns -1 when the room is already at the ceiling.
var joinScript = redis.NewScript(`
local count = tonumber(redis.call('GET', KEYS[1]) or '0')
if count >= tonumber(ARGV[1]) then
  return -1
end
return redis.call('INCR', KEYS[1])
`)

// leaveScript decrements, clamped at zero.
var leaveScript = redis.NewScript(`
local count = redis.call('DECR', KEYS[1])
if count < 0 then
  redis.call('SET', KEYS[1], '0')
  return 0
end
return count
`)

// RedisLedger implements Ledger using Redis. It also publishes count updates
// on a pub/sub channel for external consumers (overlays, dashboards).
type RedisLedger struct {
	client  *redis.Client
	channel string
}

// NewRedisLedger creates a Redis-backed presence ledger.
func NewRedisLedger(cfg config.RedisConfig) (*RedisLedger, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	channel := cfg.PresenceChannel
	if channel == "" {
		channel = "presence:room_updates"
	}

	return &RedisLedger{client: client, channel: channel}, nil
}

func countKey(roomID string) string {
	return fmt.Sprintf("presence:room:%s:count", roomID)
}

// Join atomically checks capacity and increments the count.
func (l *RedisLedger) Join(ctx context.Context, roomID string, capacity int) (int, error) {
	res, err := joinScript.Run(ctx, l.client, []string{countKey(roomID)}, capacity).Int()
	if err != nil {
		return 0, fmt.Errorf("presence join: %w", err)
	}
	if res < 0 {
		return capacity, ErrCapacityExceeded
	}
	l.publish(ctx, roomID, res)
	return res, nil
}

// Leave atomically decrements the count, clamped at zero.
func (l *RedisLedger) Leave(ctx context.Context, roomID string) (int, error) {
	res, err := leaveScript.Run(ctx, l.client, []string{countKey(roomID)}).Int()
	if err != nil {
		return 0, fmt.Errorf("presence leave: %w", err)
	}
	l.publish(ctx, roomID, res)
	return res, nil
}

// Count returns the current count for a room.
func (l *RedisLedger) Count(ctx context.Context, roomID string) (int, error) {
	res, err := l.client.Get(ctx, countKey(roomID)).Int()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	if res < 0 {
		// A negative ledger is a bug signal; never surface it.
		log.L().Warn().Str(log.FieldRoomID, roomID).Int("count", res).Msg("negative presence count observed")
		return 0, nil
	}
	return res, nil
}

// Reset clears the room's count.
func (l *RedisLedger) Reset(ctx context.Context, roomID string) error {
	return l.client.Del(ctx, countKey(roomID)).Err()
}

// Close releases the redis client.
func (l *RedisLedger) Close() error {
	return l.client.Close()
}

type roomUpdatePayload struct {
	RoomID string `json:"room_id"`
	Count  int    `json:"count"`
}

// publish is fire-and-forget: a pub/sub failure never affects the join/leave
// that triggered it.
func (l *RedisLedger) publish(ctx context.Context, roomID string, count int) {
	data, err := json.Marshal(roomUpdatePayload{RoomID: roomID, Count: count})
	if err != nil {
		return
	}
	if err := l.client.Publish(ctx, l.channel, string(data)).Err(); err != nil {
		log.Ctx(ctx).Debug().Err(err).Str(log.FieldRoomID, roomID).Msg("presence publish failed")
	}
}
