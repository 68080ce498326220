package presence

import (
	"context"
	"errors"
)

// ErrCapacityExceeded is returned by Join when the room is at its ceiling.
var ErrCapacityExceeded = errors.New("room capacity exceeded")

// Ledger tracks the per-room viewer count. Increment and decrement are
// atomic against the backing store: the capacity check and the increment are
// one conditional operation, never a read-modify-write pair.
type Ledger interface {
	// Join increments the room's count unless it is already at capacity,
	// and returns the post-increment value.
	Join(ctx context.Context, roomID string, capacity int) (int, error)
	// Leave decrements the room's count, clamped at zero, and returns the
	// post-decrement value.
	Leave(ctx context.Context, roomID string) (int, error)
	// Count returns the current count.
	Count(ctx context.Context, roomID string) (int, error)
	// Reset clears the room's count entirely (room closed or expired).
	Reset(ctx context.Context, roomID string) error
	Close() error
}
