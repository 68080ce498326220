package presence

import (
	"context"
	"sync"
)

// MemoryLedger implements Ledger with an in-process map. Used for single-node
// deployments without Redis, and in tests.
type MemoryLedger struct {
	mu     sync.Mutex
	counts map[string]int
}

// NewMemoryLedger creates an empty in-memory ledger.
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{counts: make(map[string]int)}
}

// Join increments the room's count unless it is at capacity.
func (l *MemoryLedger) Join(ctx context.Context, roomID string, capacity int) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.counts[roomID] >= capacity {
		return capacity, ErrCapacityExceeded
	}
	l.counts[roomID]++
	return l.counts[roomID], nil
}

// Leave decrements the room's count, clamped at zero.
func (l *MemoryLedger) Leave(ctx context.Context, roomID string) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.counts[roomID] > 0 {
		l.counts[roomID]--
	}
	return l.counts[roomID], nil
}

// Count returns the current count for a room.
func (l *MemoryLedger) Count(ctx context.Context, roomID string) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.counts[roomID], nil
}

// Reset clears the room's count.
func (l *MemoryLedger) Reset(ctx context.Context, roomID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.counts, roomID)
	return nil
}

// Close is a no-op for the in-memory ledger.
func (l *MemoryLedger) Close() error { return nil }
