package presence

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryLedger_JoinLeave(t *testing.T) {
	l := NewMemoryLedger()
	ctx := context.Background()

	count, err := l.Join(ctx, "room-1", 10)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	count, err = l.Join(ctx, "room-1", 10)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	count, err = l.Leave(ctx, "room-1")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestMemoryLedger_CapacityCeiling(t *testing.T) {
	l := NewMemoryLedger()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := l.Join(ctx, "room-1", 3)
		require.NoError(t, err)
	}

	_, err := l.Join(ctx, "room-1", 3)
	assert.ErrorIs(t, err, ErrCapacityExceeded)

	// The rejected join must not have incremented.
	count, err := l.Count(ctx, "room-1")
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestMemoryLedger_LeaveClampsAtZero(t *testing.T) {
	l := NewMemoryLedger()
	ctx := context.Background()

	count, err := l.Leave(ctx, "room-1")
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	count, err = l.Leave(ctx, "room-1")
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestMemoryLedger_Reset(t *testing.T) {
	l := NewMemoryLedger()
	ctx := context.Background()

	_, err := l.Join(ctx, "room-1", 10)
	require.NoError(t, err)

	require.NoError(t, l.Reset(ctx, "room-1"))

	count, err := l.Count(ctx, "room-1")
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestMemoryLedger_ConcurrentJoins(t *testing.T) {
	l := NewMemoryLedger()
	ctx := context.Background()
	capacity := 50

	var wg sync.WaitGroup
	var mu sync.Mutex
	admitted := 0

	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := l.Join(ctx, "room-1", capacity); err == nil {
				mu.Lock()
				admitted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, capacity, admitted)
	count, err := l.Count(ctx, "room-1")
	require.NoError(t, err)
	assert.Equal(t, capacity, count)
}

func TestMemoryLedger_RoomsAreIndependent(t *testing.T) {
	l := NewMemoryLedger()
	ctx := context.Background()

	_, err := l.Join(ctx, "room-1", 1)
	require.NoError(t, err)

	count, err := l.Join(ctx, "room-2", 1)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
