package generator

import (
	"context"
	"fmt"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// DefaultPINAlphabet drops ambiguous characters (0/O, 1/I/L) so codes
// survive being read aloud from a projector.
const DefaultPINAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

const maxAllocateAttempts = 32

// ExistsFunc reports whether a candidate code is already held by a live room.
type ExistsFunc func(ctx context.Context, code string) (bool, error)

// PINAllocator hands out short human-entry codes, collision-free among
// active rooms.
type PINAllocator struct {
	size     int
	alphabet string
	exists   ExistsFunc
}

// NewPINAllocator creates an allocator. size must be between 1 and 16.
func NewPINAllocator(size int, exists ExistsFunc) (*PINAllocator, error) {
	if size < 1 || size > 16 {
		return nil, fmt.Errorf("pin size must be between 1 and 16, got %d", size)
	}
	return &PINAllocator{
		size:     size,
		alphabet: DefaultPINAlphabet,
		exists:   exists,
	}, nil
}

// Allocate generates a code and retries on collision with live rooms.
func (a *PINAllocator) Allocate(ctx context.Context) (string, error) {
	for i := 0; i < maxAllocateAttempts; i++ {
		code, err := gonanoid.Generate(a.alphabet, a.size)
		if err != nil {
			return "", fmt.Errorf("failed to generate pin: %w", err)
		}
		inUse, err := a.exists(ctx, code)
		if err != nil {
			return "", err
		}
		if !inUse {
			return code, nil
		}
	}
	return "", fmt.Errorf("could not allocate a unique pin after %d attempts", maxAllocateAttempts)
}
