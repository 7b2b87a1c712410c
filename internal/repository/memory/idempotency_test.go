package memory

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestIdempotencyStore_LockOnce(t *testing.T) {
	ctx := context.Background()
	s := NewIdempotencyStore()
	id := uuid.New()

	ok, err := s.AcquireLock(ctx, id)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = s.AcquireLock(ctx, id)
	require.NoError(t, err)
	require.False(t, ok, "second delivery must be reported as duplicate")

	require.NoError(t, s.ReleaseLock(ctx, id))
	ok, _ = s.AcquireLock(ctx, id)
	require.False(t, ok, "released locks stay taken")

	ok, _ = s.AcquireLock(ctx, uuid.New())
	require.True(t, ok)
}
