package httpdl

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestPool_Bound tests that acquisition blocks at capacity
func TestPool_Bound(t *testing.T) {
	pool := NewPool(2)

	require.NoError(t, pool.Acquire(context.Background()))
	require.NoError(t, pool.Acquire(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, pool.Acquire(ctx), context.DeadlineExceeded)

	pool.Release()
	require.NoError(t, pool.Acquire(context.Background()))
}

// TestPool_MinimumSize tests that a degenerate size still yields one slot
func TestPool_MinimumSize(t *testing.T) {
	pool := NewPool(0)
	assert.Equal(t, 1, pool.Size())
	require.NoError(t, pool.Acquire(context.Background()))
	pool.Release()
}
