package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPacerSpacesSameDomain(t *testing.T) {
	t.Parallel()

	p := New(100 * time.Millisecond)
	ctx := context.Background()

	start := time.Now()
	require.NoError(t, p.Wait(ctx, "example.com"))
	assert.Less(t, time.Since(start), 50*time.Millisecond, "first request should not wait")

	start = time.Now()
	require.NoError(t, p.Wait(ctx, "example.com"))
	assert.GreaterOrEqual(t, time.Since(start), 80*time.Millisecond)
}

func TestPacerDomainsIndependent(t *testing.T) {
	t.Parallel()

	p := New(time.Second)
	ctx := context.Background()

	require.NoError(t, p.Wait(ctx, "a.example"))
	start := time.Now()
	require.NoError(t, p.Wait(ctx, "b.example"))
	assert.Less(t, time.Since(start), 100*time.Millisecond, "other domain must not be delayed")
}

func TestPacerNoBurstCredit(t *testing.T) {
	t.Parallel()

	p := New(80 * time.Millisecond)
	ctx := context.Background()

	require.NoError(t, p.Wait(ctx, "idle.example"))
	// Idle for several intervals; only one request may go through immediately.
	time.Sleep(300 * time.Millisecond)

	require.NoError(t, p.Wait(ctx, "idle.example"))
	start := time.Now()
	require.NoError(t, p.Wait(ctx, "idle.example"))
	assert.GreaterOrEqual(t, time.Since(start), 60*time.Millisecond)
}

func TestPacerHonorsContext(t *testing.T) {
	t.Parallel()

	p := New(time.Hour)
	require.NoError(t, p.Wait(context.Background(), "slow.example"))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.Error(t, p.Wait(ctx, "slow.example"))
}

func TestPacerDisabled(t *testing.T) {
	t.Parallel()

	p := New(0)
	for i := 0; i < 5; i++ {
		require.NoError(t, p.Wait(context.Background(), "fast.example"))
	}
	assert.Empty(t, p.limiters, "disabled pacer should not track domains")
}
