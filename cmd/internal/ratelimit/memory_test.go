package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_ConcurrentIncrements(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore()
	now := time.Now().UTC()
	const n = 500

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Increment(context.Background(), "hot", time.Minute, now)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	c, err := s.Increment(context.Background(), "hot", time.Minute, now)
	require.NoError(t, err)
	assert.Equal(t, int64(n+1), c.Count)
}

func TestMemoryStore_NewWindowResets(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore()
	ctx := context.Background()
	start := time.UnixMilli(60_000 * 1000).UTC()

	for i := 0; i < 4; i++ {
		_, err := s.Increment(ctx, "k", time.Minute, start.Add(time.Duration(i)*time.Second))
		require.NoError(t, err)
	}

	c, err := s.Increment(ctx, "k", time.Minute, start.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(1), c.Count)
	assert.Equal(t, start.Add(2*time.Minute), c.ResetAt)
}

func TestMemoryStore_Sweep(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore()
	ctx := context.Background()
	now := time.UnixMilli(0).UTC()

	for i := 0; i < 100; i++ {
		_, err := s.Increment(ctx, fmt.Sprintf("client-%d", i), time.Second, now)
		require.NoError(t, err)
	}
	_, err := s.Increment(ctx, "long", time.Hour, now)
	require.NoError(t, err)
	require.Equal(t, 101, s.Len())

	assert.Equal(t, 0, s.Sweep(now.Add(500*time.Millisecond)))
	assert.Equal(t, 100, s.Sweep(now.Add(time.Second)))
	assert.Equal(t, 1, s.Len())
}

func TestMemoryStore_RunJanitorStopsOnCancel(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore()
	_, err := s.Increment(context.Background(), "old", time.Millisecond, time.UnixMilli(0))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.RunJanitor(ctx, 5*time.Millisecond)
		close(done)
	}()

	require.Eventually(t, func() bool { return s.Len() == 0 }, 2*time.Second, 5*time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("janitor did not stop")
	}
}

func TestMemoryStore_CanceledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewMemoryStore().Increment(ctx, "k", time.Minute, time.Now())
	assert.ErrorIs(t, err, context.Canceled)
}
