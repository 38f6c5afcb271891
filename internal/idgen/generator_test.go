package idgen

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestGenerator(t *testing.T) (*Generator, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return New(rdb), mr
}

func TestNextID_Unique(t *testing.T) {
	g, _ := newTestGenerator(t)
	ctx := context.Background()

	seen := make(map[int64]bool)
	for i := 0; i < 100; i++ {
		id, err := g.NextID(ctx, "order")
		require.NoError(t, err)
		assert.False(t, seen[id], "id %d issued twice", id)
		seen[id] = true
	}
}

func TestNextID_MonotonicAcrossSeconds(t *testing.T) {
	g, _ := newTestGenerator(t)
	ctx := context.Background()

	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	g.now = func() time.Time { return base }
	first, err := g.NextID(ctx, "order")
	require.NoError(t, err)

	g.now = func() time.Time { return base.Add(time.Second) }
	second, err := g.NextID(ctx, "order")
	require.NoError(t, err)

	assert.Greater(t, second, first, "a later second must yield a larger id")
}

func TestNextID_SameSecondOrderedByCounter(t *testing.T) {
	g, _ := newTestGenerator(t)
	ctx := context.Background()

	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	g.now = func() time.Time { return base }

	prev, err := g.NextID(ctx, "order")
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		id, err := g.NextID(ctx, "order")
		require.NoError(t, err)
		assert.Greater(t, id, prev)
		prev = id
	}
}

func TestNextID_TimestampInHighBits(t *testing.T) {
	g, _ := newTestGenerator(t)
	ctx := context.Background()

	at := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	g.now = func() time.Time { return at }
	id, err := g.NextID(ctx, "order")
	require.NoError(t, err)

	assert.Equal(t, at.Unix()-epochSecond, id>>counterBits)
	assert.Equal(t, int64(1), id&((1<<counterBits)-1))
}

func TestNextID_TagsCountIndependently(t *testing.T) {
	g, _ := newTestGenerator(t)
	ctx := context.Background()

	at := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	g.now = func() time.Time { return at }

	a, err := g.NextID(ctx, "order")
	require.NoError(t, err)
	b, err := g.NextID(ctx, "refund")
	require.NoError(t, err)
	// Different tags start from their own counter, so within the same
	// second the low fields match.
	assert.Equal(t, a&((1<<counterBits)-1), b&((1<<counterBits)-1))
}

func TestNextID_Concurrent(t *testing.T) {
	g, _ := newTestGenerator(t)
	ctx := context.Background()

	const n = 50
	ids := make(chan int64, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id, err := g.NextID(ctx, "order")
			if err == nil {
				ids <- id
			}
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[int64]bool)
	count := 0
	for id := range ids {
		assert.False(t, seen[id], "id %d issued twice", id)
		seen[id] = true
		count++
	}
	assert.Equal(t, n, count)
}

func TestNextID_StoreDown(t *testing.T) {
	g, mr := newTestGenerator(t)
	mr.Close()

	_, err := g.NextID(context.Background(), "order")
	assert.Error(t, err, "counter failure must surface, never a partial id")
}
