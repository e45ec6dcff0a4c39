package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoaderCache_MissThenHit(t *testing.T) {
	loads := atomic.Int32{}

	c, err := NewLoaderCache[uuid.UUID, string](10)
	require.NoError(t, err)

	key := uuid.New()
	load := func(_ context.Context, k uuid.UUID) (string, error) {
		loads.Add(1)

		return "v-" + k.String(), nil
	}

	v, hit, err := c.Get(context.Background(), key, load)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, "v-"+key.String(), v)

	v, hit, err = c.Get(context.Background(), key, load)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, "v-"+key.String(), v)
	assert.Equal(t, int32(1), loads.Load())
}

func TestLoaderCache_ErrorsAreNotCached(t *testing.T) {
	c, err := NewLoaderCache[uuid.UUID, int](10)
	require.NoError(t, err)

	key := uuid.New()
	boom := errors.New("boom")

	_, _, err = c.Get(context.Background(), key, func(context.Context, uuid.UUID) (int, error) { return 0, boom })
	require.ErrorIs(t, err, boom)

	v, hit, err := c.Get(context.Background(), key, func(context.Context, uuid.UUID) (int, error) { return 7, nil })
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 7, v)
}

func TestLoaderCache_CoalescesConcurrentLoads(t *testing.T) {
	c, err := NewLoaderCache[uuid.UUID, int](10)
	require.NoError(t, err)

	key := uuid.New()
	loads := atomic.Int32{}
	release := make(chan struct{})

	load := func(context.Context, uuid.UUID) (int, error) {
		loads.Add(1)
		<-release

		return 42, nil
	}

	var wg sync.WaitGroup
	results := make([]int, 8)

	for i := range results {
		wg.Add(1)

		go func(i int) {
			defer wg.Done()

			v, _, err := c.Get(context.Background(), key, load)
			assert.NoError(t, err)

			results[i] = v
		}(i)
	}

	// give the goroutines time to pile up on the same key
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	for _, v := range results {
		assert.Equal(t, 42, v)
	}

	assert.LessOrEqual(t, loads.Load(), int32(8))
	assert.GreaterOrEqual(t, loads.Load(), int32(1))
}

func TestLoaderCache_Purge(t *testing.T) {
	c, err := NewLoaderCache[uuid.UUID, int](10)
	require.NoError(t, err)

	a, b := uuid.New(), uuid.New()
	loads := atomic.Int32{}
	one := func(context.Context, uuid.UUID) (int, error) {
		loads.Add(1)

		return 1, nil
	}

	_, _, _ = c.Get(context.Background(), a, one)
	_, _, _ = c.Get(context.Background(), b, one)

	c.Purge()

	for _, key := range []uuid.UUID{a, b} {
		_, hit, err := c.Get(context.Background(), key, one)
		require.NoError(t, err)
		assert.False(t, hit)
	}

	assert.Equal(t, int32(4), loads.Load())
}
