package lock

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalLocker_SerializesSameKey(t *testing.T) {
	l := NewLocalLocker(time.Second)
	ctx := context.Background()

	var inside, maxInside int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := l.Acquire(ctx, AssetKey("a1"))
			if !assert.NoError(t, err) {
				return
			}
			n := atomic.AddInt32(&inside, 1)
			for {
				m := atomic.LoadInt32(&maxInside)
				if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&inside, -1)
			release()
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxInside)
	assert.Equal(t, 0, l.Len())
}

func TestLocalLocker_DifferentKeysDoNotBlock(t *testing.T) {
	l := NewLocalLocker(50 * time.Millisecond)
	ctx := context.Background()

	r1, err := l.Acquire(ctx, "a")
	require.NoError(t, err)
	defer r1()

	r2, err := l.Acquire(ctx, "b")
	require.NoError(t, err)
	r2()
}

func TestLocalLocker_Timeout(t *testing.T) {
	l := NewLocalLocker(20 * time.Millisecond)
	ctx := context.Background()

	release, err := l.Acquire(ctx, "a")
	require.NoError(t, err)

	_, err = l.Acquire(ctx, "a")
	assert.ErrorIs(t, err, ErrTimeout)

	release()
	release() // second call is a no-op
	assert.Equal(t, 0, l.Len())

	again, err := l.Acquire(ctx, "a")
	require.NoError(t, err)
	again()
}
