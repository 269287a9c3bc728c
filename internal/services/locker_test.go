package services

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestKeyedLocker_ExclusivePerKey(t *testing.T) {
	l := NewKeyedLocker()
	ctx := context.Background()

	var inside, peak int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := l.Lock(ctx, portfolioKey("p"))
			require.NoError(t, err)
			n := atomic.AddInt32(&inside, 1)
			for {
				p := atomic.LoadInt32(&peak)
				if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&inside, -1)
			unlock()
		}()
	}
	wg.Wait()
	require.Equal(t, int32(1), peak)
	require.Zero(t, l.Len())
}

func TestKeyedLocker_IndependentKeys(t *testing.T) {
	l := NewKeyedLocker()
	ctx := context.Background()

	unlockP, err := l.Lock(ctx, portfolioKey("p"))
	require.NoError(t, err)
	unlockA, err := l.Lock(ctx, accrualKey("p", "2024-01-02"))
	require.NoError(t, err)
	require.Equal(t, 2, l.Len())

	unlockA()
	unlockA()
	unlockP()
	require.Zero(t, l.Len())
}

func TestKeyedLocker_ContextCancel(t *testing.T) {
	l := NewKeyedLocker()
	unlock, err := l.Lock(context.Background(), "k")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = l.Lock(ctx, "k")
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Equal(t, 1, l.Len())

	unlock()
	require.Zero(t, l.Len())
}
