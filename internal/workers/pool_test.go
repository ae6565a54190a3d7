package workers

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWorkerPool_Default(t *testing.T) {
	assert.Equal(t, DefaultWorkers, NewWorkerPool(0).Size())
	assert.Equal(t, DefaultWorkers, NewWorkerPool(-3).Size())
	assert.Equal(t, 4, NewWorkerPool(4).Size())
}

func TestProcess_PreservesOrder(t *testing.T) {
	pool := NewWorkerPool(4)
	items := make([]int, 100)
	for i := range items {
		items[i] = i
	}

	results := Process(context.Background(), pool, items, func(_ context.Context, n int) (int, error) {
		// Reverse the natural completion order
		time.Sleep(time.Duration(100-n) * time.Microsecond)
		return n * n, nil
	})

	require.Len(t, results, 100)
	for i, r := range results {
		require.NoError(t, r.Err)
		assert.Equal(t, i*i, r.Value)
	}
}

func TestProcess_ErrorsPerItem(t *testing.T) {
	boom := errors.New("boom")
	results := Process(context.Background(), NewWorkerPool(2), []string{"a", "", "c"},
		func(_ context.Context, s string) (string, error) {
			if s == "" {
				return "", boom
			}
			return s + s, nil
		})

	assert.Equal(t, "aa", results[0].Value)
	assert.ErrorIs(t, results[1].Err, boom)
	assert.Equal(t, "cc", results[2].Value)
}

func TestProcess_BoundedConcurrency(t *testing.T) {
	var running, peak int32
	Process(context.Background(), NewWorkerPool(3), make([]struct{}, 30),
		func(_ context.Context, _ struct{}) (struct{}, error) {
			n := atomic.AddInt32(&running, 1)
			for {
				p := atomic.LoadInt32(&peak)
				if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&running, -1)
			return struct{}{}, nil
		})

	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(3))
}

func TestProcess_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var calls int32
	results := Process(ctx, NewWorkerPool(2), []int{1, 2, 3}, func(_ context.Context, n int) (int, error) {
		atomic.AddInt32(&calls, 1)
		return n, nil
	})

	assert.Equal(t, int32(0), atomic.LoadInt32(&calls))
	for _, r := range results {
		assert.ErrorIs(t, r.Err, context.Canceled)
	}
}

func TestProcess_Empty(t *testing.T) {
	results := Process(context.Background(), NewWorkerPool(2), nil, func(_ context.Context, n int) (int, error) {
		return n, nil
	})
	assert.Empty(t, results)
}
