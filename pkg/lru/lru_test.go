package lru

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_ClampsCapacity(t *testing.T) {
	tests := []struct {
		name     string
		capacity int
		expected int
	}{
		{"positive capacity", 3, 3},
		{"zero clamps to one", 0, 1},
		{"negative clamps to one", -5, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New[string, int](tt.capacity)
			assert.Equal(t, tt.expected, c.MaxSize())
		})
	}
}

func TestGet_MissingKeyHasNoSideEffect(t *testing.T) {
	c := New[string, int](2)
	c.Set("a", 1)

	v, ok := c.Get("missing")
	assert.False(t, ok)
	assert.Zero(t, v)
	assert.Equal(t, 1, c.Len())
	assert.Equal(t, []string{"a"}, c.Keys())
}

func TestSet_EvictsLeastRecentlyUsed(t *testing.T) {
	for capacity := 1; capacity <= 6; capacity++ {
		t.Run(fmt.Sprintf("capacity %d", capacity), func(t *testing.T) {
			c := New[int, int](capacity)
			for k := 0; k <= capacity; k++ {
				c.Set(k, k*10)
			}

			require.Equal(t, capacity, c.Len())
			_, ok := c.Get(0)
			assert.False(t, ok, "oldest key should have been evicted")
			for k := 1; k <= capacity; k++ {
				v, ok := c.Get(k)
				assert.True(t, ok)
				assert.Equal(t, k*10, v)
			}
		})
	}
}

func TestGet_PromotesKey(t *testing.T) {
	c := New[string, int](2)
	c.Set("a", 1)
	c.Set("b", 2)

	_, ok := c.Get("a")
	require.True(t, ok)

	c.Set("c", 3)

	_, ok = c.Get("b")
	assert.False(t, ok, "b was least recently used")
	_, ok = c.Get("a")
	assert.True(t, ok)
	_, ok = c.Get("c")
	assert.True(t, ok)
}

func TestSet_ExistingKeyReplacesAndPromotes(t *testing.T) {
	c := New[string, int](2)
	c.Set("a", 1)
	c.Set("b", 2)
	c.Set("a", 10)
	c.Set("c", 3)

	v, ok := c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 10, v)
	_, ok = c.Get("b")
	assert.False(t, ok)
}

func TestSetMaxSize_ShrinkAppliesOnNextSet(t *testing.T) {
	c := New[string, int](4)
	c.Set("a", 1)
	c.Set("b", 2)
	c.Set("c", 3)
	c.Set("d", 4)

	c.SetMaxSize(2)
	assert.Equal(t, 4, c.Len(), "shrinking must not evict retroactively")

	c.Set("e", 5)
	assert.Equal(t, 2, c.Len())
	assert.Equal(t, []string{"e", "d"}, c.Keys())
}

func TestSetMaxSize_GrowKeepsEntries(t *testing.T) {
	c := New[string, int](1)
	c.Set("a", 1)
	c.SetMaxSize(3)
	c.Set("b", 2)
	c.Set("c", 3)

	assert.Equal(t, 3, c.Len())
	assert.Equal(t, []string{"c", "b", "a"}, c.Keys())
}

func TestRemoveAndPurge(t *testing.T) {
	c := New[string, int](3)
	c.Set("a", 1)
	c.Set("b", 2)

	assert.True(t, c.Remove("a"))
	assert.False(t, c.Remove("a"))
	assert.Equal(t, 1, c.Len())

	c.Purge()
	assert.Equal(t, 0, c.Len())
	_, ok := c.Get("b")
	assert.False(t, ok)
}

func TestCache_ConcurrentAccess(t *testing.T) {
	c := New[int, int](16)
	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				c.Set((w*500+i)%64, i)
				c.Get(i % 64)
			}
		}(w)
	}
	wg.Wait()

	assert.LessOrEqual(t, c.Len(), 16)
}
