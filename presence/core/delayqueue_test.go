package core

import (
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDelayQueue(t *testing.T) {
	base := at(2024, 3, 4, 10, 0)

	t.Run("same seed, same schedule", func(t *testing.T) {
		schedule := func() []time.Time {
			q := NewDelayQueue[string](func() time.Time { return base }, rand.New(rand.NewPCG(7, 7)))
			var dues []time.Time
			for _, k := range []string{"a", "b", "c", "d"} {
				due, ok := q.Schedule(k, k, time.Hour)
				require.True(t, ok)
				dues = append(dues, due)
			}
			return dues
		}
		assert.Equal(t, schedule(), schedule())
	})

	t.Run("jitter stays in range", func(t *testing.T) {
		q := NewDelayQueue[int](func() time.Time { return base }, rand.New(rand.NewPCG(1, 1)))
		for i := range 200 {
			due, ok := q.Schedule(string(rune(i+'A')), i, time.Hour)
			require.True(t, ok)
			assert.False(t, due.Before(base))
			assert.True(t, due.Before(base.Add(time.Hour)))
		}
	})

	t.Run("pops in due order and only when due", func(t *testing.T) {
		q := NewDelayQueue[string](func() time.Time { return base }, rand.New(rand.NewPCG(3, 9)))
		dues := map[string]time.Time{}
		for _, k := range []string{"s1", "s2", "s3"} {
			due, _ := q.Schedule(k, k, time.Hour)
			dues[k] = due
		}

		assert.Empty(t, q.PopDue(base.Add(-time.Second)))

		items := q.PopDue(base.Add(time.Hour))
		require.Len(t, items, 3)
		for i := 1; i < len(items); i++ {
			assert.False(t, items[i].Due.Before(items[i-1].Due))
		}
		for _, item := range items {
			assert.Equal(t, dues[item.Key], item.Due)
		}
		assert.Zero(t, q.Len())
	})

	t.Run("keys are unique while queued", func(t *testing.T) {
		q := NewDelayQueue[string](func() time.Time { return base }, rand.New(rand.NewPCG(1, 2)))
		_, ok := q.Schedule("s1", "first", 0)
		require.True(t, ok)
		_, ok = q.Schedule("s1", "second", 0)
		assert.False(t, ok)

		items := q.PopDue(base)
		require.Len(t, items, 1)
		assert.Equal(t, "first", items[0].Value)

		_, ok = q.Schedule("s1", "third", 0)
		assert.True(t, ok)
	})

	t.Run("next", func(t *testing.T) {
		q := NewDelayQueue[string](func() time.Time { return base }, rand.New(rand.NewPCG(1, 2)))
		_, ok := q.Next()
		assert.False(t, ok)
		q.Schedule("s1", "x", 0)
		next, ok := q.Next()
		assert.True(t, ok)
		assert.Equal(t, base, next)
	})
}
