package workerpool

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/mnemo/internal/core/domain"
)

func newPool(t *testing.T, size int) *Pool {
	t.Helper()
	p, err := New(size)
	require.NoError(t, err)
	t.Cleanup(p.Release)
	return p
}

func TestNew(t *testing.T) {
	assert.Equal(t, 3, newPool(t, 3).Cap())
	assert.Equal(t, DefaultSize(), newPool(t, 0).Cap())
}

func TestPool_Run(t *testing.T) {
	t.Run("runs every index", func(t *testing.T) {
		p := newPool(t, 4)
		results := make([]int, 100)
		var calls atomic.Int32

		err := p.Run(context.Background(), len(results), func(_ context.Context, i int) error {
			calls.Add(1)
			results[i] = i * i
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, int32(100), calls.Load())
		for i, v := range results {
			assert.Equal(t, i*i, v)
		}
	})

	t.Run("zero tasks", func(t *testing.T) {
		assert.NoError(t, newPool(t, 1).Run(context.Background(), 0, nil))
	})

	t.Run("returns lowest index error", func(t *testing.T) {
		p := newPool(t, 4)
		errA := errors.New("a")
		errB := errors.New("b")

		err := p.Run(context.Background(), 10, func(_ context.Context, i int) error {
			switch i {
			case 3:
				return errA
			case 7:
				return errB
			}
			return nil
		})
		assert.ErrorIs(t, err, errA)
	})

	t.Run("recovers panics", func(t *testing.T) {
		p := newPool(t, 2)
		err := p.Run(context.Background(), 3, func(_ context.Context, i int) error {
			if i == 1 {
				panic("boom")
			}
			return nil
		})
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrStepPanicked)
		assert.Contains(t, err.Error(), "boom")
	})

	t.Run("cancelled context", func(t *testing.T) {
		p := newPool(t, 2)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		err := p.Run(ctx, 5, func(_ context.Context, _ int) error { return nil })
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestSequential_Run(t *testing.T) {
	var seen []int
	err := Sequential{}.Run(context.Background(), 3, func(_ context.Context, i int) error {
		seen = append(seen, i)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2}, seen)

	boom := errors.New("boom")
	calls := 0
	err = Sequential{}.Run(context.Background(), 3, func(_ context.Context, i int) error {
		calls++
		if i == 1 {
			return boom
		}
		return nil
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 2, calls)

	err = Sequential{}.Run(context.Background(), 1, func(context.Context, int) error { panic("x") })
	assert.ErrorIs(t, err, domain.ErrStepPanicked)
}
