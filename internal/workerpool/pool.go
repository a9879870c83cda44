// Package workerpool fans indexed tasks out to an ants goroutine pool and
// joins them.
package workerpool

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"github.com/panjf2000/ants/v2"

	"github.com/custodia-labs/mnemo/internal/core/domain"
)

// Runner fans indexed tasks out and joins them.
type Runner interface {
	Run(ctx context.Context, n int, fn func(ctx context.Context, i int) error) error
}

var (
	_ Runner = (*Pool)(nil)
	_ Runner = Sequential{}
)

// Pool runs batches of tasks on a bounded set of goroutines.
type Pool struct {
	pool *ants.Pool
}

// DefaultSize returns the pool size used when none is configured.
func DefaultSize() int {
	return max(runtime.NumCPU(), 1)
}

// New creates a pool with size workers. A non-positive size uses DefaultSize.
func New(size int) (*Pool, error) {
	if size < 1 {
		size = DefaultSize()
	}
	pool, err := ants.NewPool(size)
	if err != nil {
		return nil, fmt.Errorf("create worker pool: %w", err)
	}
	return &Pool{pool: pool}, nil
}

// Run calls fn for every index in [0, n) and waits for all of them. It
// returns the error of the lowest failing index. A panicking task is
// reported as domain.ErrStepPanicked.
func (p *Pool) Run(ctx context.Context, n int, fn func(ctx context.Context, i int) error) error {
	if n == 0 {
		return nil
	}

	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			errs[i] = err
			break
		}
		wg.Add(1)
		idx := i
		submitErr := p.pool.Submit(func() {
			defer wg.Done()
			errs[idx] = runRecovered(ctx, idx, fn)
		})
		if submitErr != nil {
			wg.Done()
			errs[i] = fmt.Errorf("submit task %d: %w", i, submitErr)
			break
		}
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// Cap returns the number of workers.
func (p *Pool) Cap() int {
	return p.pool.Cap()
}

// Release stops the pool. It must not be used afterwards.
func (p *Pool) Release() {
	p.pool.Release()
}

// Sequential runs tasks one by one in the calling goroutine.
type Sequential struct{}

// Run calls fn for every index in order and stops at the first error.
func (Sequential) Run(ctx context.Context, n int, fn func(ctx context.Context, i int) error) error {
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := runRecovered(ctx, i, fn); err != nil {
			return err
		}
	}
	return nil
}

func runRecovered(ctx context.Context, i int, fn func(ctx context.Context, i int) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task %d: %w: %v", i, domain.ErrStepPanicked, r)
		}
	}()
	return fn(ctx, i)
}
