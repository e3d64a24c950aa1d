package asyncx

import (
	"context"
	"sync"
	"time"
)

// ─── Future ──────────────────────────────────────────────────────────────────

type result[T any] struct {
	value T
	err   error
}

// Future is a value being computed in another goroutine.
type Future[T any] struct {
	ch   chan result[T]
	once sync.Once
	res  result[T]
}

// Run starts fn in a goroutine and returns a Future for its result.
func Run[T any](fn func() (T, error)) *Future[T] {
	f := &Future[T]{ch: make(chan result[T], 1)}
	go func() {
		v, err := fn()
		f.ch <- result[T]{value: v, err: err}
	}()
	return f
}

// Await blocks until the Future completes. Later calls return the same
// result.
func (f *Future[T]) Await() (T, error) {
	f.once.Do(func() { f.res = <-f.ch })
	return f.res.value, f.res.err
}

// ─── All ─────────────────────────────────────────────────────────────────────

// All runs fns concurrently and waits for every one of them. Results keep
// the order of fns. The first error in that order is returned.
func All[T any](ctx context.Context, fns ...func(context.Context) (T, error)) ([]T, error) {
	results := make([]T, len(fns))
	errs := make([]error, len(fns))

	var wg sync.WaitGroup
	wg.Add(len(fns))
	for i, fn := range fns {
		go func() {
			defer wg.Done()
			results[i], errs[i] = fn(ctx)
		}()
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return results, nil
}

// ─── Bounded calls ───────────────────────────────────────────────────────────

// Bounded runs fn with a deadline of d measured from now. The deadline is
// the only thing that can stop fn: cancellation of ctx is not propagated,
// while its values are. Bounded always waits for fn to return.
func Bounded[T any](ctx context.Context, d time.Duration, fn func(context.Context) (T, error)) (T, error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d)
	defer cancel()
	return fn(ctx)
}

// BoundedErr is Bounded for calls that only return an error.
func BoundedErr(ctx context.Context, d time.Duration, fn func(context.Context) error) error {
	_, err := Bounded(ctx, d, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}
