// Package parallel provides the fork-join task executor used by the fitting
// engine, together with small helpers for collecting errors from goroutines.
package parallel

import (
	"errors"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/sourcegraph/conc/panics"
)

// ErrExecutorClosed is returned by futures submitted after Close.
var ErrExecutorClosed = errors.New("parallel: executor is closed")

// Executor is a fixed-size pool of worker goroutines. It is created once per
// fit and torn down with Close when the fit completes.
//
// Tasks run concurrently and complete in no particular order. A submitted task
// always runs to completion; there is no cancellation. Panics raised inside a
// task are recovered and surfaced through the task's Future as an error.
type Executor struct {
	tasks   chan func()
	workers int

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup

	submitted atomic.Uint64
}

// NewExecutor starts a pool with the given number of workers. A value below 1
// selects runtime.NumCPU().
//
// Parameters:
//   - workers: The number of worker goroutines.
//
// Returns:
//   - *Executor: A running executor. Callers must call Close.
func NewExecutor(workers int) *Executor {
	if workers < 1 {
		workers = runtime.NumCPU()
	}
	e := &Executor{
		tasks:   make(chan func(), workers),
		workers: workers,
	}
	e.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go e.work()
	}
	return e
}

func (e *Executor) work() {
	defer e.wg.Done()
	for task := range e.tasks {
		task()
	}
}

// Workers returns the size of the pool.
func (e *Executor) Workers() int {
	return e.workers
}

// Submitted returns the number of tasks accepted since the executor started.
func (e *Executor) Submitted() uint64 {
	return e.submitted.Load()
}

// Close stops accepting tasks, lets queued tasks finish, and waits for every
// worker to exit. Calling Close more than once is a no-op.
func (e *Executor) Close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	close(e.tasks)
	e.mu.Unlock()
	e.wg.Wait()
}

// Future is the handle to the result of a submitted task.
type Future[T any] struct {
	done  chan struct{}
	value T
	err   error
}

// Get blocks until the task has completed and returns its value or its
// failure. Get may be called any number of times.
func (f *Future[T]) Get() (T, error) {
	<-f.done
	return f.value, f.err
}

// Done returns a channel closed once the task has completed.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

func failedFuture[T any](err error) *Future[T] {
	f := &Future[T]{done: make(chan struct{}), err: err}
	close(f.done)
	return f
}

// Submit enqueues task on the executor and returns its Future. Submitting to a
// closed executor returns a Future that fails with ErrExecutorClosed.
//
// Submit is a function rather than a method because Go methods cannot carry
// their own type parameters.
func Submit[T any](e *Executor, task func() (T, error)) *Future[T] {
	f := &Future[T]{done: make(chan struct{})}
	run := func() {
		defer close(f.done)
		recovered := panics.Try(func() {
			f.value, f.err = task()
		})
		if recovered != nil {
			var zero T
			f.value = zero
			f.err = recovered.AsError()
		}
	}

	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return failedFuture[T](ErrExecutorClosed)
	}
	e.submitted.Add(1)
	e.tasks <- run
	return f
}

// JoinAll waits for every future and returns their values in submission
// order. All futures are awaited even when one fails; the returned error is
// the first failure in index order.
//
// Parameters:
//   - futures: The futures to wait for.
//
// Returns:
//   - []T: The task values, indexed like futures.
//   - error: The first failure in index order, or nil.
func JoinAll[T any](futures []*Future[T]) ([]T, error) {
	values := make([]T, len(futures))
	var ec ErrorCollector
	for i, f := range futures {
		v, err := f.Get()
		values[i] = v
		ec.SetError(err)
	}
	if err := ec.Err(); err != nil {
		return nil, err
	}
	return values, nil
}
