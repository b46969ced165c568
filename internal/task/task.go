// Package task runs work off the caller's goroutine and hands back a single
// eventual result. A panic inside the work is recovered and delivered as a
// FaultError so a failing call can never take down the host process.
package task

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"

	"ragchat/internal/logger"
	"ragchat/internal/metrics"
)

// Result is the tagged outcome of a task: exactly one of Value or Err is meaningful.
type Result[T any] struct {
	Value T
	Err   error
}

// OK reports whether the task succeeded.
func (r Result[T]) OK() bool { return r.Err == nil }

// FaultError is delivered when the task function panicked.
type FaultError struct {
	TaskID string
	Value  any
	Stack  []byte
}

func (e *FaultError) Error() string {
	return fmt.Sprintf("task %s faulted: %v", e.TaskID, e.Value)
}

// Handle represents one eventual value produced by a background task.
// It has a single producer (the task) and is meant for a single consumer.
type Handle[T any] struct {
	id   string
	ch   chan Result[T]
	done chan struct{}

	once   sync.Once
	result Result[T]
}

// ID returns the task identifier used in logs.
func (h *Handle[T]) ID() string { return h.id }

// Done is closed once the result is available.
func (h *Handle[T]) Done() <-chan struct{} { return h.done }

// Poll returns the result without blocking. ok is false while the task runs.
func (h *Handle[T]) Poll() (res Result[T], ok bool) {
	select {
	case <-h.done:
		return h.take(), true
	default:
		return res, false
	}
}

// Wait blocks until the result is available or ctx is done.
func (h *Handle[T]) Wait(ctx context.Context) (Result[T], error) {
	select {
	case <-h.done:
		return h.take(), nil
	case <-ctx.Done():
		var zero Result[T]
		return zero, ctx.Err()
	}
}

func (h *Handle[T]) take() Result[T] {
	h.once.Do(func() { h.result = <-h.ch })
	return h.result
}

// Runner starts tasks and tracks them for shutdown.
type Runner struct {
	log     *logger.Logger
	metrics *metrics.Metrics
	wg      sync.WaitGroup
}

// NewRunner creates a Runner. metrics may be nil.
func NewRunner(log *logger.Logger, m *metrics.Metrics) *Runner {
	if log == nil {
		log = logger.Nop()
	}
	return &Runner{log: log.Component("task"), metrics: m}
}

// Go starts fn on its own goroutine and returns immediately.
func Go[T any](r *Runner, ctx context.Context, name string, fn func(ctx context.Context) (T, error)) *Handle[T] {
	h := &Handle[T]{
		id:   uuid.NewString(),
		ch:   make(chan Result[T], 1),
		done: make(chan struct{}),
	}
	r.wg.Add(1)
	if r.metrics != nil {
		r.metrics.TasksInFlight.Inc()
	}
	go func() {
		defer r.wg.Done()
		if r.metrics != nil {
			defer r.metrics.TasksInFlight.Dec()
		}
		start := time.Now()
		res := invoke(r, ctx, h.id, fn)
		r.log.LogTask(name, h.id, time.Since(start), res.Err)
		h.ch <- res
		close(h.done)
	}()
	return h
}

func invoke[T any](r *Runner, ctx context.Context, id string, fn func(ctx context.Context) (T, error)) (res Result[T]) {
	defer func() {
		if v := recover(); v != nil {
			fault := &FaultError{TaskID: id, Value: v, Stack: debug.Stack()}
			r.log.Error().
				Str("task_id", id).
				Interface("panic", v).
				Bytes("stack", fault.Stack).
				Msg("task faulted")
			if r.metrics != nil {
				r.metrics.TaskFaultsTotal.Inc()
			}
			res = Result[T]{Err: fault}
		}
	}()
	v, err := fn(ctx)
	return Result[T]{Value: v, Err: err}
}

// Wait blocks until every started task has delivered its result.
func (r *Runner) Wait() {
	r.wg.Wait()
}
