// Package pool provides a reference task allocator satisfying
// sched.Allocator. Memory pooling for task records is explicitly an
// external collaborator in spec.md §1/§6; the scheduler core only ever
// talks to the Allocator interface.
package pool

import (
	"sync"

	"reactor/internal/sched"
)

// Tasks is a bounded sync.Pool-backed allocator for *sched.Task records.
// Construct one with NewTasks: a zero Tasks has no pool.New, so its New
// returns nil.
type Tasks struct {
	pool sync.Pool

	mu    sync.Mutex
	limit int
	live  int
}

// NewTasks constructs an allocator tracking up to limit live tasks.
// limit <= 0 means unbounded. sched.Allocator.New has no error return, so
// New can't refuse outright once limit is hit; instead it stops recycling
// pooled records past the limit and hands out a fresh, unpooled *sched.Task
// so Live() still counts every outstanding task accurately. Callers that
// need a hard cap should check Live() before calling Scheduler.NewTask.
func NewTasks(limit int) *Tasks {
	t := &Tasks{limit: limit}
	t.pool.New = func() any { return new(sched.Task) }
	return t
}

// New satisfies sched.Allocator.
func (t *Tasks) New() *sched.Task {
	t.mu.Lock()
	over := t.limit > 0 && t.live >= t.limit
	t.live++
	t.mu.Unlock()

	if over {
		return new(sched.Task)
	}
	task, _ := t.pool.Get().(*sched.Task)
	return task
}

// Free satisfies sched.Allocator.
func (t *Tasks) Free(task *sched.Task) {
	if task == nil {
		return
	}
	t.mu.Lock()
	if t.live > 0 {
		t.live--
	}
	t.mu.Unlock()
	t.pool.Put(task)
}

// Live returns the number of task records currently checked out.
func (t *Tasks) Live() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.live
}
