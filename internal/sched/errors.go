package sched

import "errors"

var (
	// ErrNoAllocator is returned by Init when constructed without a task
	// allocator. It is the scheduler's one structural failure mode.
	ErrNoAllocator = errors.New("sched: init requires a task allocator")

	// ErrNotInitialized is returned by NewTask before Init has run.
	ErrNotInitialized = errors.New("sched: scheduler not initialized")

	// ErrTaskRunning is returned by FreeTask on a task whose handler is
	// still executing.
	ErrTaskRunning = errors.New("sched: cannot free a running task")

	// ErrTaskLinked is returned by FreeTask on a task still linked into
	// the run queue or wait queue.
	ErrTaskLinked = errors.New("sched: cannot free a task still linked into a queue")
)
