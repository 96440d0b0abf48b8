package sched

// State is a bit set over the wake reasons a handler can observe, plus the
// RUNNING flag. PendingState uses the same bit shape, restricted to the
// WOKEN_* reasons.
type State uint32

const (
	// WokenInit marks a task's first ever wakeup, set by NewTask.
	WokenInit State = 1 << iota
	// WokenTimer is delivered when the wait-queue sweep expires a task.
	WokenTimer
	// WokenIO is delivered by an I/O poller collaborator (see netio).
	WokenIO
	// WokenSignal is delivered for an out-of-band signal wakeup.
	WokenSignal
	// WokenMsg is delivered when a message arrives for the task.
	WokenMsg
	// WokenRes is delivered when an awaited resource becomes available.
	WokenRes
	// WokenOther covers any wake reason not otherwise classified.
	WokenOther
	// Running marks a task as currently inside its handler invocation.
	// Never appears in PendingState.
	Running
)

// reasonMask is the subset of State bits a caller may legally pass as a
// wake reason (i.e. everything except Running).
const reasonMask = WokenInit | WokenTimer | WokenIO | WokenSignal | WokenMsg | WokenRes | WokenOther

// Task is one schedulable unit. Callers obtain one from Scheduler.NewTask
// and never construct it directly; the zero value is not usable.
type Task struct {
	state        State
	pendingState State
	nice         int32
	expire       uint32
	calls        uint64
	process      func(*Task) *Task
	context      any

	rq node
	wq node
}

// State returns the wake reasons delivered for the current invocation.
func (t *Task) State() State { return t.state }

// PendingState returns wake reasons accumulated while RUNNING, not yet
// promoted to State.
func (t *Task) PendingState() State { return t.pendingState }

// Nice returns the task's priority bias.
func (t *Task) Nice() int32 { return t.nice }

// SetNice sets the task's priority bias, clamped to [-1024, 1024]. Takes
// effect on the task's next wakeup; it does not reorder an already-queued
// run-queue entry.
func (t *Task) SetNice(n int32) {
	if t == nil {
		return
	}
	switch {
	case n > 1024:
		n = 1024
	case n < -1024:
		n = -1024
	}
	t.nice = n
}

// Expire returns the task's absolute wakeup deadline, or Eternity.
func (t *Task) Expire() uint32 { return t.expire }

// SetExpire sets the task's deadline. Callers must call Scheduler.Queue
// afterward for the change to take effect in the wait queue.
func (t *Task) SetExpire(tick uint32) { t.expire = tick }

// Calls returns the number of times the task's handler has been invoked.
func (t *Task) Calls() uint64 { return t.calls }

// Context returns the opaque pointer the creator attached to the task.
func (t *Task) Context() any { return t.context }

// InRunQueue reports whether the task is currently run-queue-linked.
func (t *Task) InRunQueue() bool { return t.rq.linked }

// InWaitQueue reports whether the task is currently wait-queue-linked.
func (t *Task) InWaitQueue() bool { return t.wq.linked }

// Running reports whether the task is inside its handler right now.
func (t *Task) Running() bool { return t.state&Running != 0 }

// Allocator is the external task-record pool the scheduler consumes; task
// storage is owned by whichever subsystem created the tasks, not by the
// scheduler. Memory pooling strategy (fixed-size slab, sync.Pool, etc.) is
// out of scope for the core and left to the implementation (see
// internal/pool for a reference one).
type Allocator interface {
	New() *Task
	Free(t *Task)
}
