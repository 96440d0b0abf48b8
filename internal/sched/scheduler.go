// Package sched implements the cooperative task scheduler: an ordered-tree
// run queue and wait queue, nice-biased fair ordering, wrap-aware 32-bit
// tick arithmetic, and the batched execution loop that drains the run
// queue. See SPEC_FULL.md §3 for the module boundary.
package sched

import (
	"context"

	"reactor/internal/trace"
)

// defaultBatchSize bounds how many tasks are detached from the run queue
// and run without any intervening tree operation.
const defaultBatchSize = 16

// defaultMaxBudget is the per-call cap on handler invocations; it is
// quartered when niced tasks are present so the bias has time to act.
const defaultMaxBudget = 200

// defaultNiceMin and defaultNiceMax are spec.md §3's hard nice-bias bounds.
const (
	defaultNiceMin int32 = -1024
	defaultNiceMax int32 = 1024
)

// Limits collects the tunables internal/config loads from a deployment's
// reactor.toml (see SPEC_FULL.md §4's config module): batch size, per-call
// budget, and the nice clamp range. Scheduler.SetLimits applies them.
type Limits struct {
	BatchSize int
	Budget    int
	NiceMin   int32
	NiceMax   int32
}

// Scheduler owns both ordered trees and the process-wide counters. Unlike
// the source (and the teacher's Executor), it is an explicit value a
// caller constructs, not a singleton.
type Scheduler struct {
	runTree  tree
	waitTree tree

	rqueueTicks   uint32
	tasksRunQueue int
	niceTasks     int
	nbTasks       int

	batchSize int
	maxBudget int
	niceMin   int32
	niceMax   int32

	alloc  Allocator
	tracer trace.Tracer
}

// New constructs a Scheduler with spec.md's default limits. Init must be
// called before NewTask; SetLimits may be called any time after New to
// apply a loaded config.Scheduler.
func New() *Scheduler {
	return &Scheduler{
		tracer:    trace.Nop,
		batchSize: defaultBatchSize,
		maxBudget: defaultMaxBudget,
		niceMin:   defaultNiceMin,
		niceMax:   defaultNiceMax,
	}
}

// SetLimits applies a config-loaded Limits, falling back to spec.md's
// defaults for a zero (or negative) BatchSize or Budget, and for the nice
// range only when NiceMin and NiceMax are both zero.
func (s *Scheduler) SetLimits(limits Limits) {
	s.batchSize = limits.BatchSize
	if s.batchSize <= 0 {
		s.batchSize = defaultBatchSize
	}
	s.maxBudget = limits.Budget
	if s.maxBudget <= 0 {
		s.maxBudget = defaultMaxBudget
	}
	s.niceMin, s.niceMax = limits.NiceMin, limits.NiceMax
	if s.niceMin == 0 && s.niceMax == 0 {
		s.niceMin, s.niceMax = defaultNiceMin, defaultNiceMax
	}
}

// SetTracer attaches a tracer for driver-turn/batch/task spans. A nil
// tracer is treated as trace.Nop.
func (s *Scheduler) SetTracer(t trace.Tracer) {
	if t == nil {
		t = trace.Nop
	}
	s.tracer = t
}

// Init zeroes both trees and binds the task allocator. The one documented
// scheduler failure mode: no allocator to hand out task records.
func (s *Scheduler) Init(alloc Allocator) error {
	if alloc == nil {
		return ErrNoAllocator
	}
	s.alloc = alloc
	s.runTree = tree{}
	s.waitTree = tree{}
	s.rqueueTicks = 0
	s.tasksRunQueue = 0
	s.niceTasks = 0
	s.nbTasks = 0
	return nil
}

// NewTask allocates a task, wires its handler and context, and marks it
// WokenInit. It is not queued anywhere until the caller calls Wakeup or
// Queue.
func (s *Scheduler) NewTask(process func(*Task) *Task, ctx any) (*Task, error) {
	if s.alloc == nil {
		return nil, ErrNotInitialized
	}
	t := s.alloc.New()
	*t = Task{
		state:   WokenInit,
		nice:    0,
		expire:  Eternity,
		process: process,
		context: ctx,
	}
	t.rq.owner = t
	t.wq.owner = t
	s.nbTasks++
	return t, nil
}

// FreeTask returns a task's storage to the allocator. Preconditions: the
// task is not RUNNING and both its queue nodes are unlinked.
func (s *Scheduler) FreeTask(t *Task) error {
	if t == nil {
		return nil
	}
	if t.Running() {
		return ErrTaskRunning
	}
	if t.rq.linked || t.wq.linked {
		return ErrTaskLinked
	}
	s.alloc.Free(t)
	s.nbTasks--
	return nil
}

// Wakeup ensures t is on the run queue with reason carried into its state.
// A task that is currently RUNNING cannot be re-inserted into the tree
// safely (collectBatch already detached it), so the reason is folded into
// pending_state and promoted on the next __wakeup. A task that is merely
// run-queue-linked (queued but not yet executing) is not re-inserted either,
// but it also hasn't read its state yet, so the reason can be OR-ed
// straight into state instead of waiting in pending_state.
func (s *Scheduler) Wakeup(t *Task, reason State) {
	if t == nil {
		return
	}
	reason &= reasonMask
	if t.Running() {
		t.pendingState |= reason
		return
	}
	if t.rq.linked {
		t.state |= reason
		return
	}
	s.wakeup(t, reason)
}

// wakeup is __wakeup from spec.md §4.4: unconditionally place t on the run
// queue, applying the nice bias to its key.
func (s *Scheduler) wakeup(t *Task, reason State) {
	s.tasksRunQueue++
	s.rqueueTicks++
	key := s.rqueueTicks
	nice := s.clampNice(t.nice)
	if nice != 0 {
		offset := int64(s.tasksRunQueue) * int64(nice) / 32
		key = uint32(int64(key) + offset) // wrap permitted
		s.niceTasks++
	}
	t.rq.key = key
	t.state = t.pendingState
	t.pendingState = 0
	t.state |= reason
	s.runTree.insert(&t.rq)
}

// Queue places or repositions t in the wait queue according to t.Expire().
// A task whose Expire is Eternity is removed from the wait queue (if
// present) and left unqueued. Per spec.md §9's resolved open question, a
// deadline that is already in the past is still inserted — the next sweep
// fires it immediately rather than silently dropping it.
func (s *Scheduler) Queue(t *Task) {
	if t == nil {
		return
	}
	if t.wq.linked {
		s.waitTree.remove(&t.wq)
	}
	if !IsSet(t.expire) {
		return
	}
	t.wq.key = t.expire
	s.waitTree.insert(&t.wq)
}

// UnlinkWQ removes t from the wait queue; idempotent.
func (s *Scheduler) UnlinkWQ(t *Task) {
	if t == nil {
		return
	}
	s.waitTree.remove(&t.wq)
}

// UnlinkRQ removes t from the run queue; idempotent.
func (s *Scheduler) UnlinkRQ(t *Task) {
	if t == nil || !t.rq.linked {
		return
	}
	s.runTree.remove(&t.rq)
	s.tasksRunQueue--
	if s.clampNice(t.nice) != 0 {
		s.niceTasks--
	}
}

// WakeExpiredTasks scans the wait queue and wakes everything whose
// deadline has passed as of now, returning the next wakeup deadline (or
// Eternity if the wait queue is empty) for the I/O poller to sleep by.
func (s *Scheduler) WakeExpiredTasks(ctx context.Context, now uint32) uint32 {
	span := trace.Begin(s.tracer, trace.ScopeDriver, "wake_expired_tasks", trace.CurrentSpan(ctx).SpanID)
	defer span.End("")

	for {
		n := s.waitTree.lookupGE(now - LookBack)
		if n == nil {
			n = s.waitTree.first()
		}
		if n == nil {
			return Eternity
		}
		if IsLT(now, n.key) {
			return n.key
		}
		task := n.owner
		if !IsExpired(task.expire, now) {
			// Stale tree key: the task was re-armed for a later deadline
			// without re-keying (the inline fast path defers that). Drop
			// it if it's now eternal, otherwise re-queue at the correct
			// key and keep scanning from the new position.
			s.waitTree.remove(n)
			if IsSet(task.expire) {
				s.Queue(task)
			}
			continue
		}
		s.waitTree.remove(n)
		s.Wakeup(task, WokenTimer)
	}
}

// ProcessRunnableTasks drains a bounded prefix of the run queue, invoking
// each task's handler and re-queuing it according to the result.
func (s *Scheduler) ProcessRunnableTasks(ctx context.Context) {
	if s.tasksRunQueue == 0 {
		return
	}
	span := trace.Begin(s.tracer, trace.ScopeDriver, "process_runnable_tasks", trace.CurrentSpan(ctx).SpanID)
	defer span.End("")

	budget := s.tasksRunQueue
	if budget > s.maxBudget {
		budget = s.maxBudget
	}
	if s.niceTasks > 0 {
		budget = (budget + 3) / 4
	}

	for budget > 0 {
		batch := s.collectBatch()
		if len(batch) == 0 {
			break
		}
		batchSpan := trace.Begin(s.tracer, trace.ScopePass, "batch", span.ID())
		for _, t := range batch {
			taskSpan := trace.Begin(s.tracer, trace.ScopeModule, "task", batchSpan.ID())
			result := t.process(t)
			taskSpan.End("")
			if result == nil {
				// Handler deleted the task: it must already have
				// unlinked both queues and released storage.
				continue
			}
			result.state &^= Running
			if result.pendingState != 0 {
				s.wakeup(result, 0)
			} else {
				s.Queue(result)
			}
		}
		batchSpan.End("")
		budget -= len(batch)
	}
}

// clampNice restricts a task's nice value to the deployment's configured
// range before it's used to bias a run-queue key; it never mutates the
// task's own Nice().
func (s *Scheduler) clampNice(nice int32) int32 {
	switch {
	case nice < s.niceMin:
		return s.niceMin
	case nice > s.niceMax:
		return s.niceMax
	default:
		return nice
	}
}

// collectBatch detaches up to batchSize tasks from the head of the run
// queue, marking each RUNNING before any handler runs, so handlers can
// wake siblings or delete themselves without the scheduler revisiting the
// tree mid-batch.
func (s *Scheduler) collectBatch() []*Task {
	batch := make([]*Task, 0, s.batchSize)

	n := s.runTree.lookupGE(s.rqueueTicks - LookBack)
	rewound := false
	if n == nil {
		n = s.runTree.first()
		rewound = true
	}

	for n != nil && len(batch) < s.batchSize {
		next := s.runTree.next(n)
		task := n.owner

		s.runTree.remove(n)
		s.tasksRunQueue--
		if s.clampNice(task.nice) != 0 {
			s.niceTasks--
		}
		task.state |= Running
		task.pendingState = 0
		task.calls++
		batch = append(batch, task)

		n = next
		if n == nil {
			if rewound {
				// A second wrap within one batch collection would spin
				// forever chasing First() repeatedly; stop instead.
				break
			}
			n = s.runTree.first()
			rewound = true
		}
	}
	return batch
}

// TasksRunQueue returns the number of run-queue-linked tasks.
func (s *Scheduler) TasksRunQueue() int { return s.tasksRunQueue }

// NiceTasks returns the number of run-queue-linked tasks with a non-zero
// nice bias.
func (s *Scheduler) NiceTasks() int { return s.niceTasks }

// NbTasks returns the number of live task records.
func (s *Scheduler) NbTasks() int { return s.nbTasks }

// RqueueTicks returns the current insertion-counter value.
func (s *Scheduler) RqueueTicks() uint32 { return s.rqueueTicks }

// Snapshot captures point-in-time scheduler telemetry for the ui and
// snapshot modules.
type Snapshot struct {
	RunQueueDepth  int
	WaitQueueDepth int
	NiceTasks      int
	NbTasks        int
	RqueueTicks    uint32
}

// waitQueueDepth walks the wait tree to report its size; this is O(n) and
// intended for telemetry snapshots, not the hot path.
func (s *Scheduler) waitQueueDepth() int {
	count := 0
	for n := s.waitTree.first(); n != nil; n = s.waitTree.next(n) {
		count++
	}
	return count
}

// TakeSnapshot returns the scheduler's current telemetry.
func (s *Scheduler) TakeSnapshot() Snapshot {
	return Snapshot{
		RunQueueDepth:  s.tasksRunQueue,
		WaitQueueDepth: s.waitQueueDepth(),
		NiceTasks:      s.niceTasks,
		NbTasks:        s.nbTasks,
		RqueueTicks:    s.rqueueTicks,
	}
}
