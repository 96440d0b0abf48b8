package sched

import (
	"context"
	"testing"
)

// simpleAlloc is a minimal allocator for tests; production code uses
// reactor/internal/pool instead.
type simpleAlloc struct{}

func (simpleAlloc) New() *Task   { return new(Task) }
func (simpleAlloc) Free(*Task) {}

func newTestScheduler(t *testing.T) *Scheduler {
	t.Helper()
	s := New()
	if err := s.Init(simpleAlloc{}); err != nil {
		t.Fatalf("Init: %v", err)
	}
	return s
}

func TestInitRequiresAllocator(t *testing.T) {
	s := New()
	if err := s.Init(nil); err != ErrNoAllocator {
		t.Fatalf("Init(nil) = %v, want ErrNoAllocator", err)
	}
}

func TestSingleTimer(t *testing.T) {
	s := newTestScheduler(t)
	calls := 0
	task, err := s.NewTask(func(self *Task) *Task {
		calls++
		return nil
	}, nil)
	if err != nil {
		t.Fatalf("NewTask: %v", err)
	}
	task.SetExpire(100)
	s.Queue(task)

	now := uint32(0)
	for {
		next := s.WakeExpiredTasks(context.Background(), now)
		if next > now && IsSet(next) {
			now = next
			continue
		}
		if !IsSet(next) {
			break
		}
		break
	}
	if now != 100 {
		t.Fatalf("expected sweep to land on tick 100, got %d", now)
	}
	s.ProcessRunnableTasks(context.Background())
	if calls != 1 {
		t.Fatalf("handler invoked %d times, want 1", calls)
	}
	if task.InRunQueue() || task.InWaitQueue() {
		t.Fatalf("deleted task should be unlinked from both queues")
	}
}

func TestFIFOFairness(t *testing.T) {
	s := newTestScheduler(t)
	var order []int
	tasks := make([]*Task, 5)
	for i := range tasks {
		idx := i
		task, err := s.NewTask(func(self *Task) *Task {
			order = append(order, idx)
			return nil
		}, nil)
		if err != nil {
			t.Fatalf("NewTask: %v", err)
		}
		tasks[i] = task
	}
	for _, task := range tasks {
		s.Wakeup(task, WokenOther)
	}
	s.ProcessRunnableTasks(context.Background())

	want := []int{0, 1, 2, 3, 4}
	if len(order) != len(want) {
		t.Fatalf("got %v want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("got %v want %v", order, want)
		}
	}
}

func TestNiceBiasDelaysHighNiceTask(t *testing.T) {
	s := newTestScheduler(t)
	var order []string

	peers := make([]*Task, 64)
	for i := range peers {
		task, err := s.NewTask(func(self *Task) *Task {
			order = append(order, "peer")
			return nil
		}, nil)
		if err != nil {
			t.Fatalf("NewTask: %v", err)
		}
		peers[i] = task
	}
	x, err := s.NewTask(func(self *Task) *Task {
		order = append(order, "x")
		return nil
	}, nil)
	if err != nil {
		t.Fatalf("NewTask: %v", err)
	}
	x.SetNice(1024)

	for _, p := range peers {
		s.Wakeup(p, WokenOther)
	}
	s.Wakeup(x, WokenOther)

	// The budget is quartered because a niced task is present, so a single
	// ProcessRunnableTasks call only drains a fraction of the 65 queued
	// tasks; x's key is pushed far past that fraction by its nice bias.
	s.ProcessRunnableTasks(context.Background())

	for _, name := range order {
		if name == "x" {
			t.Fatalf("nice=+1024 task ran within the same round as its nice=0 peers: %v", order)
		}
	}
}

func TestSelfRewakeRunsAfterCurrentBatch(t *testing.T) {
	s := newTestScheduler(t)
	var self *Task
	var err error
	seen := 0
	self, err = s.NewTask(func(t *Task) *Task {
		seen++
		if seen == 1 {
			s.Wakeup(self, WokenOther)
		}
		return t
	}, nil)
	if err != nil {
		t.Fatalf("NewTask: %v", err)
	}
	s.Wakeup(self, WokenInit)

	s.ProcessRunnableTasks(context.Background())
	if seen != 1 {
		t.Fatalf("self-rewoken task ran %d times within the triggering batch, want 1", seen)
	}
	if !self.InRunQueue() {
		t.Fatalf("self-wakeup issued mid-handler should land the task back on the run queue")
	}
	if self.State()&WokenOther == 0 {
		t.Fatalf("expected the self-wakeup reason promoted into state, got %v", self.State())
	}

	s.ProcessRunnableTasks(context.Background())
	if seen != 2 {
		t.Fatalf("self-rewoken task should run again on the next drain, got %d calls", seen)
	}
}

func TestWrapAroundPreservesInsertionOrder(t *testing.T) {
	s := newTestScheduler(t)
	s.rqueueTicks = ^uint32(0) - 1 // seed close to the wrap boundary

	var order []int
	a, _ := s.NewTask(func(self *Task) *Task { order = append(order, 0); return nil }, nil)
	b, _ := s.NewTask(func(self *Task) *Task { order = append(order, 1); return nil }, nil)
	s.Wakeup(a, WokenOther)
	s.Wakeup(b, WokenOther)

	s.ProcessRunnableTasks(context.Background())
	if len(order) != 2 || order[0] != 0 || order[1] != 1 {
		t.Fatalf("wrap-around broke insertion order: %v", order)
	}
}

func TestRescheduledTimerFastPath(t *testing.T) {
	s := newTestScheduler(t)
	fired := uint32(0)
	task, _ := s.NewTask(func(self *Task) *Task {
		fired = 1
		return nil
	}, nil)
	task.SetExpire(100)
	s.Queue(task)

	// Reschedule further out without re-queueing (the fast path spec.md
	// §4.2 permits).
	task.SetExpire(500)

	now := uint32(100)
	next := s.WakeExpiredTasks(context.Background(), now)
	if fired != 0 {
		t.Fatalf("task fired early at tick 100")
	}
	if !IsSet(next) {
		t.Fatalf("expected a future deadline, got eternity")
	}

	now = next
	for IsSet(next) && next <= 500 {
		next = s.WakeExpiredTasks(context.Background(), now)
		if fired != 0 {
			break
		}
		if IsSet(next) {
			now = next
		}
	}
	s.ProcessRunnableTasks(context.Background())
	if fired == 0 {
		t.Fatalf("task never fired")
	}
}

func TestIdempotentWakeupMergesReasonsBeforeRun(t *testing.T) {
	s := newTestScheduler(t)
	var gotState State
	task, _ := s.NewTask(func(self *Task) *Task {
		gotState = self.State()
		return nil
	}, nil)

	s.Wakeup(task, WokenOther)
	// Already run-queue-linked but not yet running: the second reason
	// merges directly into state rather than waiting in pendingState,
	// since nothing has read state yet and pendingState would be
	// discarded by collectBatch before the handler ever saw it.
	s.Wakeup(task, WokenIO)

	if task.PendingState() != 0 {
		t.Fatalf("queued-but-not-running wakeup should not use pendingState, got %v", task.PendingState())
	}
	if task.State()&WokenIO == 0 || task.State()&WokenOther == 0 {
		t.Fatalf("expected both reasons merged into state before run, got %v", task.State())
	}
	s.ProcessRunnableTasks(context.Background())
	if gotState&WokenOther == 0 || gotState&WokenIO == 0 {
		t.Fatalf("expected both wakeup reasons visible to the handler, got %v", gotState)
	}
}

func TestReentrantWakeupDuringRunUsesPendingState(t *testing.T) {
	s := newTestScheduler(t)
	var self *Task
	var err error
	var stateOnSecondCall State
	calls := 0
	self, err = s.NewTask(func(task *Task) *Task {
		calls++
		if calls == 1 {
			// Reentrant wakeup while RUNNING: must not be lost, and
			// must not be visible until the next invocation.
			s.Wakeup(self, WokenSignal)
			if self.PendingState()&WokenSignal == 0 {
				t.Fatalf("expected reentrant wakeup to land in pendingState while running")
			}
			return task
		}
		stateOnSecondCall = task.State()
		return nil
	}, nil)
	if err != nil {
		t.Fatalf("NewTask: %v", err)
	}
	s.Wakeup(self, WokenOther)
	s.ProcessRunnableTasks(context.Background())
	s.ProcessRunnableTasks(context.Background())

	if calls != 2 {
		t.Fatalf("expected exactly 2 invocations, got %d", calls)
	}
	if stateOnSecondCall&WokenSignal == 0 {
		t.Fatalf("expected the reentrant wakeup's reason promoted by the second run, got %v", stateOnSecondCall)
	}
}

func TestBudgetBound(t *testing.T) {
	s := newTestScheduler(t)
	const n = 250
	ran := 0
	for i := 0; i < n; i++ {
		task, _ := s.NewTask(func(self *Task) *Task {
			ran++
			return nil
		}, nil)
		s.Wakeup(task, WokenOther)
	}
	s.ProcessRunnableTasks(context.Background())
	// The budget (200) is only checked between whole batches of 16, so the
	// actual cutoff can overshoot to the next batch boundary; it must never
	// reach all 250 queued tasks in a single call.
	if ran >= n {
		t.Fatalf("processed %d of %d tasks in one call; budget should have cut it short", ran, n)
	}
	if ran < 200 {
		t.Fatalf("processed only %d tasks, expected at least the 200 budget", ran)
	}
}

func TestSetLimitsAppliesBatchSizeAndBudget(t *testing.T) {
	s := newTestScheduler(t)
	s.SetLimits(Limits{BatchSize: 4, Budget: 4, NiceMin: -1024, NiceMax: 1024})

	ran := 0
	for i := 0; i < 20; i++ {
		task, _ := s.NewTask(func(self *Task) *Task {
			ran++
			return nil
		}, nil)
		s.Wakeup(task, WokenOther)
	}
	s.ProcessRunnableTasks(context.Background())

	// With Budget configured to 4 (below the default 200), a single call
	// must stop well short of draining all 20 queued tasks.
	if ran == 0 || ran >= 20 {
		t.Fatalf("processed %d of 20 tasks; a budget of 4 should have cut this short", ran)
	}
}

func TestSetLimitsZeroValueFallsBackToDefaults(t *testing.T) {
	s := newTestScheduler(t)
	s.SetLimits(Limits{}) // zero Limits{} means "use spec defaults", not "cap at 0"

	ran := 0
	for i := 0; i < 250; i++ {
		task, _ := s.NewTask(func(self *Task) *Task {
			ran++
			return nil
		}, nil)
		s.Wakeup(task, WokenOther)
	}
	s.ProcessRunnableTasks(context.Background())
	if ran < 200 {
		t.Fatalf("processed only %d tasks after SetLimits(Limits{}), want the default 200 budget to still apply", ran)
	}
}

func TestSetLimitsNarrowsNiceClampWithoutMutatingTaskNice(t *testing.T) {
	s := newTestScheduler(t)
	s.SetLimits(Limits{BatchSize: 16, Budget: 200, NiceMin: -10, NiceMax: 10})

	task, _ := s.NewTask(func(self *Task) *Task { return nil }, nil)
	task.SetNice(1024) // Task.SetNice keeps spec.md's absolute +-1024 bound

	s.Wakeup(task, WokenOther)
	if got := s.NiceTasks(); got != 1 {
		t.Fatalf("NiceTasks() = %d, want 1 after waking a task clamped to a non-zero nice", got)
	}
	if task.Nice() != 1024 {
		t.Fatalf("SetLimits must not rewrite the task's own Nice(), got %d", task.Nice())
	}
}

func TestFreeTaskPreconditions(t *testing.T) {
	s := newTestScheduler(t)
	task, _ := s.NewTask(func(self *Task) *Task { return nil }, nil)
	s.Wakeup(task, WokenInit)
	if err := s.FreeTask(task); err != ErrTaskLinked {
		t.Fatalf("FreeTask on linked task = %v, want ErrTaskLinked", err)
	}
	s.UnlinkRQ(task)
	if err := s.FreeTask(task); err != nil {
		t.Fatalf("FreeTask: %v", err)
	}
}
