package ui

import (
	"context"
	"testing"
	"time"

	"reactor/internal/clock"
	"reactor/internal/pool"
	"reactor/internal/sched"
)

func TestTruncateShortensLongLabels(t *testing.T) {
	got := truncate("wait queue depth", 8)
	if runeCount(got) > 8 {
		t.Fatalf("truncate(..., 8) = %q, width %d exceeds 8", got, runeCount(got))
	}
	if got := truncate("short", 10); got != "short" {
		t.Fatalf("truncate should leave short strings alone, got %q", got)
	}
}

func runeCount(s string) int {
	n := 0
	for range s {
		n++
	}
	return n
}

func TestApplySnapshotTracksLatestAndRate(t *testing.T) {
	m := NewModel("test", nil).(*model)
	m.applySnapshot(sched.Snapshot{RunQueueDepth: 1000, WaitQueueDepth: 2, NiceTasks: 1, NbTasks: 3, RqueueTicks: 10})
	if !m.haveFirst {
		t.Fatalf("applySnapshot should mark haveFirst")
	}
	if m.latest.RunQueueDepth != 1000 {
		t.Fatalf("latest snapshot not recorded")
	}

	m.applySnapshot(sched.Snapshot{RqueueTicks: 20})
	if m.rateHz < 0 {
		t.Fatalf("rateHz should never be negative, got %v", m.rateHz)
	}
}

func TestFeedSnapshotsClosesOutOnCancel(t *testing.T) {
	s := sched.New()
	if err := s.Init(pool.NewTasks(0)); err != nil {
		t.Fatalf("Init: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	out := make(chan sched.Snapshot, 1)

	done := make(chan struct{})
	go func() {
		FeedSnapshots(ctx, s, clock.NewVirtual(0), out)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("FeedSnapshots did not return after ctx cancellation")
	}
	if _, ok := <-out; ok {
		t.Fatalf("out channel should be closed once FeedSnapshots returns")
	}
}
