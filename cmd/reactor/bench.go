package main

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"reactor/internal/pool"
	"reactor/internal/sched"
)

var (
	benchShards      int
	benchTasksPerRun int
	benchRounds      int
)

func init() {
	benchCmd.Flags().IntVar(&benchShards, "shards", 4, "number of independent schedulers to run in parallel")
	benchCmd.Flags().IntVar(&benchTasksPerRun, "tasks", 10_000, "tasks woken per shard per round")
	benchCmd.Flags().IntVar(&benchRounds, "rounds", 10, "number of ProcessRunnableTasks rounds per shard")
}

// benchCmd demonstrates spec.md §5's sharding workaround for multi-core
// operation: one *sched.Scheduler per goroutine, no shared state, joined at
// the end. This is demonstration code, not a scheduler capability — the
// scheduler itself stays single-threaded, ported in spirit from the
// teacher's internal/driver errgroup fan-out pattern.
var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "Sharded throughput demonstration (one scheduler per goroutine)",
	RunE: func(cmd *cobra.Command, args []string) error {
		if benchShards <= 0 {
			return fmt.Errorf("bench: --shards must be positive, got %d", benchShards)
		}

		var totalCalls int64
		g, _ := errgroup.WithContext(cmd.Context())
		g.SetLimit(benchShards)

		for shard := 0; shard < benchShards; shard++ {
			g.Go(func(shard int) func() error {
				return func() error {
					calls, err := runBenchShard(benchTasksPerRun, benchRounds)
					if err != nil {
						return fmt.Errorf("shard %d: %w", shard, err)
					}
					atomic.AddInt64(&totalCalls, calls)
					return nil
				}
			}(shard))
		}

		if err := g.Wait(); err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "reactor bench: %d shards, %d handler invocations total\n",
			benchShards, atomic.LoadInt64(&totalCalls))
		return nil
	},
}

func runBenchShard(tasksPerRound, rounds int) (int64, error) {
	s := sched.New()
	if err := s.Init(pool.NewTasks(0)); err != nil {
		return 0, err
	}

	ctx := context.Background()
	var calls int64
	for round := 0; round < rounds; round++ {
		for i := 0; i < tasksPerRound; i++ {
			task, err := s.NewTask(func(self *sched.Task) *sched.Task {
				atomic.AddInt64(&calls, 1)
				return nil
			}, nil)
			if err != nil {
				return calls, err
			}
			s.Wakeup(task, sched.WokenOther)
		}
		for s.TasksRunQueue() > 0 {
			s.ProcessRunnableTasks(ctx)
		}
	}
	return calls, nil
}
