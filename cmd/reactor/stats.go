package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"reactor/internal/clock"
	"reactor/internal/pool"
	"reactor/internal/sched"
	"reactor/internal/snapshot"
	"reactor/internal/ui"
	"reactor/internal/workload"
)

var (
	statsFormat string
	statsWatch  bool
	statsUI     string
)

func init() {
	statsCmd.Flags().StringVar(&statsFormat, "format", "text", "output format (text|json|msgpack)")
	statsCmd.Flags().BoolVar(&statsWatch, "watch", false, "open a live bubbletea dashboard instead of printing once")
	statsCmd.Flags().StringVar(&statsUI, "ui", "auto", "when --watch is set, whether to draw the dashboard (auto|on|off); auto falls back to one-shot text on a non-terminal stdout")
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Report scheduler telemetry, once or as a live dashboard",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, clk, err := newDemoScheduler()
		if err != nil {
			return err
		}

		mode, err := readUIMode(statsUI)
		if err != nil {
			return fmt.Errorf("stats: %w", err)
		}

		if statsWatch {
			if !shouldUseTUI(mode) {
				fmt.Fprintln(cmd.ErrOrStderr(), "stats: --watch requested but stdout isn't a terminal and --ui=on wasn't set; falling back to one-shot output")
			} else {
				feed := make(chan sched.Snapshot, 1)
				go ui.FeedSnapshots(cmd.Context(), s, clk, feed)
				return ui.Run(feed)
			}
		}

		snap := s.TakeSnapshot()
		rec := snapshot.FromScheduler(snap, clk.NowMs())

		switch statsFormat {
		case "json":
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(rec)
		case "msgpack":
			b, err := snapshot.Marshal(rec)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(b)
			return err
		case "text":
			fmt.Fprintf(cmd.OutOrStdout(), "run_queue=%d wait_queue=%d nice_tasks=%d nb_tasks=%d rqueue_ticks=%d\n",
				snap.RunQueueDepth, snap.WaitQueueDepth, snap.NiceTasks, snap.NbTasks, snap.RqueueTicks)
			return nil
		default:
			return fmt.Errorf("stats: unsupported format %q (must be text, json, or msgpack)", statsFormat)
		}
	},
}

// newDemoScheduler wires up the same health-check task as "reactor serve"
// (without the echo proxy) so stats has something to report against.
func newDemoScheduler() (*sched.Scheduler, *clock.Real, error) {
	s := sched.New()
	if err := s.Init(pool.NewTasks(0)); err != nil {
		return nil, nil, fmt.Errorf("stats: %w", err)
	}
	clk := &clock.Real{}

	health, err := s.NewTask(workload.HealthCheck(s, func() {}, workload.HealthCheckInterval), nil)
	if err != nil {
		return nil, nil, fmt.Errorf("stats: %w", err)
	}
	health.SetExpire(clk.NowMs() + workload.HealthCheckInterval)
	s.Queue(health)

	return s, clk, nil
}
