package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"reactor/internal/clock"
	"reactor/internal/config"
	"reactor/internal/netio"
	"reactor/internal/pool"
	"reactor/internal/sched"
	"reactor/internal/trace"
	"reactor/internal/workload"
)

var (
	serveConfigPath string
	serveHealthMs   uint32
	serveListenPort int
)

func init() {
	serveCmd.Flags().StringVar(&serveConfigPath, "config-file", "", "path to a reactor.toml config file (overrides --config)")
	serveCmd.Flags().Uint32Var(&serveHealthMs, "health-interval", workload.HealthCheckInterval, "health check period in milliseconds")
	serveCmd.Flags().IntVar(&serveListenPort, "listen-port", 7070, "TCP port for the demo echo proxy (0 disables it)")
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the demo echo proxy and health check against the scheduler's driver loop",
	RunE: func(cmd *cobra.Command, args []string) error {
		cleanup, err := setupTracing(cmd)
		if err != nil {
			return err
		}
		defer cleanup()

		colorFlag, _ := cmd.Root().PersistentFlags().GetString("color")
		color.NoColor = !(colorFlag == "on" || (colorFlag == "auto" && isTerminal(os.Stdout)))

		cfgPath := serveConfigPath
		if cfgPath == "" {
			cfgPath, _ = cmd.Root().PersistentFlags().GetString("config")
		}
		cfg := config.Default()
		if cfgPath != "" {
			cfg, err = config.Load(cfgPath)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}
		}

		s := sched.New()
		s.SetTracer(trace.FromContext(cmd.Context()))
		if err := s.Init(pool.NewTasks(0)); err != nil {
			return fmt.Errorf("serve: %w", err)
		}
		s.SetLimits(sched.Limits{
			BatchSize: cfg.Scheduler.BatchSize,
			Budget:    cfg.Scheduler.Budget,
			NiceMin:   cfg.Scheduler.NiceMin,
			NiceMax:   cfg.Scheduler.NiceMax,
		})

		var clk clock.Clock
		if cfg.Scheduler.ClockMode == "virtual" {
			clk = clock.NewVirtual(0)
		} else {
			clk = &clock.Real{}
		}

		ticks := 0
		health, err := s.NewTask(workload.HealthCheck(s, func() {
			ticks++
			fmt.Fprintf(cmd.OutOrStdout(), "%s health check #%d (run queue depth %d)\n",
				color.GreenString("reactor:"), ticks, s.TasksRunQueue())
		}, serveHealthMs), nil)
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
		health.SetExpire(clk.NowMs() + serveHealthMs)
		s.Queue(health)

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		// The demo echo proxy needs real wall-clock I/O readiness from
		// poll(2); it's skipped under a virtual clock, which exists for
		// deterministic driver-loop demos without a live network.
		var listenFD int32 = -1
		var poller *netio.Poller
		if serveListenPort != 0 && cfg.Scheduler.ClockMode != "virtual" {
			listenFD, err = netio.Listen(serveListenPort)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}
			defer netio.Close(listenFD)
			poller = netio.New()
			poller.Register(listenFD, netio.Read)
			fmt.Fprintf(cmd.OutOrStdout(), "%s echo proxy listening on :%d\n", color.GreenString("reactor:"), serveListenPort)
		}

		fmt.Fprintln(cmd.OutOrStdout(), "reactor: serving, press Ctrl-C to stop")
		if poller != nil {
			runProxyLoop(ctx, s, clk, listenFD, poller)
		} else {
			runDriverLoop(ctx, s, clk)
		}
		return nil
	},
}

// runDriverLoop is the interleaving spec.md §2 describes: sweep expired
// timers, drain the run queue, then sleep until the next deadline (or a
// fixed poll tick if nothing is scheduled).
func runDriverLoop(ctx context.Context, s *sched.Scheduler, clk clock.Clock) {
	const idlePollMs = 250
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		now := clk.NowMs()
		next := s.WakeExpiredTasks(ctx, now)
		s.ProcessRunnableTasks(ctx)

		if !sched.IsSet(next) {
			clk.SleepUntilMs(now + idlePollMs)
			continue
		}
		clk.SleepUntilMs(next)
	}
}

// runProxyLoop is runDriverLoop's real-I/O counterpart: each turn also
// accepts pending connections off listenFD and turns poller readiness
// into Wakeup(WokenIO) calls against the matching workload.EchoConn task,
// using the wait queue's next deadline to bound how long the poll(2) call
// blocks so timers still fire on time.
func runProxyLoop(ctx context.Context, s *sched.Scheduler, clk clock.Clock, listenFD int32, poller *netio.Poller) {
	const idlePollMs = 250
	conns := make(map[int32]*sched.Task)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		now := clk.NowMs()
		next := s.WakeExpiredTasks(ctx, now)
		s.ProcessRunnableTasks(ctx)

		timeoutMs := int64(idlePollMs)
		if sched.IsSet(next) {
			if delta := int32(next - now); int64(delta) < timeoutMs {
				timeoutMs = int64(delta)
				if timeoutMs < 0 {
					timeoutMs = 0
				}
			}
		}

		ready, err := poller.Poll(timeoutMs)
		if err != nil {
			continue
		}
		for _, r := range ready {
			if r.FD == listenFD {
				acceptPending(s, listenFD, poller, conns)
				continue
			}
			if task, ok := conns[r.FD]; ok && (r.Readable || r.Writable) {
				s.Wakeup(task, sched.WokenIO)
			}
		}
	}
}

// acceptPending drains every connection currently pending on listenFD,
// spawning one workload.EchoConn task per accepted fd.
func acceptPending(s *sched.Scheduler, listenFD int32, poller *netio.Poller, conns map[int32]*sched.Task) {
	for {
		connFD, err := netio.Accept(listenFD)
		if err == netio.ErrWouldBlock {
			return
		}
		if err != nil {
			return
		}

		connCtx := &workload.EchoConnContext{FD: connFD, State: workload.ConnAccepting, Poller: poller}
		task, err := s.NewTask(workload.EchoConn(func(c *workload.EchoConnContext) {
			delete(conns, c.FD)
		}), connCtx)
		if err != nil {
			netio.Close(connFD)
			continue
		}
		conns[connFD] = task
		s.Wakeup(task, sched.WokenInit)
	}
}
