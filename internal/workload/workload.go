// Package workload supplies reference handler bodies the scheduler core
// never provides itself (spec.md §6's "per-task handler bodies" external
// collaborator). See SPEC_FULL.md §5's workload module.
package workload

import (
	"reactor/internal/netio"
	"reactor/internal/sched"
)

// HealthCheckInterval is the default period, in ticks (milliseconds under
// clock.Real), between liveness reports.
const HealthCheckInterval = 5000

// HealthCheck returns a handler that re-arms its own Expire every interval
// ticks (HealthCheckInterval when interval is 0) and calls report on each
// invocation. It
// exercises Queue/wait-queue re-arming: spec.md §4.2's periodic-timer
// pattern.
func HealthCheck(s *sched.Scheduler, report func(), interval uint32) func(*sched.Task) *sched.Task {
	if interval == 0 {
		interval = HealthCheckInterval
	}
	return func(self *sched.Task) *sched.Task {
		report()
		self.SetExpire(self.Expire() + interval)
		s.Queue(self)
		return self
	}
}

// ConnState is the three-phase lifecycle one EchoConn handler walks: accept
// the peer, read its next message, and echo it back, yielding to the
// scheduler between phases via Wakeup(WokenIO).
type ConnState uint8

const (
	ConnAccepting ConnState = iota
	ConnReading
	ConnWriting
	ConnDone
)

// EchoConnContext is the per-task context object an EchoConn handler reads
// from Task.Context(). Buf holds the bytes read in ConnReading, trimmed as
// ConnWriting flushes them back out.
type EchoConnContext struct {
	FD     int32
	State  ConnState
	Poller *netio.Poller
	Buf    []byte
}

const echoReadSize = 4096

// EchoConn returns a handler that wraps one accepted connection: it reads
// one message, echoes it back, and closes, registering/unregistering the
// fd with the poller for WokenIO under each of the three phases in turn.
// The connection-driving loop in cmd/reactor re-enters the task via
// Scheduler.Wakeup when netio reports readiness. Exercises Wakeup
// re-entrancy under RUNNING (spec.md §4.6): a peer write completing while
// the handler is still finishing its current invocation folds into
// pending_state rather than being dropped.
func EchoConn(onClose func(*EchoConnContext)) func(*sched.Task) *sched.Task {
	return func(self *sched.Task) *sched.Task {
		ctx, ok := self.Context().(*EchoConnContext)
		if !ok || ctx == nil {
			return nil
		}
		switch ctx.State {
		case ConnAccepting:
			ctx.Poller.Register(ctx.FD, netio.Read)
			ctx.State = ConnReading
			return self

		case ConnReading:
			buf := make([]byte, echoReadSize)
			n, err := netio.Read(ctx.FD, buf)
			if err == netio.ErrWouldBlock {
				return self // spurious wakeup; keep waiting for WokenIO
			}
			if err != nil || n == 0 {
				return closeEchoConn(ctx, onClose)
			}
			ctx.Buf = buf[:n]
			ctx.Poller.Unregister(ctx.FD, netio.Read)
			ctx.Poller.Register(ctx.FD, netio.Write)
			ctx.State = ConnWriting
			return self

		case ConnWriting:
			n, err := netio.Write(ctx.FD, ctx.Buf)
			if err == netio.ErrWouldBlock {
				return self
			}
			if err != nil {
				return closeEchoConn(ctx, onClose)
			}
			ctx.Buf = ctx.Buf[n:]
			if len(ctx.Buf) > 0 {
				return self // partial write; stay registered for the next WokenIO
			}
			return closeEchoConn(ctx, onClose)

		default:
			return nil
		}
	}
}

func closeEchoConn(ctx *EchoConnContext, onClose func(*EchoConnContext)) *sched.Task {
	ctx.Poller.Unregister(ctx.FD, netio.Read)
	ctx.Poller.Unregister(ctx.FD, netio.Write)
	netio.Close(ctx.FD)
	ctx.State = ConnDone
	if onClose != nil {
		onClose(ctx)
	}
	return nil
}
