// Package trace provides a tracing subsystem for the scheduler.
//
// The trace package tracks driver turns, run-queue batches, and individual
// handler invocations, to help diagnose scheduler stalls and starvation
// without paying tracing cost on the hot path when disabled.
//
// # Usage
//
// Enable tracing via command-line flags:
//
//	reactor serve --trace=- --trace-level=phase
//
// # Architecture
//
// The package provides several tracer implementations:
//
//   - NopTracer: Zero-overhead no-op tracer when disabled
//   - StreamTracer: Immediate write to output (file/stderr)
//   - RingTracer: Circular buffer for crash dumps
//   - MultiTracer: Combines multiple tracers
//
// # Levels
//
// Tracing verbosity is controlled by levels:
//
//   - LevelOff: No tracing
//   - LevelError: No live span events (ShouldEmit rejects every scope)
//   - LevelPhase: Driver turns and batch boundaries
//   - LevelDetail: Adds per-handler (per-task) events
//   - LevelDebug: Everything, including per-tree-operation events
//
// # Scopes
//
// Events are categorized by scope:
//
//   - ScopeDriver: one WakeExpiredTasks/ProcessRunnableTasks driver turn
//   - ScopePass: one batch collection within ProcessRunnableTasks
//   - ScopeModule: one handler invocation
//   - ScopeNode: a single tree operation (debug-level only)
//
// # Context Propagation
//
// Tracers are propagated via context:
//
//	ctx = trace.WithTracer(ctx, tracer)
//	t := trace.FromContext(ctx)
//
//	span := trace.Begin(t, trace.ScopePass, "batch", parentID)
//	defer span.End("")
package trace
