package trace

import (
	"bytes"
	"runtime"
	"strconv"
	"sync/atomic"
	"time"
)

var (
	seqCounter  uint64
	spanCounter uint64
)

// NextSeq returns a monotonically increasing event sequence number, used to
// reconstruct emission order across tracers that don't preserve wall-clock
// ordering on their own (RingTracer reassigns it on Emit, for instance).
func NextSeq() uint64 {
	return atomic.AddUint64(&seqCounter, 1)
}

// NextSpanID returns a span identifier unique for this process's lifetime.
func NextSpanID() uint64 {
	return atomic.AddUint64(&spanCounter, 1)
}

// currentGoroutineID parses "goroutine 123 [running]:" out of a runtime.Stack
// dump. The scheduler's driver loop is single-threaded by design, but
// cmd/reactor's --watch dashboard and the interrupt handler both run on
// their own goroutines, so spans still need a GID to avoid conflating them
// with driver-loop activity in a Chrome trace.
func currentGoroutineID() uint64 {
	buf := make([]byte, 64)
	n := runtime.Stack(buf, false)
	buf = buf[:n]

	const prefix = "goroutine "
	if !bytes.HasPrefix(buf, []byte(prefix)) {
		return 0
	}
	buf = buf[len(prefix):]
	end := bytes.IndexByte(buf, ' ')
	if end < 0 {
		return 0
	}
	gid, err := strconv.ParseUint(string(buf[:end]), 10, 64)
	if err != nil {
		return 0
	}
	return gid
}

// Span is an RAII handle for one ScopeDriver/ScopePass/ScopeModule/ScopeNode
// interval: Begin emits its start event immediately, and the caller's
// deferred End emits the matching end event and returns the elapsed
// duration.
type Span struct {
	tracer   Tracer
	id       uint64
	parentID uint64
	gid      uint64
	scope    Scope
	name     string
	started  time.Time
	extra    map[string]string
}

// Begin starts a span at scope, named name, nested under parent (0 for a
// root span). When t is nil, disabled, or filtering scope out at its
// current Level, Begin returns a Span backed by Nop so End is always safe
// to call unconditionally.
func Begin(t Tracer, scope Scope, name string, parent uint64) *Span {
	if t == nil || !t.Enabled() || !t.Level().ShouldEmit(scope) {
		return &Span{tracer: Nop}
	}

	id := NextSpanID()
	gid := currentGoroutineID()
	now := time.Now()

	t.Emit(&Event{
		Time:     now,
		Seq:      NextSeq(),
		Kind:     KindSpanBegin,
		Scope:    scope,
		SpanID:   id,
		ParentID: parent,
		GID:      gid,
		Name:     name,
	})

	return &Span{
		tracer:   t,
		id:       id,
		parentID: parent,
		gid:      gid,
		scope:    scope,
		name:     name,
		started:  now,
	}
}

// End emits the span's end event with detail attached and returns how long
// the span ran. Safe to call on a nil Span (a no-op returning 0).
func (s *Span) End(detail string) time.Duration {
	if s == nil || s.tracer == nil || !s.tracer.Enabled() {
		return 0
	}
	dur := time.Since(s.started)
	s.tracer.Emit(&Event{
		Time:     time.Now(),
		Seq:      NextSeq(),
		Kind:     KindSpanEnd,
		Scope:    s.scope,
		SpanID:   s.id,
		ParentID: s.parentID,
		GID:      s.gid,
		Name:     s.name,
		Detail:   detail,
		Extra:    s.extra,
	})
	return dur
}

// WithExtra attaches a key-value pair to the span's eventual end event, for
// chaining at the call site: trace.Begin(...).WithExtra("batch", "16").
func (s *Span) WithExtra(key, value string) *Span {
	if s == nil || s.tracer == nil || !s.tracer.Enabled() {
		return s
	}
	if s.extra == nil {
		s.extra = make(map[string]string)
	}
	s.extra[key] = value
	return s
}

// ID returns the span's identifier, or 0 for a nil Span.
func (s *Span) ID() uint64 {
	if s == nil {
		return 0
	}
	return s.id
}
