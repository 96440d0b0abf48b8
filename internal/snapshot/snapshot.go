// Package snapshot serializes sched.Snapshot values with msgpack, ported
// from the teacher's internal/driver disk cache (same encoder, same
// write-to-temp-then-rename durability trick). The scheduler itself holds
// no persisted state — this is an opt-in export for cmd/reactor stats and
// for replaying a captured scheduler state into tests. See SPEC_FULL.md §5's
// snapshot module.
package snapshot

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/vmihailenco/msgpack/v5"

	"reactor/internal/sched"
)

// Record is the wire shape of one captured sched.Snapshot, tagged with the
// wall-clock tick it was taken at (external to the scheduler, which never
// reads real time itself).
type Record struct {
	TakenAtMs      uint32 `msgpack:"taken_at_ms" json:"taken_at_ms"`
	RunQueueDepth  int    `msgpack:"run_queue_depth" json:"run_queue_depth"`
	WaitQueueDepth int    `msgpack:"wait_queue_depth" json:"wait_queue_depth"`
	NiceTasks      int    `msgpack:"nice_tasks" json:"nice_tasks"`
	NbTasks        int    `msgpack:"nb_tasks" json:"nb_tasks"`
	RqueueTicks    uint32 `msgpack:"rqueue_ticks" json:"rqueue_ticks"`
}

// FromScheduler builds a Record from a live snapshot plus the tick it was
// taken at.
func FromScheduler(s sched.Snapshot, takenAtMs uint32) Record {
	return Record{
		TakenAtMs:      takenAtMs,
		RunQueueDepth:  s.RunQueueDepth,
		WaitQueueDepth: s.WaitQueueDepth,
		NiceTasks:      s.NiceTasks,
		NbTasks:        s.NbTasks,
		RqueueTicks:    s.RqueueTicks,
	}
}

// Marshal encodes r as msgpack.
func Marshal(r Record) ([]byte, error) {
	b, err := msgpack.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("snapshot: marshal: %w", err)
	}
	return b, nil
}

// Unmarshal decodes msgpack bytes into a Record.
func Unmarshal(b []byte) (Record, error) {
	var r Record
	if err := msgpack.Unmarshal(b, &r); err != nil {
		return Record{}, fmt.Errorf("snapshot: unmarshal: %w", err)
	}
	return r, nil
}

// WriteFile atomically writes r to path (write to a sibling temp file, then
// rename), matching the teacher's DiskCache.Put durability pattern.
func WriteFile(path string, r Record) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("snapshot: %w", err)
	}
	f, err := os.CreateTemp(filepath.Dir(path), "snapshot-*.mp")
	if err != nil {
		return fmt.Errorf("snapshot: %w", err)
	}
	tmp := f.Name()
	defer os.Remove(tmp)

	enc := msgpack.NewEncoder(f)
	if err := enc.Encode(r); err != nil {
		f.Close()
		return fmt.Errorf("snapshot: encode: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("snapshot: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("snapshot: %w", err)
	}
	return nil
}

// ReadFile reads and decodes a Record previously written by WriteFile.
func ReadFile(path string) (Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return Record{}, fmt.Errorf("snapshot: %w", err)
	}
	defer f.Close()

	var r Record
	dec := msgpack.NewDecoder(f)
	if err := dec.Decode(&r); err != nil {
		return Record{}, fmt.Errorf("snapshot: decode: %w", err)
	}
	return r, nil
}
