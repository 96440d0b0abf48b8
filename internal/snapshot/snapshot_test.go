package snapshot

import (
	"path/filepath"
	"testing"

	"reactor/internal/sched"
)

func TestMarshalUnmarshalRoundTrip(t *testing.T) {
	r := FromScheduler(sched.Snapshot{
		RunQueueDepth:  3,
		WaitQueueDepth: 7,
		NiceTasks:      1,
		NbTasks:        10,
		RqueueTicks:    12345,
	}, 999)

	b, err := Marshal(r)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	got, err := Unmarshal(b)
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if got != r {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, r)
	}
}

func TestWriteFileReadFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "snap.mp")
	r := FromScheduler(sched.Snapshot{RunQueueDepth: 1, NbTasks: 2}, 42)

	if err := WriteFile(path, r); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	got, err := ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if got != r {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, r)
	}
}

func TestReadFileMissing(t *testing.T) {
	_, err := ReadFile(filepath.Join(t.TempDir(), "missing.mp"))
	if err == nil {
		t.Fatalf("expected an error reading a missing file")
	}
}
