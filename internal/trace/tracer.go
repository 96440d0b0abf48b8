package trace

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

// Tracer receives driver-loop events. Implementations must be safe for
// concurrent Emit calls: a scheduler embedded behind cmd/reactor serve's
// signal handler can be dumped from a goroutine other than the one driving
// WakeExpiredTasks/ProcessRunnableTasks.
type Tracer interface {
	Emit(ev *Event)
	Flush() error
	Close() error
	Level() Level
	Enabled() bool
}

// StorageMode picks where a Tracer keeps its events.
type StorageMode uint8

const (
	ModeStream StorageMode = iota + 1 // write out as events happen
	ModeRing                          // keep only the last RingSize events
	ModeBoth                          // both, for live tailing plus crash dumps
)

func (m StorageMode) String() string {
	switch m {
	case ModeStream:
		return "stream"
	case ModeRing:
		return "ring"
	case ModeBoth:
		return "both"
	default:
		return "unknown"
	}
}

// ParseMode parses the --trace-mode flag's value.
func ParseMode(s string) (StorageMode, error) {
	switch strings.ToLower(s) {
	case "stream":
		return ModeStream, nil
	case "ring":
		return ModeRing, nil
	case "both":
		return ModeBoth, nil
	default:
		return ModeRing, fmt.Errorf("invalid storage mode: %q (expected: stream|ring|both)", s)
	}
}

// Config is the fully-resolved tracer configuration cmd/reactor builds from
// its --trace* flags before calling New.
type Config struct {
	Level      Level
	Mode       StorageMode
	Format     Format        // FormatAuto lets New pick from OutputPath's extension
	Output     io.Writer     // takes priority over OutputPath when set (used by tests)
	OutputPath string        // "-" or "" means stderr
	RingSize   int           // defaults to 4096
	Heartbeat  time.Duration // not read by New; heartbeats are started with StartHeartbeat
}

// New builds a Tracer from cfg, returning the zero-overhead Nop tracer
// whenever tracing is off so cmd/reactor never has to special-case that.
func New(cfg Config) (Tracer, error) {
	if cfg.Level == LevelOff {
		return nopTracer{}, nil
	}
	if cfg.RingSize <= 0 {
		cfg.RingSize = 4096
	}
	format := resolveFormat(cfg)

	switch cfg.Mode {
	case ModeStream:
		w, err := openOutput(cfg)
		if err != nil {
			return nil, err
		}
		return NewStreamTracer(w, cfg.Level, format), nil

	case ModeRing:
		return NewRingTracer(cfg.RingSize, cfg.Level), nil

	case ModeBoth:
		w, err := openOutput(cfg)
		if err != nil {
			return nil, err
		}
		stream := NewStreamTracer(w, cfg.Level, format)
		ring := NewRingTracer(cfg.RingSize, cfg.Level)
		return NewMultiTracer(cfg.Level, stream, ring), nil

	default:
		return nil, fmt.Errorf("unknown storage mode: %v", cfg.Mode)
	}
}

// resolveFormat turns FormatAuto into a concrete Format by sniffing
// OutputPath's extension; every other Format passes through unchanged.
func resolveFormat(cfg Config) Format {
	if cfg.Format != FormatAuto {
		return cfg.Format
	}
	if cfg.OutputPath == "" || cfg.OutputPath == "-" {
		return FormatText
	}
	switch {
	case strings.HasSuffix(cfg.OutputPath, ".ndjson"):
		return FormatNDJSON
	case strings.HasSuffix(cfg.OutputPath, ".json"), strings.HasSuffix(cfg.OutputPath, ".chrome.json"):
		return FormatChrome
	default:
		return FormatText
	}
}

// openOutput resolves the writer a stream-mode tracer writes to.
func openOutput(cfg Config) (io.Writer, error) {
	if cfg.Output != nil {
		return cfg.Output, nil
	}
	if cfg.OutputPath == "" || cfg.OutputPath == "-" {
		return os.Stderr, nil
	}
	f, err := os.Create(cfg.OutputPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open trace output: %w", err)
	}
	return f, nil
}
