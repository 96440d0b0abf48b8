// Package config loads the TOML tunables a reactor deployment picks, in the
// same decode-and-validate shape as the teacher's internal/project manifest
// loader. See SPEC_FULL.md §4's config module.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
)

// ErrSchedulerSectionMissing indicates a config file has no [scheduler] table.
var ErrSchedulerSectionMissing = errors.New("missing [scheduler]")

// Config is the top-level shape of a reactor.toml file.
type Config struct {
	Scheduler Scheduler `toml:"scheduler"`
	Trace     Trace     `toml:"trace"`
}

// Scheduler holds the tunables spec.md leaves to the surrounding program:
// batch size, per-call budget, the nice clamp range, and which clock to
// drive the wait queue with.
type Scheduler struct {
	BatchSize int    `toml:"batch_size"`
	Budget    int    `toml:"budget"`
	NiceMin   int32  `toml:"nice_min"`
	NiceMax   int32  `toml:"nice_max"`
	ClockMode string `toml:"clock_mode"` // "real" or "virtual"
}

// Trace configures the trace.Tracer wired into the scheduler.
type Trace struct {
	Level  string `toml:"level"`  // off, error, phase, detail, debug
	Mode   string `toml:"mode"`   // stream, ring, both
	Output string `toml:"output"` // path, or "-" for stderr, when mode is stream
}

// Default returns the tunables spec.md's own worked examples use.
func Default() Config {
	return Config{
		Scheduler: Scheduler{
			BatchSize: 16,
			Budget:    200,
			NiceMin:   -1024,
			NiceMax:   1024,
			ClockMode: "real",
		},
		Trace: Trace{
			Level: "off",
			Mode:  "nop",
		},
	}
}

// Load parses a reactor.toml file at path on top of Default(), so any key
// the file omits keeps its default. A file without a [scheduler] table is
// rejected with ErrSchedulerSectionMissing.
func Load(path string) (Config, error) {
	cfg := Default()
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("%s: failed to parse TOML: %w", path, err)
	}
	if !meta.IsDefined("scheduler") {
		return Config{}, fmt.Errorf("%s: %w", path, ErrSchedulerSectionMissing)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.Scheduler.BatchSize <= 0 {
		return fmt.Errorf("scheduler.batch_size must be positive, got %d", c.Scheduler.BatchSize)
	}
	if c.Scheduler.Budget <= 0 {
		return fmt.Errorf("scheduler.budget must be positive, got %d", c.Scheduler.Budget)
	}
	if c.Scheduler.NiceMin > c.Scheduler.NiceMax {
		return fmt.Errorf("scheduler.nice_min (%d) must not exceed nice_max (%d)", c.Scheduler.NiceMin, c.Scheduler.NiceMax)
	}
	switch strings.ToLower(c.Scheduler.ClockMode) {
	case "real", "virtual":
	default:
		return fmt.Errorf("scheduler.clock_mode must be %q or %q, got %q", "real", "virtual", c.Scheduler.ClockMode)
	}
	return nil
}
