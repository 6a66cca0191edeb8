// Package config holds the scheduler's build-time configuration. On
// real hardware these would be compile-time constants; the TOML
// loading path exists for the host-side simulator binary in
// cmd/simulate.
package config

import (
	"fmt"

	"github.com/BurntSushi/toml"
)

// Config holds the scheduler and simulator's build-time tunables.
type Config struct {
	// MaxPriority is the number of distinct priority levels, bounded
	// by sched.MaxPriority (64, the bitmap word width both
	// ReadyStructure variants use).
	MaxPriority int `toml:"max_priority"`

	// TickRateHz is the system tick frequency.
	TickRateHz int `toml:"tick_rate_hz"`

	// CpuHz is the core clock frequency. It is informational only:
	// neither the scheduler nor the simulator reads it.
	CpuHz int `toml:"cpu_hz"`

	// InterruptMaskThreshold is the architecture-specific priority
	// above which interrupts are never masked by EnterCritical (on
	// the simulated port this is informational only).
	InterruptMaskThreshold int `toml:"interrupt_mask_threshold"`

	// StackAlignment is the required alignment, in bytes, of a task's
	// stack allocation.
	StackAlignment int `toml:"stack_alignment"`

	// IdleStackWords is the stack size, in 32-bit words, given to the
	// idle task created by SchedulerInit.
	IdleStackWords int `toml:"idle_stack_words"`

	// TimeSliceTicks is the round-robin quantum the list ReadyStructure
	// variant uses; ignored by the table variant.
	TimeSliceTicks int `toml:"time_slice_ticks"`
}

// Default returns a Config with conservative, commonly-used values.
func Default() Config {
	return Config{
		MaxPriority:             32,
		TickRateHz:              1000,
		CpuHz:                   72_000_000,
		InterruptMaskThreshold:  5,
		StackAlignment:          8,
		IdleStackWords:          64,
		TimeSliceTicks:          1,
	}
}

// Load reads a TOML configuration file, starting from Default and
// overriding any fields present in the file.
func Load(path string) (Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: decoding %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the configuration for internally-consistent values.
func (c Config) Validate() error {
	if c.MaxPriority <= 0 || c.MaxPriority > 64 {
		return fmt.Errorf("config: max_priority must be in (0,64], got %d", c.MaxPriority)
	}
	if c.TickRateHz <= 0 {
		return fmt.Errorf("config: tick_rate_hz must be positive, got %d", c.TickRateHz)
	}
	if c.StackAlignment <= 0 || c.StackAlignment&(c.StackAlignment-1) != 0 {
		return fmt.Errorf("config: stack_alignment must be a power of two, got %d", c.StackAlignment)
	}
	if c.IdleStackWords <= 0 {
		return fmt.Errorf("config: idle_stack_words must be positive, got %d", c.IdleStackWords)
	}
	if c.TimeSliceTicks <= 0 {
		return fmt.Errorf("config: time_slice_ticks must be positive, got %d", c.TimeSliceTicks)
	}
	return nil
}
