// Package config is the host-facing configuration surface: a validated,
// JSON-(de)serializable description of the cycles set, loop policy, tick
// cadence, and transport bindings that a server.Builder consumes. Hooks are
// registered in code (spec.md §6: "hooks: mapping event -> command-or-
// callback descriptor", hosted by external collaborators), not loaded from
// this file.
//
// Grounded closely on core/config/config.go's Config type: same method set
// (Validate/Clone/String/LoadFromFile/SaveToFile) and the same
// ValidationError{Field, Message} shape, generalized from the teacher's
// fixed {WorkDuration, ShortBreak, LongBreak, LongBreakInterval} fields to
// an arbitrary ordered list of named cycles.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/kubaliski/cycletimer/timer"
)

// CycleSpec is one JSON-serializable cycle definition.
type CycleSpec struct {
	Name            string `json:"name"`
	DurationSeconds uint32 `json:"duration_seconds"`
}

// LoopSpec is the JSON-serializable form of timer.Loop: the object
// {"infinite": true} or {"fixed": n}. A bare JSON string such as "infinite"
// does not decode into it.
type LoopSpec struct {
	Infinite bool   `json:"infinite,omitempty"`
	Fixed    uint32 `json:"fixed,omitempty"`
}

// Binding describes one transport the server should listen on.
type Binding struct {
	Transport string `json:"transport"` // "tcp" is the only reference implementation
	Address   string `json:"address"`
}

// TimerConfig is the validated configuration for one Server.
type TimerConfig struct {
	Cycles         []CycleSpec `json:"cycles"`
	CyclesCount    LoopSpec    `json:"cycles_count"`
	TickIntervalMS int64       `json:"tick_interval_ms"`
	Bindings       []Binding   `json:"bindings"`
}

// TickInterval returns the configured tick cadence as a time.Duration,
// defaulting to one second per spec.md §3 when unset.
func (c *TimerConfig) TickInterval() time.Duration {
	if c.TickIntervalMS <= 0 {
		return time.Second
	}
	return time.Duration(c.TickIntervalMS) * time.Millisecond
}

// ValidationError reports a configuration field that failed validation.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("validation error in %s: %s", e.Field, e.Message)
}

// DefaultConfig returns a classic 25/5/15-minute, 4-pomodoro Pomodoro
// configuration, matching the teacher's DefaultConfig values.
func DefaultConfig() *TimerConfig {
	return &TimerConfig{
		Cycles: []CycleSpec{
			{Name: "work", DurationSeconds: 25 * 60},
			{Name: "short_break", DurationSeconds: 5 * 60},
			{Name: "work", DurationSeconds: 25 * 60},
			{Name: "short_break", DurationSeconds: 5 * 60},
			{Name: "work", DurationSeconds: 25 * 60},
			{Name: "short_break", DurationSeconds: 5 * 60},
			{Name: "work", DurationSeconds: 25 * 60},
			{Name: "long_break", DurationSeconds: 15 * 60},
		},
		CyclesCount:    LoopSpec{Infinite: true},
		TickIntervalMS: 1000,
		Bindings:       []Binding{{Transport: "tcp", Address: "127.0.0.1:7733"}},
	}
}

// Validate checks every invariant spec.md's data model names at
// configuration time: a non-empty cycles set, every duration >= 1 second, a
// Fixed loop count >= 1, and a positive tick interval.
func (c *TimerConfig) Validate() error {
	if len(c.Cycles) == 0 {
		return ValidationError{Field: "cycles", Message: "must contain at least one cycle"}
	}
	for i, cy := range c.Cycles {
		if cy.Name == "" {
			return ValidationError{Field: fmt.Sprintf("cycles[%d].name", i), Message: "must not be empty"}
		}
		if cy.DurationSeconds < 1 {
			return ValidationError{Field: fmt.Sprintf("cycles[%d].duration_seconds", i), Message: "must be at least 1"}
		}
	}
	if !c.CyclesCount.Infinite && c.CyclesCount.Fixed < 1 {
		return ValidationError{Field: "cycles_count", Message: "fixed count must be at least 1 (or set infinite)"}
	}
	if c.TickIntervalMS <= 0 {
		return ValidationError{Field: "tick_interval_ms", Message: "must be positive"}
	}
	if len(c.Bindings) == 0 {
		return ValidationError{Field: "bindings", Message: "must declare at least one transport binding"}
	}
	return nil
}

// ToTimerCycles converts the JSON cycle specs to timer.CyclesSet.
func (c *TimerConfig) ToTimerCycles() timer.CyclesSet {
	cycles := make(timer.CyclesSet, len(c.Cycles))
	for i, cy := range c.Cycles {
		cycles[i] = timer.Cycle{Name: cy.Name, DurationSeconds: cy.DurationSeconds}
	}
	return cycles
}

// ToTimerLoop converts the JSON loop spec to timer.Loop.
func (c *TimerConfig) ToTimerLoop() timer.Loop {
	if c.CyclesCount.Infinite {
		return timer.Infinite()
	}
	return timer.FixedLoop(c.CyclesCount.Fixed)
}

// LoadFromFile reads and validates a TimerConfig from a JSON file.
func LoadFromFile(path string) (*TimerConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	var cfg TimerConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// SaveToFile validates and writes cfg as a JSON file.
func (c *TimerConfig) SaveToFile(path string) error {
	if err := c.Validate(); err != nil {
		return fmt.Errorf("cannot save invalid configuration: %w", err)
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Clone returns a deep copy of c.
func (c *TimerConfig) Clone() *TimerConfig {
	cycles := make([]CycleSpec, len(c.Cycles))
	copy(cycles, c.Cycles)
	bindings := make([]Binding, len(c.Bindings))
	copy(bindings, c.Bindings)
	return &TimerConfig{
		Cycles:         cycles,
		CyclesCount:    c.CyclesCount,
		TickIntervalMS: c.TickIntervalMS,
		Bindings:       bindings,
	}
}

// String returns a human-readable summary of c.
func (c *TimerConfig) String() string {
	return fmt.Sprintf("TimerConfig{cycles=%d, loop=%s, tick=%v, bindings=%d}",
		len(c.Cycles), c.loopString(), c.TickInterval(), len(c.Bindings))
}

func (c *TimerConfig) loopString() string {
	if c.CyclesCount.Infinite {
		return "infinite"
	}
	return fmt.Sprintf("fixed(%d)", c.CyclesCount.Fixed)
}
