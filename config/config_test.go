package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig_IsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Len(t, cfg.Cycles, 8)
	assert.True(t, cfg.CyclesCount.Infinite)
}

func TestValidate_RejectsEmptyCycles(t *testing.T) {
	cfg := &TimerConfig{TickIntervalMS: 1000, Bindings: []Binding{{Transport: "tcp", Address: ":0"}}}
	err := cfg.Validate()
	require.Error(t, err)
	var ve ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "cycles", ve.Field)
}

func TestValidate_RejectsNonPositiveTickInterval(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TickIntervalMS = 0
	assert.Error(t, cfg.Validate())
}

func TestValidate_RejectsFixedZero(t *testing.T) {
	cfg := DefaultConfig()
	cfg.CyclesCount = LoopSpec{Infinite: false, Fixed: 0}
	assert.Error(t, cfg.Validate())
}

func TestValidate_RejectsNoBindings(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Bindings = nil
	assert.Error(t, cfg.Validate())
}

func TestTickInterval_DefaultsWhenUnset(t *testing.T) {
	cfg := &TimerConfig{}
	assert.Equal(t, "1s", cfg.TickInterval().String())
}

func TestClone_IsIndependentCopy(t *testing.T) {
	cfg := DefaultConfig()
	clone := cfg.Clone()
	clone.Cycles[0].Name = "mutated"
	clone.Bindings[0].Address = "mutated"
	assert.NotEqual(t, cfg.Cycles[0].Name, clone.Cycles[0].Name)
	assert.NotEqual(t, cfg.Bindings[0].Address, clone.Bindings[0].Address)
	assert.Equal(t, cfg.TickIntervalMS, clone.TickIntervalMS)
}

func TestSaveAndLoadFromFile_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")

	cfg := DefaultConfig()
	require.NoError(t, cfg.SaveToFile(path))

	loaded, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, cfg.Cycles, loaded.Cycles)
	assert.Equal(t, cfg.TickIntervalMS, loaded.TickIntervalMS)
}

func TestLoadFromFile_RejectsMissingFile(t *testing.T) {
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestSaveToFile_RejectsInvalidConfig(t *testing.T) {
	cfg := &TimerConfig{}
	err := cfg.SaveToFile(filepath.Join(t.TempDir(), "x.json"))
	assert.Error(t, err)
}

func TestToTimerCycles_And_ToTimerLoop(t *testing.T) {
	cfg := DefaultConfig()
	cycles := cfg.ToTimerCycles()
	require.Len(t, cycles, len(cfg.Cycles))
	assert.Equal(t, cfg.Cycles[0].Name, cycles[0].Name)

	loop := cfg.ToTimerLoop()
	assert.Equal(t, "infinite", loop.String())
}

func TestString_DoesNotPanic(t *testing.T) {
	cfg := DefaultConfig()
	assert.NotEmpty(t, cfg.String())

	cfg.CyclesCount = LoopSpec{Infinite: false, Fixed: 4}
	assert.Contains(t, cfg.String(), "fixed(4)")
}
