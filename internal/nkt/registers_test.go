package nkt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistersForFianium(t *testing.T) {
	regs, err := RegistersFor(ModuleTypeFianium)
	require.NoError(t, err)

	assert.Equal(t, byte(0x37), regs.PowerLevel)
	assert.Equal(t, byte(0x38), regs.CurrentLevel)
	assert.Equal(t, 240, regs.UserTextLimit)
	assert.False(t, regs.UserTextMinOne)
	assert.True(t, regs.HasPanelLock)
	assert.Len(t, regs.Modes, 5)
}

func TestRegistersForFianiumG3(t *testing.T) {
	regs, err := RegistersFor(ModuleTypeFianiumG3)
	require.NoError(t, err)

	assert.Zero(t, regs.PowerLevel)
	assert.Equal(t, byte(0x37), regs.CurrentLevel)
	assert.Equal(t, 20, regs.UserTextLimit)
	assert.True(t, regs.UserTextMinOne)
	assert.False(t, regs.HasPanelLock)
	assert.Equal(t, []OperatingMode{ConstantCurrent, PowerLock}, regs.Modes)
}

func TestRegistersForUnknown(t *testing.T) {
	_, err := RegistersFor(ModuleType(0x42))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "0x42")
}

func TestSupportsMode(t *testing.T) {
	regs, err := RegistersFor(ModuleTypeFianiumG3)
	require.NoError(t, err)

	assert.True(t, regs.SupportsMode(ConstantCurrent))
	assert.True(t, regs.SupportsMode(PowerLock))
	assert.False(t, regs.SupportsMode(ConstantPower))
	assert.False(t, regs.SupportsMode(ModulatedCurrent))
	assert.False(t, regs.SupportsMode(ModulatedPower))
}

func TestOperatingModeNames(t *testing.T) {
	names := map[OperatingMode]string{
		ConstantCurrent:  "Constant current",
		ConstantPower:    "Constant power",
		ModulatedCurrent: "Current modulation",
		ModulatedPower:   "Power modulation",
		PowerLock:        "Power lock",
	}
	for mode, want := range names {
		assert.Equal(t, want, mode.String())
	}
}

func TestSimulatorInterlockReset(t *testing.T) {
	sim := NewSimulator(ModuleTypeFianium, "F1234")
	regs, _ := RegistersFor(ModuleTypeFianium)

	sim.SetU16(regs.Interlock, 1)
	v, err := sim.WriteReadU16(LaserAddr, regs.Interlock, 1)
	require.NoError(t, err)
	assert.Equal(t, uint16(2), v)

	// a key switch that stays off never resets
	sim2 := NewSimulator(ModuleTypeFianium, "F1234")
	sim2.InterlockResettable = false
	sim2.SetU16(regs.Interlock, 1)
	v, err = sim2.WriteReadU16(LaserAddr, regs.Interlock, 1)
	require.NoError(t, err)
	assert.Equal(t, uint16(1), v)
}
