package nkt

import "fmt"

// Interbus addresses of the laser modules. The main module and the front
// panel sit at fixed addresses on the bus for both hardware revisions.
const (
	// LaserAddr is the Interbus address of the laser main module.
	LaserAddr byte = 0x0F
	// PanelAddr is the Interbus address of the front panel module.
	PanelAddr byte = 0x01
	// hostAddr is the address this host uses as the telegram source.
	hostAddr byte = 0xA2
)

// SystemTypeRegister is the fixed device-level register holding the module
// type code. It is read before the register table is selected, so it must be
// valid for every hardware revision.
const SystemTypeRegister byte = 0x61

// ModuleType identifies the hardware revision of the laser main module. The
// two revisions have incompatible register maps and capability sets.
type ModuleType byte

const (
	// ModuleTypeFianium is the original SuperK Fianium main module.
	ModuleTypeFianium ModuleType = 0x60
	// ModuleTypeFianiumG3 is the third-generation SuperK Fianium main
	// module. It drops the constant/modulated power modes and the front
	// panel lock.
	ModuleTypeFianiumG3 ModuleType = 0x88
)

func (m ModuleType) String() string {
	switch m {
	case ModuleTypeFianium:
		return "SuperK Fianium (0x60)"
	case ModuleTypeFianiumG3:
		return "SuperK Fianium G3 (0x88)"
	default:
		return fmt.Sprintf("unknown module type (0x%02X)", byte(m))
	}
}

// OperatingMode is one of the integer-coded operating modes of the laser.
// The device always reports exactly one active mode.
type OperatingMode uint16

const (
	ConstantCurrent  OperatingMode = 0
	ConstantPower    OperatingMode = 1
	ModulatedCurrent OperatingMode = 2
	ModulatedPower   OperatingMode = 3
	PowerLock        OperatingMode = 4
)

// String returns the operator-facing name of the mode.
func (m OperatingMode) String() string {
	switch m {
	case ConstantCurrent:
		return "Constant current"
	case ConstantPower:
		return "Constant power"
	case ModulatedCurrent:
		return "Current modulation"
	case ModulatedPower:
		return "Power modulation"
	case PowerLock:
		return "Power lock"
	default:
		return fmt.Sprintf("unknown operating mode (%d)", uint16(m))
	}
}

// RegisterSet is the register table for one hardware revision, selected
// exactly once at construction time and never changed thereafter.
type RegisterSet struct {
	Module ModuleType

	// Main module registers.
	InletTemperature byte
	Emission         byte
	Mode             byte
	Interlock        byte
	PulsePickerRatio byte
	WatchdogInterval byte
	PowerLevel       byte // zero when the revision has no power level register
	CurrentLevel     byte
	NIMDelay         byte
	SerialNumber     byte
	StatusBits       byte
	UserText         byte

	// Front panel registers. Zero when the revision has no front panel
	// module.
	PanelLock   byte
	DisplayText byte
	ErrorFlash  byte

	// UserTextLimit is the maximum number of ASCII characters the user
	// text register stores; longer values are truncated by the device.
	UserTextLimit int
	// UserTextMinOne indicates the revision refuses an empty user text; a
	// single space is substituted for an empty request.
	UserTextMinOne bool
	// HasPanelLock indicates the revision supports locking the front
	// panel. Locking an unsupported panel is a non-error outcome.
	HasPanelLock bool

	// Modes is the subset of operating modes exposed to operators on this
	// revision. Writing an unexposed mode is not gated client side.
	Modes []OperatingMode
}

var fianiumRegisters = RegisterSet{
	Module:           ModuleTypeFianium,
	InletTemperature: 0x11,
	Emission:         0x30,
	Mode:             0x31,
	Interlock:        0x32,
	PulsePickerRatio: 0x34,
	WatchdogInterval: 0x36,
	PowerLevel:       0x37,
	CurrentLevel:     0x38,
	NIMDelay:         0x39,
	SerialNumber:     0x65,
	StatusBits:       0x66,
	UserText:         0x6C,
	PanelLock:        0x3D,
	DisplayText:      0x72,
	ErrorFlash:       0x8D,
	UserTextLimit:    240,
	UserTextMinOne:   false,
	HasPanelLock:     true,
	Modes: []OperatingMode{
		ConstantCurrent,
		ConstantPower,
		ModulatedCurrent,
		ModulatedPower,
		PowerLock,
	},
}

var fianiumG3Registers = RegisterSet{
	Module:           ModuleTypeFianiumG3,
	InletTemperature: 0x11,
	Emission:         0x30,
	Mode:             0x31,
	Interlock:        0x32,
	PulsePickerRatio: 0x34,
	WatchdogInterval: 0x36,
	CurrentLevel:     0x37,
	NIMDelay:         0x38,
	SerialNumber:     0x65,
	StatusBits:       0x66,
	UserText:         0x6C,
	UserTextLimit:    20,
	UserTextMinOne:   true,
	HasPanelLock:     false,
	Modes: []OperatingMode{
		ConstantCurrent,
		PowerLock,
	},
}

// RegistersFor returns the register table for the detected module type. An
// unknown module type is a fatal construction-time error for the caller.
func RegistersFor(mt ModuleType) (*RegisterSet, error) {
	switch mt {
	case ModuleTypeFianium:
		regs := fianiumRegisters
		return &regs, nil
	case ModuleTypeFianiumG3:
		regs := fianiumG3Registers
		return &regs, nil
	default:
		return nil, fmt.Errorf("unsupported laser module type 0x%02X", byte(mt))
	}
}

// SupportsMode reports whether the mode is in the operator-exposed subset
// for this revision.
func (r *RegisterSet) SupportsMode(mode OperatingMode) bool {
	for _, m := range r.Modes {
		if m == mode {
			return true
		}
	}
	return false
}
