// Package superk wraps a SuperK Fianium laser from NKT Photonics. The
// wrapper validates inputs, issues register reads/writes through a
// connection, confirms writes by reading back, and logs every state change.
package superk

import (
	"fmt"
	"log"
	"math"

	"github.com/MSLNZ/pr-superk-mono/internal/bounds"
	"github.com/MSLNZ/pr-superk-mono/internal/equipment"
	"github.com/MSLNZ/pr-superk-mono/internal/nkt"
)

// Connection is the register-level device connection the wrapper delegates
// to. Both nkt.Conn (real hardware) and nkt.Simulator satisfy it.
type Connection interface {
	ReadU8(dest, register byte) (uint8, error)
	ReadU16(dest, register byte) (uint16, error)
	ReadS16(dest, register byte) (int16, error)
	ReadString(dest, register byte) (string, error)
	WriteU8(dest, register byte, value uint8) error
	WriteReadU16(dest, register byte, value uint16) (uint16, error)
	WriteReadString(dest, register byte, value string) (string, error)
	PortStatus() nkt.PortStatus
	Close() error
}

// SuperK controls one SuperK Fianium laser. The register table for the
// detected hardware revision is selected once at construction and never
// changes afterwards.
type SuperK struct {
	record *equipment.Record
	conn   Connection
	regs   *nkt.RegisterSet
}

// New connects to the laser behind conn. It detects the hardware revision,
// verifies the reported serial number against the record, checks that the
// transport is ready and resolves the interlock, failing fast on any of
// these. The front panel is locked or unlocked according to the record's
// lock_front_panel connection property.
func New(record *equipment.Record, conn Connection) (*SuperK, error) {
	mt, err := conn.ReadU8(nkt.LaserAddr, nkt.SystemTypeRegister)
	if err != nil {
		return nil, fmt.Errorf("failed to read the %s module type: %w", record.Alias, err)
	}

	regs, err := nkt.RegistersFor(nkt.ModuleType(mt))
	if err != nil {
		return nil, err
	}

	serial, err := conn.ReadString(nkt.LaserAddr, regs.SerialNumber)
	if err != nil {
		return nil, fmt.Errorf("failed to read the %s serial number: %w", record.Alias, err)
	}
	if record.Serial != "" && serial != record.Serial {
		return nil, fmt.Errorf("%s serial number mismatch: device reports %q, record expects %q",
			record.Alias, serial, record.Serial)
	}

	if status := conn.PortStatus(); status != nkt.PortReady {
		return nil, fmt.Errorf("%s port status is %s", record.Alias, status)
	}

	s := &SuperK{record: record, conn: conn, regs: regs}
	log.Printf("%s is a %s, serial %s", record.Alias, regs.Module, serial)

	if err := s.EnsureInterlockOK(); err != nil {
		return nil, err
	}
	if err := s.LockFrontPanel(record.BoolProperty("lock_front_panel", false)); err != nil {
		return nil, err
	}
	return s, nil
}

// Alias returns the equipment alias of the laser.
func (s *SuperK) Alias() string { return s.record.Alias }

// ModuleType returns the detected hardware revision.
func (s *SuperK) ModuleType() nkt.ModuleType { return s.regs.Module }

// RecordToJSON converts the backing equipment record to a plain mapping.
func (s *SuperK) RecordToJSON() map[string]interface{} { return s.record.ToJSON() }

// EnsureInterlockOK makes sure that the interlock is okay. A pending fault
// (status 1) triggers exactly one reset attempt; anything else than a
// resulting OK status (2) is a permanent failure because the interlock is a
// physical key switch, not a transient fault.
func (s *SuperK) EnsureInterlockOK() error {
	status, err := s.conn.ReadU16(nkt.LaserAddr, s.regs.Interlock)
	if err != nil {
		return fmt.Errorf("failed to read the %s interlock: %w", s.record.Alias, err)
	}
	if status == 2 {
		log.Printf("%s interlock is okay", s.record.Alias)
		return nil
	}

	if status == 1 {
		log.Printf("resetting the %s interlock...", s.record.Alias)
		status, err = s.conn.WriteReadU16(nkt.LaserAddr, s.regs.Interlock, 1)
		if err != nil {
			return fmt.Errorf("failed to reset the %s interlock: %w", s.record.Alias, err)
		}
		if status == 2 {
			log.Printf("%s interlock is okay", s.record.Alias)
			return nil
		}
	}

	return fmt.Errorf("invalid %s interlock status code %d: is the key switch off?",
		s.record.Alias, status)
}

// OperatingMode returns the active operating mode of the laser.
func (s *SuperK) OperatingMode() (nkt.OperatingMode, error) {
	v, err := s.conn.ReadU16(nkt.LaserAddr, s.regs.Mode)
	if err != nil {
		return 0, fmt.Errorf("failed to read the %s operating mode: %w", s.record.Alias, err)
	}
	return nkt.OperatingMode(v), nil
}

// OperatingModes returns the operating modes this hardware revision exposes
// to operators, keyed by display name.
func (s *SuperK) OperatingModes() map[string]int {
	modes := make(map[string]int, len(s.regs.Modes))
	for _, m := range s.regs.Modes {
		modes[m.String()] = int(m)
	}
	return modes
}

// SetOperatingMode sets the operating mode of the laser. Emission is always
// forced off before the mode register is written. The written value is
// confirmed by read-back; a mismatch fails the call and is not retried.
func (s *SuperK) SetOperatingMode(mode nkt.OperatingMode) error {
	if err := s.SetEmission(false); err != nil {
		return err
	}

	echo, err := s.conn.WriteReadU16(nkt.LaserAddr, s.regs.Mode, uint16(mode))
	if err != nil {
		return fmt.Errorf("cannot set %s to %s: %w", s.record.Alias, mode, err)
	}
	if echo != uint16(mode) {
		return fmt.Errorf("cannot set %s to %s: device reports %s",
			s.record.Alias, mode, nkt.OperatingMode(echo))
	}
	log.Printf("set %s to %s", s.record.Alias, mode)
	return nil
}

// EnableConstantCurrentMode sets the laser to be in constant current mode.
func (s *SuperK) EnableConstantCurrentMode() error {
	return s.SetOperatingMode(nkt.ConstantCurrent)
}

// EnableConstantPowerMode sets the laser to be in constant power mode.
func (s *SuperK) EnableConstantPowerMode() error {
	return s.SetOperatingMode(nkt.ConstantPower)
}

// EnableModulatedCurrentMode sets the laser to be in modulated current mode.
func (s *SuperK) EnableModulatedCurrentMode() error {
	return s.SetOperatingMode(nkt.ModulatedCurrent)
}

// EnableModulatedPowerMode sets the laser to be in modulated power mode.
func (s *SuperK) EnableModulatedPowerMode() error {
	return s.SetOperatingMode(nkt.ModulatedPower)
}

// EnablePowerLockMode sets the laser to be in power lock (external feedback)
// mode.
func (s *SuperK) EnablePowerLockMode() error {
	return s.SetOperatingMode(nkt.PowerLock)
}

func (s *SuperK) isMode(mode nkt.OperatingMode) (bool, error) {
	current, err := s.OperatingMode()
	if err != nil {
		return false, err
	}
	return current == mode, nil
}

// IsConstantCurrentMode reports whether the laser is in constant current mode.
func (s *SuperK) IsConstantCurrentMode() (bool, error) { return s.isMode(nkt.ConstantCurrent) }

// IsConstantPowerMode reports whether the laser is in constant power mode.
func (s *SuperK) IsConstantPowerMode() (bool, error) { return s.isMode(nkt.ConstantPower) }

// IsModulatedCurrentMode reports whether the laser is in modulated current mode.
func (s *SuperK) IsModulatedCurrentMode() (bool, error) { return s.isMode(nkt.ModulatedCurrent) }

// IsModulatedPowerMode reports whether the laser is in modulated power mode.
func (s *SuperK) IsModulatedPowerMode() (bool, error) { return s.isMode(nkt.ModulatedPower) }

// IsPowerLockMode reports whether the laser is in power lock mode.
func (s *SuperK) IsPowerLockMode() (bool, error) { return s.isMode(nkt.PowerLock) }

// Temperature returns the inlet temperature of the laser in degrees Celsius.
func (s *SuperK) Temperature() (float64, error) {
	// the register stores tenths of a degree
	v, err := s.conn.ReadS16(nkt.LaserAddr, s.regs.InletTemperature)
	if err != nil {
		return 0, fmt.Errorf("failed to read the %s inlet temperature: %w", s.record.Alias, err)
	}
	return float64(v) * 0.1, nil
}

// StatusBits returns the raw status word of the laser main module.
func (s *SuperK) StatusBits() (uint16, error) {
	v, err := s.conn.ReadU16(nkt.LaserAddr, s.regs.StatusBits)
	if err != nil {
		return 0, fmt.Errorf("failed to read the %s status bits: %w", s.record.Alias, err)
	}
	return v, nil
}

func (s *SuperK) level(what string, register byte) (float64, error) {
	if register == 0 {
		return 0, fmt.Errorf("%s has no %s", s.record.Alias, what)
	}
	v, err := s.conn.ReadU16(nkt.LaserAddr, register)
	if err != nil {
		return 0, fmt.Errorf("failed to read the %s %s: %w", s.record.Alias, what, err)
	}
	// levels are stored as tenths of a percent
	return float64(v) * 0.1, nil
}

func (s *SuperK) setLevel(what string, register byte, percentage float64) (float64, error) {
	if register == 0 {
		return 0, fmt.Errorf("%s has no %s", s.record.Alias, what)
	}
	if err := bounds.CheckFloat(what, percentage, 0, 100); err != nil {
		return 0, err
	}

	// fixed-point with one decimal digit: the device stores tenths
	echo, err := s.conn.WriteReadU16(nkt.LaserAddr, register, uint16(math.Round(percentage*10)))
	if err != nil {
		return 0, fmt.Errorf("failed to set the %s %s: %w", s.record.Alias, what, err)
	}
	actual := float64(echo) * 0.1
	log.Printf("set %s %s to %v%% [stored %v%%]", s.record.Alias, what, percentage, actual)
	return actual, nil
}

// PowerLevel returns the constant/modulated power level in percent.
func (s *SuperK) PowerLevel() (float64, error) {
	return s.level("power level", s.regs.PowerLevel)
}

// CurrentLevel returns the constant/modulated current level in percent.
func (s *SuperK) CurrentLevel() (float64, error) {
	return s.level("current level", s.regs.CurrentLevel)
}

// FeedbackLevel returns the power lock (external feedback) level in percent.
func (s *SuperK) FeedbackLevel() (float64, error) {
	return s.level("power lock level", s.regs.CurrentLevel)
}

// SetPowerLevel sets the power level as a percentage in [0, 100] with 0.1
// resolution and returns the level the device actually stored.
func (s *SuperK) SetPowerLevel(percentage float64) (float64, error) {
	return s.setLevel("power level", s.regs.PowerLevel, percentage)
}

// SetCurrentLevel sets the current level as a percentage in [0, 100] with
// 0.1 resolution and returns the level the device actually stored.
func (s *SuperK) SetCurrentLevel(percentage float64) (float64, error) {
	return s.setLevel("current level", s.regs.CurrentLevel, percentage)
}

// SetFeedbackLevel sets the power lock (external feedback) level as a
// percentage in [0, 100] and returns the level the device actually stored.
func (s *SuperK) SetFeedbackLevel(percentage float64) (float64, error) {
	return s.setLevel("power lock level", s.regs.CurrentLevel, percentage)
}

// IsEmissionOn reports whether the laser emission is on.
func (s *SuperK) IsEmissionOn() (bool, error) {
	v, err := s.conn.ReadU8(nkt.LaserAddr, s.regs.Emission)
	if err != nil {
		return false, fmt.Errorf("failed to read the %s emission state: %w", s.record.Alias, err)
	}
	return v != 0, nil
}

// SetEmission turns the laser emission on or off.
func (s *SuperK) SetEmission(on bool) error {
	state, text := byte(0), "off"
	if on {
		state, text = 3, "on"
	}
	if err := s.conn.WriteU8(nkt.LaserAddr, s.regs.Emission, state); err != nil {
		return fmt.Errorf("cannot turn the %s emission %s: %w", s.record.Alias, text, err)
	}
	log.Printf("turn %s emission %s", s.record.Alias, text)
	return nil
}

// LockFrontPanel locks or unlocks the front panel so the current or power
// level cannot be changed at the device. On hardware without a front panel
// module this is a non-error outcome.
func (s *SuperK) LockFrontPanel(on bool) error {
	action, text := "unlock", "unlocked"
	if on {
		action, text = "lock", "locked"
	}

	if !s.regs.HasPanelLock {
		log.Printf("%s does not support locking the front panel", s.record.Alias)
		return nil
	}

	value := byte(0)
	if on {
		value = 1
	}
	if err := s.conn.WriteU8(nkt.PanelAddr, s.regs.PanelLock, value); err != nil {
		return fmt.Errorf("cannot %s the front panel of the %s: %w", action, s.record.Alias, err)
	}
	log.Printf("%s the front panel of the %s", text, s.record.Alias)
	return nil
}

// UserText returns the user text stored on the device.
func (s *SuperK) UserText() (string, error) {
	text, err := s.conn.ReadString(nkt.LaserAddr, s.regs.UserText)
	if err != nil {
		return "", fmt.Errorf("failed to read the %s user text: %w", s.record.Alias, err)
	}
	return text, nil
}

// SetUserText writes free text to the user text register and returns the
// value the device actually stored. Text beyond the hardware limit is
// truncated, not rejected; an empty request on hardware that requires at
// least one character stores a single space.
func (s *SuperK) SetUserText(text string) (string, error) {
	if len(text) > s.regs.UserTextLimit {
		text = text[:s.regs.UserTextLimit]
	}
	if text == "" && s.regs.UserTextMinOne {
		text = " "
	}

	stored, err := s.conn.WriteReadString(nkt.LaserAddr, s.regs.UserText, text)
	if err != nil {
		return "", fmt.Errorf("failed to set the %s user text: %w", s.record.Alias, err)
	}
	log.Printf("set %s user text to %q", s.record.Alias, stored)
	return stored, nil
}

// Disconnect unlocks the front panel, clears the user text and releases the
// underlying transport.
func (s *SuperK) Disconnect() error {
	if err := s.LockFrontPanel(false); err != nil {
		log.Printf("failed to unlock the %s front panel: %v", s.record.Alias, err)
	}
	if _, err := s.SetUserText(""); err != nil {
		log.Printf("failed to clear the %s user text: %v", s.record.Alias, err)
	}
	return s.conn.Close()
}
