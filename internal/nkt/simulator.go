package nkt

import (
	"errors"
	"fmt"
	"sync"
)

// Simulator is an in-memory stand-in for a laser on an Interbus segment. It
// implements the same register surface as Conn so wrappers can be exercised
// without hardware, both in tests and when a service runs in dev mode.
type Simulator struct {
	mu sync.Mutex

	// Module is the hardware revision the simulated device reports.
	Module ModuleType
	// Serial is the serial number the simulated device reports.
	Serial string
	// Status is returned by PortStatus.
	Status PortStatus
	// InterlockResettable controls whether writing 1 to a faulted
	// interlock register clears the fault.
	InterlockResettable bool
	// WriteErrors injects a transport error for writes to a register.
	WriteErrors map[byte]error

	regs       *RegisterSet
	u16        map[byte]uint16
	text       map[byte]string
	panel      map[byte]uint16
	readCount  int
	writeCount int
	closed     bool
}

// NewSimulator creates a simulated laser of the given hardware revision with
// the interlock armed, emission off and constant current mode active.
func NewSimulator(module ModuleType, serial string) *Simulator {
	regs, err := RegistersFor(module)
	if err != nil {
		panic(err)
	}
	s := &Simulator{
		Module:              module,
		Serial:              serial,
		Status:              PortReady,
		InterlockResettable: true,
		WriteErrors:         make(map[byte]error),
		regs:                regs,
		u16:                 make(map[byte]uint16),
		text:                make(map[byte]string),
		panel:               make(map[byte]uint16),
	}
	s.u16[regs.Interlock] = 2
	s.u16[regs.Mode] = uint16(ConstantCurrent)
	s.u16[regs.InletTemperature] = 213 // 21.3 degC at the 0.1 scale
	return s
}

func (s *Simulator) store(dest byte) (map[byte]uint16, error) {
	switch dest {
	case LaserAddr:
		return s.u16, nil
	case PanelAddr:
		return s.panel, nil
	default:
		return nil, fmt.Errorf("no module at address 0x%02X", dest)
	}
}

// ReadU8 reads an 8-bit register value.
func (s *Simulator) ReadU8(dest, register byte) (uint8, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, errors.New("connection closed")
	}
	s.readCount++
	if register == SystemTypeRegister && dest == LaserAddr {
		return uint8(s.Module), nil
	}
	m, err := s.store(dest)
	if err != nil {
		return 0, err
	}
	return uint8(m[register]), nil
}

// ReadU16 reads a 16-bit register value.
func (s *Simulator) ReadU16(dest, register byte) (uint16, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, errors.New("connection closed")
	}
	s.readCount++
	m, err := s.store(dest)
	if err != nil {
		return 0, err
	}
	return m[register], nil
}

// ReadS16 reads a signed 16-bit register value.
func (s *Simulator) ReadS16(dest, register byte) (int16, error) {
	v, err := s.ReadU16(dest, register)
	return int16(v), err
}

// ReadString reads an ASCII register value.
func (s *Simulator) ReadString(dest, register byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return "", errors.New("connection closed")
	}
	s.readCount++
	if register == s.regs.SerialNumber && dest == LaserAddr {
		return s.Serial, nil
	}
	return s.text[register], nil
}

// WriteU8 writes an 8-bit register value.
func (s *Simulator) WriteU8(dest, register byte, value uint8) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errors.New("connection closed")
	}
	if err := s.WriteErrors[register]; err != nil {
		return err
	}
	m, err := s.store(dest)
	if err != nil {
		return err
	}
	s.writeCount++
	m[register] = uint16(value)
	return nil
}

// WriteReadU16 writes a 16-bit register value and returns the stored value.
// The interlock register follows the hardware behaviour: writing 1 resets a
// pending fault if the key switch allows it, and the read-back reports the
// resulting status.
func (s *Simulator) WriteReadU16(dest, register byte, value uint16) (uint16, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, errors.New("connection closed")
	}
	if err := s.WriteErrors[register]; err != nil {
		return 0, err
	}
	m, err := s.store(dest)
	if err != nil {
		return 0, err
	}
	s.writeCount++

	if register == s.regs.Interlock && dest == LaserAddr {
		if value == 1 && m[register] == 1 && s.InterlockResettable {
			m[register] = 2
		}
		return m[register], nil
	}

	m[register] = value
	return m[register], nil
}

// WriteReadString writes an ASCII register value and returns the stored
// value. The device truncates to the revision's limit.
func (s *Simulator) WriteReadString(dest, register byte, value string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return "", errors.New("connection closed")
	}
	if err := s.WriteErrors[register]; err != nil {
		return "", err
	}
	s.writeCount++
	if register == s.regs.UserText && len(value) > s.regs.UserTextLimit {
		value = value[:s.regs.UserTextLimit]
	}
	s.text[register] = value
	return s.text[register], nil
}

// PortStatus returns the configured transport status.
func (s *Simulator) PortStatus() PortStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Status
}

// Close marks the simulated connection closed.
func (s *Simulator) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// SetU16 seeds a laser register value, bypassing the write counters.
func (s *Simulator) SetU16(register byte, value uint16) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.u16[register] = value
}

// U16 returns a laser register value without counting a read.
func (s *Simulator) U16(register byte) uint16 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.u16[register]
}

// PanelU16 returns a front panel register value without counting a read.
func (s *Simulator) PanelU16(register byte) uint16 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.panel[register]
}

// WriteCount reports how many register writes the device has seen.
func (s *Simulator) WriteCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeCount
}

// UserTextStored returns the raw stored user text.
func (s *Simulator) UserTextStored() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.text[s.regs.UserText]
}
