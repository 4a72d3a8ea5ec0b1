package nkt

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/MSLNZ/pr-superk-mono/internal/serialport"
)

// PortStatus reports the health of the underlying transport.
type PortStatus int

const (
	PortUnknown PortStatus = iota
	PortReady
	PortError
)

func (s PortStatus) String() string {
	switch s {
	case PortReady:
		return "ready"
	case PortError:
		return "error"
	default:
		return "unknown"
	}
}

// readTimeout bounds a single register exchange on a real serial port.
const readTimeout = 2 * time.Second

// Conn is a synchronous register connection to an Interbus segment. One
// telegram is outstanding at a time; the mutex serialises concurrent callers
// onto the transport.
type Conn struct {
	mu     sync.Mutex
	port   serialport.Porter
	reader *bufio.Reader
	status PortStatus
}

// Dial opens the serial port at address and returns a register connection.
func Dial(address string, opts serialport.Options) (*Conn, error) {
	port, err := serialport.Open(address, opts)
	if err != nil {
		return nil, err
	}
	return NewConn(port), nil
}

// NewConn wraps an already-open transport in a register connection.
func NewConn(port serialport.Porter) *Conn {
	if tp, ok := port.(serialport.TimeoutPorter); ok {
		// a failed timeout configuration surfaces as a read error later
		_ = tp.SetReadTimeout(readTimeout)
	}
	return &Conn{
		port:   port,
		reader: bufio.NewReader(port),
		status: PortReady,
	}
}

// PortStatus returns the current transport status.
func (c *Conn) PortStatus() PortStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Close closes the underlying transport.
func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.status = PortUnknown
	return c.port.Close()
}

// exchange sends one telegram and returns the matching reply. The caller
// holds no locks; exchange serialises itself.
func (c *Conn) exchange(dest, msgType, register byte, payload []byte) (telegram, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	request := telegram{
		Dest:     dest,
		Source:   hostAddr,
		Type:     msgType,
		Register: register,
		Payload:  payload,
	}

	if _, err := c.port.Write(request.encode()); err != nil {
		c.status = PortError
		return telegram{}, fmt.Errorf("failed to write register 0x%02X telegram: %w", register, err)
	}

	frame, err := c.readFrame()
	if err != nil {
		c.status = PortError
		return telegram{}, fmt.Errorf("failed to read register 0x%02X reply: %w", register, err)
	}

	reply, err := decodeTelegram(frame)
	if err != nil {
		return telegram{}, err
	}

	if reply.Source != dest {
		return telegram{}, fmt.Errorf(
			"telegram reply from module 0x%02X, expected 0x%02X", reply.Source, dest)
	}

	switch reply.Type {
	case msgDatagram, msgAck:
		return reply, nil
	case msgNack:
		return telegram{}, fmt.Errorf("module 0x%02X rejected register 0x%02X", dest, register)
	case msgCRCError:
		return telegram{}, fmt.Errorf("module 0x%02X reported a checksum error for register 0x%02X", dest, register)
	case msgBusy:
		return telegram{}, fmt.Errorf("module 0x%02X is busy", dest)
	default:
		return telegram{}, fmt.Errorf("unexpected telegram type 0x%02X from module 0x%02X", reply.Type, dest)
	}
}

// readFrame reads one complete telegram frame from the transport. Escaping
// guarantees the end byte only occurs as a terminator, so reading up to the
// end byte always yields a whole frame. Leading noise before the start byte
// is discarded.
func (c *Conn) readFrame() ([]byte, error) {
	raw, err := c.reader.ReadBytes(eotByte)
	if err != nil {
		return nil, err
	}
	start := bytes.LastIndexByte(raw[:len(raw)-1], sotByte)
	if start < 0 {
		return nil, fmt.Errorf("no telegram start in % X", raw)
	}
	return raw[start:], nil
}

func (c *Conn) readRegister(dest, register byte) ([]byte, error) {
	reply, err := c.exchange(dest, msgRead, register, nil)
	if err != nil {
		return nil, err
	}
	return reply.Payload, nil
}

func (c *Conn) writeRegister(dest, register byte, payload []byte) error {
	_, err := c.exchange(dest, msgWrite, register, payload)
	return err
}

// ReadU8 reads an unsigned 8-bit register value.
func (c *Conn) ReadU8(dest, register byte) (uint8, error) {
	payload, err := c.readRegister(dest, register)
	if err != nil {
		return 0, err
	}
	if len(payload) < 1 {
		return 0, fmt.Errorf("register 0x%02X reply carries no data", register)
	}
	return payload[0], nil
}

// ReadU16 reads an unsigned 16-bit (little-endian) register value.
func (c *Conn) ReadU16(dest, register byte) (uint16, error) {
	payload, err := c.readRegister(dest, register)
	if err != nil {
		return 0, err
	}
	if len(payload) < 2 {
		return 0, fmt.Errorf("register 0x%02X reply too short for u16: % X", register, payload)
	}
	return binary.LittleEndian.Uint16(payload), nil
}

// ReadS16 reads a signed 16-bit (little-endian) register value.
func (c *Conn) ReadS16(dest, register byte) (int16, error) {
	v, err := c.ReadU16(dest, register)
	return int16(v), err
}

// ReadString reads an ASCII register value, trimming trailing NULs.
func (c *Conn) ReadString(dest, register byte) (string, error) {
	payload, err := c.readRegister(dest, register)
	if err != nil {
		return "", err
	}
	return strings.TrimRight(string(payload), "\x00"), nil
}

// WriteU8 writes an unsigned 8-bit register value.
func (c *Conn) WriteU8(dest, register byte, value uint8) error {
	return c.writeRegister(dest, register, []byte{value})
}

// WriteU16 writes an unsigned 16-bit (little-endian) register value.
func (c *Conn) WriteU16(dest, register byte, value uint16) error {
	payload := make([]byte, 2)
	binary.LittleEndian.PutUint16(payload, value)
	return c.writeRegister(dest, register, payload)
}

// WriteString writes an ASCII register value.
func (c *Conn) WriteString(dest, register byte, value string) error {
	return c.writeRegister(dest, register, []byte(value))
}

// WriteReadU16 writes a 16-bit register value and immediately reads it back.
// The read-back value, not the request, is the authoritative stored value:
// the device may clamp or round.
func (c *Conn) WriteReadU16(dest, register byte, value uint16) (uint16, error) {
	if err := c.WriteU16(dest, register, value); err != nil {
		return 0, err
	}
	return c.ReadU16(dest, register)
}

// WriteReadString writes an ASCII register value and immediately reads back
// the stored (possibly truncated) value.
func (c *Conn) WriteReadString(dest, register byte, value string) (string, error) {
	if err := c.WriteString(dest, register, value); err != nil {
		return "", err
	}
	return c.ReadString(dest, register)
}
