// Package filterwheel wraps an FW212CNEB motorised ND filter wheel from
// Thorlabs: position control with a static optical-density map.
package filterwheel

import (
	"bufio"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/MSLNZ/pr-superk-mono/internal/serialport"
)

// Controller is the vendor command surface of the filter wheel.
type Controller interface {
	PositionCount() (int, error)
	Position() (int, error)
	SetPosition(position int) error
	Close() error
}

// SerialController speaks the Thorlabs ASCII command set over a serial port.
// Commands are CR terminated; the wheel echoes each command on its own line
// before printing the reply.
type SerialController struct {
	mu     sync.Mutex
	port   serialport.Porter
	reader *bufio.Reader
}

// NewSerialController wraps an already-open port.
func NewSerialController(port serialport.Porter) *SerialController {
	return &SerialController{port: port, reader: bufio.NewReader(port)}
}

// DialController opens the serial port at address and returns a controller.
func DialController(address string, opts serialport.Options) (*SerialController, error) {
	port, err := serialport.Open(address, opts)
	if err != nil {
		return nil, err
	}
	return NewSerialController(port), nil
}

// command sends one vendor command and consumes the echoed command line.
// When wantReply is set, the value printed on the line after the echo is
// returned.
func (c *SerialController) command(cmd string, wantReply bool) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := c.port.Write([]byte(cmd + "\r")); err != nil {
		return "", fmt.Errorf("failed to send %q: %w", cmd, err)
	}

	raw, err := c.reader.ReadString('\r')
	if err != nil {
		return "", fmt.Errorf("failed to read the reply to %q: %w", cmd, err)
	}
	reply := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(raw), cmd))

	// the echo and the reply arrive on separate lines
	if wantReply && reply == "" {
		raw, err = c.reader.ReadString('\r')
		if err != nil {
			return "", fmt.Errorf("failed to read the reply to %q: %w", cmd, err)
		}
		reply = strings.TrimSpace(raw)
	}
	return reply, nil
}

func (c *SerialController) query(cmd string) (int, error) {
	reply, err := c.command(cmd, true)
	if err != nil {
		return 0, err
	}
	v, err := strconv.Atoi(reply)
	if err != nil {
		return 0, fmt.Errorf("unexpected reply to %q: %s", cmd, reply)
	}
	return v, nil
}

// PositionCount returns the number of filter positions the wheel supports.
func (c *SerialController) PositionCount() (int, error) {
	return c.query("pcount?")
}

// Position returns the current position, starting at 1.
func (c *SerialController) Position() (int, error) {
	return c.query("pos?")
}

// SetPosition moves the wheel to the given position.
func (c *SerialController) SetPosition(position int) error {
	_, err := c.command(fmt.Sprintf("pos=%d", position), false)
	return err
}

// Close releases the serial port.
func (c *SerialController) Close() error {
	return c.port.Close()
}
