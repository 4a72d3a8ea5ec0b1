// Package monochromator wraps an HRS500M monochromator from Princeton
// Instruments: a thin state and validation layer over the vendor command
// set, with write confirmation by read-back.
package monochromator

import (
	"bufio"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/MSLNZ/pr-superk-mono/internal/serialport"
)

// Slit identifies one of the motorised slits by its vendor port number.
type Slit int

const (
	FrontEntranceSlit Slit = 2
	FrontExitSlit     Slit = 3
)

func (s Slit) String() string {
	switch s {
	case FrontEntranceSlit:
		return "front entrance"
	case FrontExitSlit:
		return "front exit"
	default:
		return fmt.Sprintf("slit %d", int(s))
	}
}

// Controller is the vendor command surface of the monochromator. The wrapper
// delegates all device communication to it.
type Controller interface {
	Wavelength() (float64, error)
	SetWavelength(nm float64) error
	Grating() (int, error)
	SetGrating(position int) error
	GratingBlaze(position int) (string, error)
	GratingDensity(position int) (int, error)
	FilterPosition() (int, error)
	SetFilterPosition(position int) error
	HomeFilterWheel() error
	SlitWidth(slit Slit) (int, error)
	SetSlitWidth(slit Slit, um int) error
	HomeSlit(slit Slit) error
	Close() error
}

// SerialController speaks the vendor ASCII command set over a serial port.
// Commands are CR terminated; every reply ends with " ok".
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

// command sends one vendor command and returns the reply text with the
// trailing " ok" removed.
func (c *SerialController) command(cmd string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := c.port.Write([]byte(cmd + "\r")); err != nil {
		return "", fmt.Errorf("failed to send %q: %w", cmd, err)
	}

	raw, err := c.reader.ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("failed to read the reply to %q: %w", cmd, err)
	}

	reply := strings.TrimSpace(raw)
	if !strings.HasSuffix(reply, "ok") {
		return "", fmt.Errorf("monochromator rejected %q: %s", cmd, reply)
	}
	return strings.TrimSpace(strings.TrimSuffix(reply, "ok")), nil
}

// commandInt sends a command whose reply starts with an integer field.
func (c *SerialController) commandInt(cmd string) (int, error) {
	reply, err := c.command(cmd)
	if err != nil {
		return 0, err
	}
	fields := strings.Fields(reply)
	if len(fields) == 0 {
		return 0, fmt.Errorf("empty reply to %q", cmd)
	}
	v, err := strconv.Atoi(fields[0])
	if err != nil {
		return 0, fmt.Errorf("unexpected reply to %q: %s", cmd, reply)
	}
	return v, nil
}

// Wavelength returns the encoder-reported wavelength in nm.
func (c *SerialController) Wavelength() (float64, error) {
	reply, err := c.command("?NM")
	if err != nil {
		return 0, err
	}
	fields := strings.Fields(reply)
	if len(fields) == 0 {
		return 0, fmt.Errorf("empty reply to ?NM")
	}
	v, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return 0, fmt.Errorf("unexpected reply to ?NM: %s", reply)
	}
	return v, nil
}

// SetWavelength moves to the given wavelength in nm.
func (c *SerialController) SetWavelength(nm float64) error {
	_, err := c.command(strconv.FormatFloat(nm, 'f', 3, 64) + " GOTO")
	return err
}

// Grating returns the active grating position.
func (c *SerialController) Grating() (int, error) {
	return c.commandInt("?GRATING")
}

// SetGrating selects the grating at the given position.
func (c *SerialController) SetGrating(position int) error {
	_, err := c.command(fmt.Sprintf("%d GRATING", position))
	return err
}

// GratingBlaze returns the blaze description of the grating at position.
func (c *SerialController) GratingBlaze(position int) (string, error) {
	return c.command(fmt.Sprintf("%d ?BLAZE", position))
}

// GratingDensity returns the groove density of the grating at position in
// grooves/mm.
func (c *SerialController) GratingDensity(position int) (int, error) {
	return c.commandInt(fmt.Sprintf("%d ?GROOVES", position))
}

// FilterPosition returns the filter wheel position.
func (c *SerialController) FilterPosition() (int, error) {
	return c.commandInt("?FILTER")
}

// SetFilterPosition moves the filter wheel to position.
func (c *SerialController) SetFilterPosition(position int) error {
	_, err := c.command(fmt.Sprintf("%d FILTER", position))
	return err
}

// HomeFilterWheel runs the filter wheel homing routine.
func (c *SerialController) HomeFilterWheel() error {
	_, err := c.command("FHOME")
	return err
}

// SlitWidth returns the width of the slit in microns.
func (c *SerialController) SlitWidth(slit Slit) (int, error) {
	return c.commandInt(fmt.Sprintf("%d ?SLIT-MICRONS", int(slit)))
}

// SetSlitWidth moves the slit to the given width in microns.
func (c *SerialController) SetSlitWidth(slit Slit, um int) error {
	_, err := c.command(fmt.Sprintf("%d %d SLIT-MICRONS", int(slit), um))
	return err
}

// HomeSlit runs the homing routine of the slit.
func (c *SerialController) HomeSlit(slit Slit) error {
	_, err := c.command(fmt.Sprintf("%d SLIT-HOME", int(slit)))
	return err
}

// Close releases the serial port.
func (c *SerialController) Close() error {
	return c.port.Close()
}
